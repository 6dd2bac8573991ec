package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streakTracker/internal/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Storage is the single-file backend for local runs. SQLite serialises
// writers anyway, so the pool is pinned to one connection.
type Storage struct {
	db *gorm.DB
}

// zapWriter routes gorm's slow query and error lines into the service log.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Warn("Repository: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func New(dsn string, slowThreshold time.Duration) (*Storage, error) {
	if dsn == "" {
		dsn = "streak_tracker.db"
	}
	if slowThreshold <= 0 {
		slowThreshold = time.Millisecond * 100
	}

	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	dbLogger := gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  dbLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Error("Repository: failed to open sqlite", err)
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRow{}, &taskRow{}); err != nil {
		logger.Error("Repository: sqlite migration failed", err)
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	logger.Info("Repository: opened sqlite database", zap.String("dsn", dsn))
	return &Storage{db: db}, nil
}

// ensureDir creates the parent directory of a file DSN.
func ensureDir(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *Storage) Tasks() *TaskStorage {
	return &TaskStorage{s}
}

func (s *Storage) Users() *UserStorage {
	return &UserStorage{s}
}

func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		logger.Error("Repository: failed to close sqlite", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Repository: failed to close sqlite", err)
		return
	}
	logger.Info("Repository: sqlite closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("underlying db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
