package app

import (
	"context"
	"fmt"

	"streakTracker/internal/config"
	"streakTracker/internal/logger"
	"streakTracker/internal/repository/inmemory"
	"streakTracker/internal/repository/postgres"
	"streakTracker/internal/repository/sqlite"
	"streakTracker/internal/service"

	"go.uber.org/zap"
)

// backend is one opened store: both repositories share its connection.
type backend struct {
	kind  service.RepoType
	tasks service.TaskRepository
	users service.UserRepository
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	kind := service.RepoType(cfg.Repository.Type)
	logger.Info("App: opening repository", zap.String("type", string(kind)))

	switch kind {
	case service.InMemoryType:
		storage := inmemory.NewStorage()
		return &backend{kind: kind, tasks: storage.Tasks(), users: storage.Users(), close: storage.Close}, nil

	case service.PostgresType:
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		storage, err := postgres.New(ctx, cfg.Database.URL, &postgres.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MinConnections),
			MaxConnIdleTime: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &backend{kind: kind, tasks: storage.Tasks(), users: storage.Users(), close: storage.Close}, nil

	case service.SQLiteType:
		storage, err := sqlite.New(cfg.Repository.SQLitePath, cfg.Database.SlowThreshold)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &backend{kind: kind, tasks: storage.Tasks(), users: storage.Users(), close: storage.Close}, nil

	default:
		return nil, fmt.Errorf("unknown repository type %q", kind)
	}
}
