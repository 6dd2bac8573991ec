package postgres

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"streakTracker/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newMigrator(connString string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(connString))
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// migrationURL rewrites a libpq style URL to the scheme registered by the
// pgx/v5 migrate driver.
func migrationURL(connString string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

func Migrate(connString string) error {
	logger.Info("Repository: applying migrations")

	m, err := newMigrator(connString)
	if err != nil {
		logger.Error("Repository: migrations unavailable", err)
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: failed to apply migrations", err)
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Repository: migrations applied",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

func Down(connString string) error {
	logger.Info("Repository: rolling back migrations")

	m, err := newMigrator(connString)
	if err != nil {
		logger.Error("Repository: migrations unavailable", err)
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: failed to roll back migrations", err)
		return fmt.Errorf("migrate down: %w", err)
	}
	logger.Info("Repository: migrations rolled back")
	return nil
}
