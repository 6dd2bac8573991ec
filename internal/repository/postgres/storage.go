package postgres

import (
	"context"
	"fmt"
	"time"

	"streakTracker/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	slowQuery = time.Millisecond * 100
	slowWrite = time.Millisecond * 50
)

type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Storage owns the pool. Tasks and Users are thin views over it so that
// reconciliation can span both tables in one transaction. Queries go through
// db, which is the pool itself or a transaction opened on it.
type Storage struct {
	pool *pgxpool.Pool
	db   querier
}

func New(ctx context.Context, connString string, opts *PoolOptions) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse connection string", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts != nil {
		if opts.MaxConns > 0 {
			config.MaxConns = opts.MaxConns
		}
		if opts.MinConns > 0 && opts.MinConns <= config.MaxConns {
			config.MinConns = opts.MinConns
		}
		if opts.MaxConnIdleTime > 0 {
			config.MaxConnIdleTime = opts.MaxConnIdleTime
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL",
		zap.Int32("max_conns", config.MaxConns),
		zap.Int32("min_conns", config.MinConns))
	return &Storage{pool: pool, db: pool}, nil
}

func (s *Storage) Tasks() *TaskStorage {
	return &TaskStorage{s}
}

func (s *Storage) Users() *UserStorage {
	return &UserStorage{s}
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: PostgreSQL connections closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	logger.Debug("Repository: connection is healthy")
	return nil
}

func warnIfSlow(op string, start time.Time, budget time.Duration) {
	if elapsed := time.Since(start); elapsed > budget {
		logger.Warn("Repository: slow query",
			zap.String("op", op),
			zap.Duration("ms", elapsed))
	}
}
