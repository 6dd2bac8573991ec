package service

import (
	"context"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/repository"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(context.Context) error
	Create(context.Context, *task.Task) error
	Update(context.Context, *task.Task) error
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error
	GetByID(context.Context, uuid.UUID) (*task.Task, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*task.Task, error)
	CompleteDescendants(ctx context.Context, parentID uuid.UUID, at time.Time) (int, error)
	ListScheduledBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, filter repository.TaskFilter) ([]*task.Task, error)
	ListRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*task.Task, error)
	HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error)
	// Atomic runs fn inside one transaction of the store. Nothing fn writes
	// is kept unless it returns nil.
	Atomic(ctx context.Context, fn func(repository.TaskTx) error) error
}

type UserRepository interface {
	Create(context.Context, *user.User) error
	GetByID(context.Context, uuid.UUID) (*user.User, error)
	ListAll(context.Context) ([]*user.User, error)
	CompareAndSetStreak(ctx context.Context, id uuid.UUID, expected *time.Time, state user.StreakState) error
	UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error
	ApplyReconciliation(ctx context.Context, id uuid.UUID, state *user.StreakState, resetSeries []uuid.UUID) error
}
