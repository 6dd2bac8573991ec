package handlers

import (
	"context"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/service"
	"streakTracker/internal/worker"

	"github.com/google/uuid"
)

type Service interface {
	HealthCheck(ctx context.Context) error

	RegisterUser(ctx context.Context, timezone string) (*user.User, error)
	GetStreak(ctx context.Context, userID uuid.UUID) (*user.User, error)
	UpdateTimezone(ctx context.Context, userID uuid.UUID, timezone string) (*user.User, error)

	CreateTask(ctx context.Context, userID uuid.UUID, input service.CreateTaskInput) (*task.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error)
	CompleteTask(ctx context.Context, userID, id uuid.UUID) (*service.CompletionResult, error)
	UncompleteTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error)
	GetSchedule(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]*task.Task, error)
}

// Sweeper runs one midnight sweep at now.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*worker.Report, error)
}
