package repository

import (
	"context"
	"time"

	"streakTracker/internal/models/task"

	"github.com/google/uuid"
)

// TaskTx is the part of a task store that completing an occurrence touches.
// Stores hand it out bound to one transaction; nothing written through it is
// visible to others until the transaction commits.
type TaskTx interface {
	Create(ctx context.Context, t *task.Task) error
	Update(ctx context.Context, t *task.Task) error
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*task.Task, error)
	CompleteDescendants(ctx context.Context, parentID uuid.UUID, at time.Time) (int, error)
	HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error)
}
