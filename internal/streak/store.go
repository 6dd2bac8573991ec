package streak

import (
	"context"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/repository"

	"github.com/google/uuid"
)

type TaskReader interface {
	ListScheduledBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, filter repository.TaskFilter) ([]*task.Task, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	// CompareAndSetStreak writes state only while the stored
	// LastStreakCheckDate still equals expected, and returns
	// repository.ErrVersionConflict otherwise.
	CompareAndSetStreak(ctx context.Context, id uuid.UUID, expected *time.Time, state user.StreakState) error
	// ApplyReconciliation writes the user's streak fields (when state is not
	// nil) and zeroes recurringStreak on resetSeries in one atomic step.
	ApplyReconciliation(ctx context.Context, id uuid.UUID, state *user.StreakState, resetSeries []uuid.UUID) error
}

func allCompleted(tasks []*task.Task) bool {
	for _, t := range tasks {
		if !t.IsCompleted {
			return false
		}
	}
	return true
}
