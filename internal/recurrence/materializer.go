package recurrence

import (
	"context"
	"fmt"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/task"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskStore is the slice of the task repository the materializer writes to.
type TaskStore interface {
	Create(ctx context.Context, t *task.Task) error
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*task.Task, error)
	HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error)
}

type Materializer struct {
	store TaskStore
	newID func() uuid.UUID
}

func NewMaterializer(store TaskStore) *Materializer {
	return &Materializer{
		store: store,
		newID: uuid.New,
	}
}

// MaterializeNext persists the occurrence that follows completed, together
// with date-shifted clones of its sub-task subtree. It returns nil without an
// error when the series has ended, its pattern cannot be parsed, or a successor
// of completed already exists.
func (m *Materializer) MaterializeNext(ctx context.Context, completed *task.Task, loc *time.Location) (*task.Task, error) {
	if !completed.IsRecurring {
		return nil, nil
	}

	pattern, err := Parse(completed.RecurringPattern)
	if err != nil {
		logger.Warn("Recurrence: pattern is not usable, series stops",
			zap.String("task_id", completed.UUID.String()),
			zap.Error(err))
		return nil, nil
	}

	exists, err := m.store.HasSuccessor(ctx, completed.UUID)
	if err != nil {
		return nil, fmt.Errorf("look up successor: %w", err)
	}
	if exists {
		logger.Debug("Recurrence: occurrence already has a successor",
			zap.String("task_id", completed.UUID.String()))
		return nil, nil
	}

	base, ok := anchorTime(completed)
	if !ok {
		return nil, nil
	}

	next, ok := pattern.Advance(base, loc)
	if !ok {
		logger.Info("Recurrence: series reached its end date",
			zap.String("task_id", completed.UUID.String()))
		return nil, nil
	}
	if !next.After(base) {
		logger.Warn("Recurrence: next occurrence is not after its predecessor, series stops",
			zap.String("task_id", completed.UUID.String()),
			zap.Time("base", base),
			zap.Time("next", next))
		return nil, nil
	}

	successor := completed.Clone()
	successor.UUID = m.newID()
	successor.Scheduled = &next
	successor.IsCompleted = false
	successor.CompletedAt = nil
	successor.SeriesCreditedAt = nil
	successor.UpdatedAt = nil
	successor.CreatedAt = time.Time{}
	parentID := completed.UUID
	successor.RecurringParentID = &parentID

	if err := m.store.Create(ctx, successor); err != nil {
		return nil, fmt.Errorf("create next occurrence: %w", err)
	}

	offset := next.Sub(base)
	if err := m.cloneSubtree(ctx, completed.UUID, successor, offset); err != nil {
		return successor, fmt.Errorf("clone sub-tasks: %w", err)
	}

	logger.Info("Recurrence: next occurrence materialized",
		zap.String("from_id", completed.UUID.String()),
		zap.String("next_id", successor.UUID.String()),
		zap.Time("scheduled_date", next))

	return successor, nil
}

func (m *Materializer) cloneSubtree(ctx context.Context, fromParent uuid.UUID, toParent *task.Task, offset time.Duration) error {
	children, err := m.store.ListChildren(ctx, fromParent)
	if err != nil {
		return err
	}

	for _, child := range children {
		clone := child.Clone()
		clone.UUID = m.newID()
		parentID := toParent.UUID
		clone.ParentID = &parentID
		clone.Depth = toParent.Depth + 1
		clone.IsCompleted = false
		clone.CompletedAt = nil
		clone.UpdatedAt = nil
		clone.CreatedAt = time.Time{}
		clone.IsRecurring = false
		clone.RecurringPattern = nil
		clone.RecurringParentID = nil
		clone.RecurringStreak = 0
		clone.LongestRecurringStreak = 0
		clone.SeriesCreditedAt = nil
		if child.Scheduled != nil {
			shifted := child.Scheduled.Add(offset)
			clone.Scheduled = &shifted
		}

		if err := m.store.Create(ctx, clone); err != nil {
			return err
		}
		if clone.Depth < task.MaxDepth {
			if err := m.cloneSubtree(ctx, child.UUID, clone, offset); err != nil {
				return err
			}
		}
	}
	return nil
}

// anchorTime is the instant the next step is computed from: the scheduled
// date, or the completion time for unscheduled rows.
func anchorTime(t *task.Task) (time.Time, bool) {
	switch {
	case t.Scheduled != nil:
		return *t.Scheduled, true
	case t.CompletedAt != nil:
		return *t.CompletedAt, true
	default:
		return time.Time{}, false
	}
}
