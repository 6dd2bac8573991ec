package streak

import (
	"context"
	"fmt"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNothingScheduled Outcome = "nothing_scheduled"
	OutcomeCredited         Outcome = "credited"
	OutcomeReset            Outcome = "reset"
)

// Reconciler is the nightly fallback: it settles one finished local day for a
// user when the immediate synchronizer did not.
type Reconciler struct {
	tasks TaskReader
	users UserStore
	zones *Zones
}

func NewReconciler(tasks TaskReader, users UserStore, zones *Zones) *Reconciler {
	return &Reconciler{
		tasks: tasks,
		users: users,
		zones: zones,
	}
}

// ReconcileDay settles the daily streak for the local calendar day containing
// day.
func (r *Reconciler) ReconcileDay(ctx context.Context, userID uuid.UUID, day time.Time) (Outcome, error) {
	u, loc, err := r.load(ctx, userID)
	if err != nil {
		return "", err
	}

	state, outcome, err := r.planDay(ctx, u, day, loc)
	if err != nil || state == nil {
		return outcome, err
	}

	if err := r.users.ApplyReconciliation(ctx, userID, state, nil); err != nil {
		return "", fmt.Errorf("apply day reconciliation: %w", err)
	}
	return outcome, nil
}

// ReconcileRecurringSeries zeroes the series streak of every recurring
// occurrence that stayed incomplete through the local day containing day.
func (r *Reconciler) ReconcileRecurringSeries(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	_, loc, err := r.load(ctx, userID)
	if err != nil {
		return 0, err
	}

	missed, err := r.missedSeries(ctx, userID, day, loc)
	if err != nil || len(missed) == 0 {
		return 0, err
	}

	if err := r.users.ApplyReconciliation(ctx, userID, nil, missed); err != nil {
		return 0, fmt.Errorf("reset series streaks: %w", err)
	}
	return len(missed), nil
}

// ReconcileUser runs both passes for one day and writes the result in a single
// atomic store call. A crash before the write leaves the day unprocessed, and
// the next sweep repeats it.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID uuid.UUID, day time.Time) (Outcome, int, error) {
	u, loc, err := r.load(ctx, userID)
	if err != nil {
		return "", 0, err
	}

	state, outcome, err := r.planDay(ctx, u, day, loc)
	if err != nil {
		return "", 0, err
	}

	missed, err := r.missedSeries(ctx, userID, day, loc)
	if err != nil {
		return "", 0, err
	}

	if state == nil && len(missed) == 0 {
		return outcome, 0, nil
	}

	if err := r.users.ApplyReconciliation(ctx, userID, state, missed); err != nil {
		return "", 0, fmt.Errorf("apply reconciliation: %w", err)
	}

	logger.Info("Streak: day reconciled",
		zap.String("user_id", userID.String()),
		zap.String("day", DateKey(day, loc)),
		zap.String("outcome", string(outcome)),
		zap.Int("series_reset", len(missed)))

	return outcome, len(missed), nil
}

func (r *Reconciler) load(ctx context.Context, userID uuid.UUID) (*user.User, *time.Location, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	return u, r.zones.Resolve(u.Timezone), nil
}

// planDay returns the new streak state for day, or nil when the day was
// already processed.
func (r *Reconciler) planDay(ctx context.Context, u *user.User, day time.Time, loc *time.Location) (*user.StreakState, Outcome, error) {
	if creditedOn(u.LastStreakCheckDate, day, loc) {
		return nil, OutcomeAlreadyProcessed, nil
	}

	from, to := DayBounds(day, loc)
	tasks, err := r.tasks.ListScheduledBetween(ctx, u.UUID, from, to, repository.TaskFilter{})
	if err != nil {
		return nil, "", fmt.Errorf("list day tasks: %w", err)
	}

	state, outcome := reconcileState(u.Streak(), tasks, from)
	return &state, outcome, nil
}

func (r *Reconciler) missedSeries(ctx context.Context, userID uuid.UUID, day time.Time, loc *time.Location) ([]uuid.UUID, error) {
	from, to := DayBounds(day, loc)
	missed, err := r.tasks.ListScheduledBetween(ctx, userID, from, to, repository.TaskFilter{
		Completed:     repository.Incomplete(),
		RecurringOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list missed recurring tasks: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(missed))
	for _, t := range missed {
		ids = append(ids, t.UUID)
	}
	return ids, nil
}

// reconcileState stamps dayStart as processed and moves the streak: +1 when
// every task of the day was completed, back to 0 when any was not.
func reconcileState(state user.StreakState, tasks []*task.Task, dayStart time.Time) (user.StreakState, Outcome) {
	stamp := dayStart.UTC()
	state.LastStreakCheckDate = &stamp

	switch {
	case len(tasks) == 0:
		return state, OutcomeNothingScheduled
	case allCompleted(tasks):
		state.CurrentStreak++
		return state.Normalize(), OutcomeCredited
	default:
		state.CurrentStreak = 0
		return state.Normalize(), OutcomeReset
	}
}
