package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Synchronizer keeps a user's daily streak in step with today's tasks. It is
// called after every task mutation and is safe to call repeatedly.
type Synchronizer struct {
	tasks TaskReader
	users UserStore
	zones *Zones
	now   func() time.Time
}

func NewSynchronizer(tasks TaskReader, users UserStore, zones *Zones) *Synchronizer {
	return &Synchronizer{
		tasks: tasks,
		users: users,
		zones: zones,
		now:   time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

// syncAttempts bounds how often SyncDailyStreak re-reads the user after losing
// a write to a concurrent sync.
const syncAttempts = 3

func (s *Synchronizer) SyncDailyStreak(ctx context.Context, userID uuid.UUID) error {
	for attempt := 1; ; attempt++ {
		err := s.syncOnce(ctx, userID)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if attempt == syncAttempts {
			return fmt.Errorf("update streak after %d attempts: %w", attempt, err)
		}
		logger.Debug("Streak: concurrent streak write, re-reading",
			zap.String("user_id", userID.String()),
			zap.Int("attempt", attempt))
	}
}

// syncOnce evaluates today against one read of the user and writes the result
// only if nobody moved the check date since that read.
func (s *Synchronizer) syncOnce(ctx context.Context, userID uuid.UUID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	loc := s.zones.Resolve(u.Timezone)
	now := s.now()
	from, to := DayBounds(now, loc)

	tasks, err := s.tasks.ListScheduledBetween(ctx, userID, from, to, repository.TaskFilter{})
	if err != nil {
		return fmt.Errorf("list today's tasks: %w", err)
	}

	next, changed := syncState(u.Streak(), tasks, now, loc)
	if !changed {
		return nil
	}

	if err := s.users.CompareAndSetStreak(ctx, userID, u.LastStreakCheckDate, next); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("update streak: %w", err)
	}

	logger.Info("Streak: daily streak synced",
		zap.String("user_id", userID.String()),
		zap.Int("current_streak", next.CurrentStreak),
		zap.Int("longest_streak", next.LongestStreak))
	return nil
}

// syncState is the decision table of the synchronizer:
//
//	all complete, not credited today -> +1, stamp now
//	not all complete, credited today -> -1 (floor 0), stamp yesterday
//	anything else, or nothing scheduled -> unchanged
func syncState(state user.StreakState, today []*task.Task, now time.Time, loc *time.Location) (user.StreakState, bool) {
	if len(today) == 0 {
		return state, false
	}

	credited := creditedOn(state.LastStreakCheckDate, now, loc)
	complete := allCompleted(today)

	switch {
	case complete && !credited:
		state.CurrentStreak++
		stamp := now.UTC()
		state.LastStreakCheckDate = &stamp
	case !complete && credited:
		state.CurrentStreak--
		yesterday := now.In(loc).AddDate(0, 0, -1).UTC()
		state.LastStreakCheckDate = &yesterday
	default:
		return state, false
	}

	return state.Normalize(), true
}
