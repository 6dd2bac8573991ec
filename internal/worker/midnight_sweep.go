package worker

import (
	"context"
	"fmt"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/user"
	"streakTracker/internal/streak"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusError     = "error"
)

type UserLister interface {
	ListAll(ctx context.Context) ([]*user.User, error)
}

type DayReconciler interface {
	ReconcileUser(ctx context.Context, userID uuid.UUID, day time.Time) (streak.Outcome, int, error)
}

type UserResult struct {
	UserID      uuid.UUID      `json:"user_id" yaml:"user_id"`
	Timezone    string         `json:"timezone" yaml:"timezone"`
	Day         string         `json:"day" yaml:"day"`
	Status      string         `json:"status" yaml:"status"`
	Outcome     streak.Outcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	SeriesReset int            `json:"series_reset" yaml:"series_reset"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
}

type Report struct {
	Checked   int          `json:"checked" yaml:"checked"`
	Processed int          `json:"processed" yaml:"processed"`
	Skipped   int          `json:"skipped" yaml:"skipped"`
	Failed    int          `json:"failed" yaml:"failed"`
	Results   []UserResult `json:"results" yaml:"results"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
}

// MidnightSweep finds users whose local midnight has just passed (or is about
// to) and reconciles their local yesterday, the last day that has fully ended.
// It keeps no state between ticks: everything it needs comes from the user
// rows and the now it is given.
type MidnightSweep struct {
	users       UserLister
	reconciler  DayReconciler
	zones       *streak.Zones
	window      Window
	parallelism int
}

func NewMidnightSweep(users UserLister, reconciler DayReconciler, zones *streak.Zones, window Window, parallelism *int) *MidnightSweep {
	var parallelismToSet int
	if parallelism == nil || *parallelism < 1 {
		parallelismToSet = 4
	} else {
		parallelismToSet = *parallelism
	}
	return &MidnightSweep{
		users:       users,
		reconciler:  reconciler,
		zones:       zones,
		window:      window,
		parallelism: parallelismToSet,
	}
}

type candidate struct {
	user *user.User
	day  time.Time
	loc  *time.Location
}

func (w *MidnightSweep) Sweep(ctx context.Context, now time.Time) (*Report, error) {
	start := time.Now()

	users, err := w.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	candidates, skipped := w.selectCandidates(users, now)
	results := make([]UserResult, len(candidates), len(candidates)+len(skipped))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			results[i] = w.processUser(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Checked:   len(users),
		Results:   append(results, skipped...),
		Timestamp: now.UTC(),
	}
	for _, r := range report.Results {
		switch r.Status {
		case StatusError:
			report.Failed++
		case StatusSkipped:
			report.Skipped++
		default:
			report.Processed++
		}
	}

	logger.Info("Worker: midnight sweep finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", report.Checked),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

// selectCandidates keeps the users whose local midnight is inside the window.
// Users already processed for today come back as skipped results. Before
// midnight the day still running is never settled; yesterday is.
func (w *MidnightSweep) selectCandidates(users []*user.User, now time.Time) ([]candidate, []UserResult) {
	var (
		out     []candidate
		skipped []UserResult
	)
	for _, u := range users {
		loc := w.zones.Resolve(u.Timezone)
		local := now.In(loc)

		if _, ok := w.window.Midnight(local); !ok {
			continue
		}
		if u.LastStreakCheckDate != nil && streak.SameLocalDay(*u.LastStreakCheckDate, local, loc) {
			logger.Debug("Worker: user already processed today",
				zap.String("user_id", u.UUID.String()))
			skipped = append(skipped, UserResult{
				UserID:   u.UUID,
				Timezone: u.Timezone,
				Day:      streak.DateKey(local, loc),
				Status:   StatusSkipped,
			})
			continue
		}

		out = append(out, candidate{
			user: u,
			day:  previousDay(local),
			loc:  loc,
		})
	}
	return out, skipped
}

func (w *MidnightSweep) processUser(ctx context.Context, c candidate) (result UserResult) {
	result = UserResult{
		UserID:   c.user.UUID,
		Timezone: c.user.Timezone,
		Day:      streak.DateKey(c.day, c.loc),
	}

	defer func() {
		if p := recover(); p != nil {
			result = failed(result, fmt.Errorf("panic: %v", p))
		}
	}()

	outcome, reset, err := w.reconciler.ReconcileUser(ctx, c.user.UUID, c.day)
	if err != nil {
		return failed(result, err)
	}

	result.Status = StatusProcessed
	result.Outcome = outcome
	result.SeriesReset = reset
	return result
}

func failed(result UserResult, err error) UserResult {
	logger.Error("Worker: reconciliation failed", err,
		zap.String("user_id", result.UserID.String()),
		zap.String("timezone", result.Timezone))
	result.Status = StatusError
	result.Error = err.Error()
	return result
}
