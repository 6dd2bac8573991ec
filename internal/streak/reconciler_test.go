package streak_test

import (
	"context"
	"testing"
	"time"

	"streakTracker/internal/streak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileDay_Outcomes(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name        string
		seed        func(t *testing.T, f *fixture)
		wantOutcome streak.Outcome
		wantCurrent int
		wantLongest int
		wantStamp   string
	}{
		{
			name: "all complete is credited",
			seed: func(t *testing.T, f *fixture) {
				f.setStreak(t, 2, 2, nil)
				f.addTask(t, "2024-01-15T14:00:00Z", true)
				f.addTask(t, "2024-01-15T22:00:00Z", true)
			},
			wantOutcome: streak.OutcomeCredited,
			wantCurrent: 3,
			wantLongest: 3,
			wantStamp:   "2024-01-15",
		},
		{
			name: "one incomplete resets and keeps longest",
			seed: func(t *testing.T, f *fixture) {
				f.setStreak(t, 4, 7, nil)
				f.addTask(t, "2024-01-15T14:00:00Z", true)
				f.addTask(t, "2024-01-15T22:00:00Z", false)
			},
			wantOutcome: streak.OutcomeReset,
			wantCurrent: 0,
			wantLongest: 7,
			wantStamp:   "2024-01-15",
		},
		{
			name: "nothing scheduled only stamps the day",
			seed: func(t *testing.T, f *fixture) {
				f.setStreak(t, 4, 7, nil)
				f.addTask(t, "2024-01-16T14:00:00Z", false)
			},
			wantOutcome: streak.OutcomeNothingScheduled,
			wantCurrent: 4,
			wantLongest: 7,
			wantStamp:   "2024-01-15",
		},
		{
			name: "already processed is left alone",
			seed: func(t *testing.T, f *fixture) {
				last := at(t, "2024-01-15T23:00:00Z") // 18:00 local
				f.setStreak(t, 4, 7, &last)
				f.addTask(t, "2024-01-15T22:00:00Z", false)
			},
			wantOutcome: streak.OutcomeAlreadyProcessed,
			wantCurrent: 4,
			wantLongest: 7,
			wantStamp:   "2024-01-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "America/New_York")
			tt.seed(t, f)

			r := streak.NewReconciler(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC"))
			outcome, err := r.ReconcileDay(context.Background(), f.user.UUID, at(t, "2024-01-15T17:00:00Z"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, outcome)

			u := f.reload(t)
			assert.Equal(t, tt.wantCurrent, u.CurrentStreak)
			assert.Equal(t, tt.wantLongest, u.LongestStreak)
			require.NotNil(t, u.LastStreakCheckDate)
			assert.Equal(t, tt.wantStamp, streak.DateKey(*u.LastStreakCheckDate, ny))
		})
	}
}

func TestReconcileDay_RunsOncePerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC")
	f.addTask(t, "2024-01-15T10:00:00Z", true)
	day := at(t, "2024-01-15T12:00:00Z")

	r := streak.NewReconciler(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC"))

	outcome, err := r.ReconcileDay(ctx, f.user.UUID, day)
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeCredited, outcome)

	outcome, err = r.ReconcileDay(ctx, f.user.UUID, day)
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeAlreadyProcessed, outcome)
	assert.Equal(t, 1, f.reload(t).CurrentStreak)
}

func TestReconcileDay_NoDoubleCreditAfterSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "America/New_York")
	only := f.addTask(t, "2024-01-15T14:00:00Z", false)
	now := at(t, "2024-01-16T01:00:00Z") // 20:00 local on the 15th

	f.complete(t, only.UUID, now)
	sync := streak.NewSynchronizer(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC")).WithClock(clock(now))
	require.NoError(t, sync.SyncDailyStreak(ctx, f.user.UUID))
	require.Equal(t, 1, f.reload(t).CurrentStreak)

	r := streak.NewReconciler(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC"))
	outcome, reset, err := r.ReconcileUser(ctx, f.user.UUID, at(t, "2024-01-15T17:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeAlreadyProcessed, outcome)
	assert.Zero(t, reset)
	assert.Equal(t, 1, f.reload(t).CurrentStreak)
}

func TestReconcileRecurringSeries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "UTC")
	missed := f.addRecurring(t, "2024-01-15T08:00:00Z", false, 3)
	kept := f.addRecurring(t, "2024-01-15T09:00:00Z", true, 5)
	later := f.addRecurring(t, "2024-01-16T08:00:00Z", false, 2)

	r := streak.NewReconciler(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC"))
	reset, err := r.ReconcileRecurringSeries(ctx, f.user.UUID, at(t, "2024-01-15T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := f.storage.Tasks().GetByID(ctx, missed.UUID)
	require.NoError(t, err)
	assert.Zero(t, got.RecurringStreak)
	assert.Equal(t, 3, got.LongestRecurringStreak)

	got, err = f.storage.Tasks().GetByID(ctx, kept.UUID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.RecurringStreak)

	got, err = f.storage.Tasks().GetByID(ctx, later.UUID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RecurringStreak)

	// the daily streak belongs to ReconcileDay
	assert.Nil(t, f.reload(t).LastStreakCheckDate)
}

func TestReconcileUser_BothPasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Europe/Berlin")
	f.setStreak(t, 6, 6, nil)
	missed := f.addRecurring(t, "2024-01-15T07:00:00Z", false, 4)
	f.addTask(t, "2024-01-15T12:00:00Z", true)

	r := streak.NewReconciler(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC"))
	outcome, reset, err := r.ReconcileUser(ctx, f.user.UUID, at(t, "2024-01-15T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeReset, outcome)
	assert.Equal(t, 1, reset)

	u := f.reload(t)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)

	got, err := f.storage.Tasks().GetByID(ctx, missed.UUID)
	require.NoError(t, err)
	assert.Zero(t, got.RecurringStreak)
}

func TestReconcileUser_UnknownTimezoneFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Mars/Olympus_Mons")
	f.addTask(t, "2024-01-15T23:30:00Z", true)

	r := streak.NewReconciler(f.storage.Tasks(), f.storage.Users(), streak.NewZones("UTC"))
	outcome, _, err := r.ReconcileUser(ctx, f.user.UUID, at(t, "2024-01-15T12:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeCredited, outcome)
	assert.Equal(t, 1, f.reload(t).CurrentStreak)
}
