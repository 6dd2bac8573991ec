package streak_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/repository/inmemory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func clock(value time.Time) func() time.Time {
	return func() time.Time { return value }
}

type fixture struct {
	storage *inmemory.Storage
	user    *user.User
}

func newFixture(t *testing.T, timezone string) *fixture {
	t.Helper()
	storage := inmemory.NewStorage()
	u := &user.User{UUID: uuid.New(), Timezone: timezone}
	require.NoError(t, storage.Users().Create(context.Background(), u))
	return &fixture{storage: storage, user: u}
}

func (f *fixture) addTask(t *testing.T, scheduled string, done bool) *task.Task {
	t.Helper()
	s := at(t, scheduled)
	tk := &task.Task{
		UUID:      uuid.New(),
		UserID:    f.user.UUID,
		Title:     "task " + scheduled,
		Priority:  task.DefaultPriority,
		Scheduled: &s,
	}
	if done {
		tk.IsCompleted = true
		tk.CompletedAt = &s
	}
	require.NoError(t, f.storage.Tasks().Create(context.Background(), tk))
	return tk
}

func (f *fixture) addRecurring(t *testing.T, scheduled string, done bool, seriesStreak int) *task.Task {
	t.Helper()
	tk := f.addTask(t, scheduled, done)
	tk.IsRecurring = true
	tk.RecurringPattern = json.RawMessage(`{"frequency":"daily","interval":1}`)
	tk.RecurringStreak = seriesStreak
	tk.LongestRecurringStreak = seriesStreak
	require.NoError(t, f.storage.Tasks().Update(context.Background(), tk))
	return tk
}

func (f *fixture) complete(t *testing.T, id uuid.UUID, when time.Time) {
	t.Helper()
	require.NoError(t, f.storage.Tasks().SetCompleted(context.Background(), id, true, when))
}

func (f *fixture) reload(t *testing.T) *user.User {
	t.Helper()
	u, err := f.storage.Users().GetByID(context.Background(), f.user.UUID)
	require.NoError(t, err)
	return u
}

func (f *fixture) setStreak(t *testing.T, current, longest int, last *time.Time) {
	t.Helper()
	require.NoError(t, f.storage.Users().UpdateStreak(context.Background(), f.user.UUID, user.StreakState{
		CurrentStreak:       current,
		LongestStreak:       longest,
		LastStreakCheckDate: last,
	}))
}
