package inmemory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/repository"
	"streakTracker/internal/repository/inmemory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(userID uuid.UUID, scheduled *time.Time) *task.Task {
	return &task.Task{
		UUID:      uuid.New(),
		UserID:    userID,
		Title:     "Test Task",
		Priority:  task.DefaultPriority,
		Scheduled: scheduled,
	}
}

func ts(value string) *time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

// TestTaskStorage_CreateAndGet checks that stored tasks are copies.
func TestTaskStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	tasks := storage.Tasks()

	require.NoError(t, tasks.HealthCheck(ctx))

	created := newTask(uuid.New(), nil)
	created.Tags = []string{"home"}
	require.NoError(t, tasks.Create(ctx, created))
	assert.False(t, created.CreatedAt.IsZero())

	created.Title = "changed after create"
	created.Tags[0] = "work"

	got, err := tasks.GetByID(ctx, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Test Task", got.Title)
	assert.Equal(t, []string{"home"}, got.Tags)

	_, err = tasks.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTaskStorage_Update(t *testing.T) {
	ctx := context.Background()
	tasks := inmemory.NewStorage().Tasks()

	tk := newTask(uuid.New(), nil)
	require.NoError(t, tasks.Create(ctx, tk))

	tk.Title = "Updated"
	require.NoError(t, tasks.Update(ctx, tk))
	assert.NotNil(t, tk.UpdatedAt)

	got, err := tasks.GetByID(ctx, tk.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)

	err = tasks.Update(ctx, newTask(uuid.New(), nil))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTaskStorage_SetCompleted(t *testing.T) {
	ctx := context.Background()
	tasks := inmemory.NewStorage().Tasks()
	at := *ts("2024-01-15T10:00:00Z")

	tk := newTask(uuid.New(), nil)
	require.NoError(t, tasks.Create(ctx, tk))

	require.NoError(t, tasks.SetCompleted(ctx, tk.UUID, true, at))
	got, err := tasks.GetByID(ctx, tk.UUID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(at))

	err = tasks.SetCompleted(ctx, tk.UUID, true, at)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	require.NoError(t, tasks.SetCompleted(ctx, tk.UUID, false, at))
	got, err = tasks.GetByID(ctx, tk.UUID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
	assert.Nil(t, got.CompletedAt)

	err = tasks.SetCompleted(ctx, uuid.New(), true, at)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTaskStorage_ChildrenAndDescendants(t *testing.T) {
	ctx := context.Background()
	tasks := inmemory.NewStorage().Tasks()
	owner := uuid.New()

	parent := newTask(owner, nil)
	require.NoError(t, tasks.Create(ctx, parent))

	second := newTask(owner, nil)
	second.ParentID = &parent.UUID
	second.Order = 2
	first := newTask(owner, nil)
	first.ParentID = &parent.UUID
	first.Order = 1
	require.NoError(t, tasks.Create(ctx, second))
	require.NoError(t, tasks.Create(ctx, first))

	grandchild := newTask(owner, nil)
	grandchild.ParentID = &first.UUID
	require.NoError(t, tasks.Create(ctx, grandchild))

	done := newTask(owner, nil)
	done.ParentID = &parent.UUID
	done.Order = 3
	done.IsCompleted = true
	done.CompletedAt = ts("2024-01-01T00:00:00Z")
	require.NoError(t, tasks.Create(ctx, done))

	children, err := tasks.ListChildren(ctx, parent.UUID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, first.UUID, children[0].UUID)
	assert.Equal(t, second.UUID, children[1].UUID)

	completed, err := tasks.CompleteDescendants(ctx, parent.UUID, *ts("2024-01-15T10:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 3, completed)

	got, err := tasks.GetByID(ctx, grandchild.UUID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)

	got, err = tasks.GetByID(ctx, done.UUID)
	require.NoError(t, err)
	assert.True(t, got.CompletedAt.Equal(*ts("2024-01-01T00:00:00Z")))

	got, err = tasks.GetByID(ctx, parent.UUID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
}

func TestTaskStorage_ListScheduledBetween(t *testing.T) {
	ctx := context.Background()
	tasks := inmemory.NewStorage().Tasks()
	owner := uuid.New()

	late := newTask(owner, ts("2024-01-15T18:00:00Z"))
	early := newTask(owner, ts("2024-01-15T08:00:00Z"))
	urgent := newTask(owner, ts("2024-01-15T18:00:00Z"))
	urgent.Priority = 1
	recurring := newTask(owner, ts("2024-01-15T12:00:00Z"))
	recurring.IsRecurring = true
	edge := newTask(owner, ts("2024-01-16T00:00:00Z"))
	foreign := newTask(uuid.New(), ts("2024-01-15T09:00:00Z"))
	unscheduled := newTask(owner, nil)

	for _, tk := range []*task.Task{late, early, urgent, recurring, edge, foreign, unscheduled} {
		require.NoError(t, tasks.Create(ctx, tk))
	}
	require.NoError(t, tasks.SetCompleted(ctx, early.UUID, true, *ts("2024-01-15T09:00:00Z")))

	from, to := *ts("2024-01-15T00:00:00Z"), *ts("2024-01-16T00:00:00Z")

	ids := func(list []*task.Task) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(list))
		for _, tk := range list {
			out = append(out, tk.UUID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter repository.TaskFilter
		want   []uuid.UUID
	}{
		{
			name: "all in range ordered by time then priority",
			want: []uuid.UUID{early.UUID, recurring.UUID, urgent.UUID, late.UUID},
		},
		{
			name:   "incomplete only",
			filter: repository.TaskFilter{Completed: repository.Incomplete()},
			want:   []uuid.UUID{recurring.UUID, urgent.UUID, late.UUID},
		},
		{
			name:   "recurring only",
			filter: repository.TaskFilter{RecurringOnly: true},
			want:   []uuid.UUID{recurring.UUID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tasks.ListScheduledBetween(ctx, owner, from, to, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestTaskStorage_AnchorsAndSuccessors(t *testing.T) {
	ctx := context.Background()
	tasks := inmemory.NewStorage().Tasks()
	owner := uuid.New()

	head := newTask(owner, ts("2024-01-15T08:00:00Z"))
	head.IsRecurring = true
	require.NoError(t, tasks.Create(ctx, head))

	has, err := tasks.HasSuccessor(ctx, head.UUID)
	require.NoError(t, err)
	assert.False(t, has)

	next := newTask(owner, ts("2024-01-16T08:00:00Z"))
	next.IsRecurring = true
	next.RecurringParentID = &head.UUID
	require.NoError(t, tasks.Create(ctx, next))
	require.NoError(t, tasks.SetCompleted(ctx, head.UUID, true, *ts("2024-01-15T09:00:00Z")))

	has, err = tasks.HasSuccessor(ctx, head.UUID)
	require.NoError(t, err)
	assert.True(t, has)

	anchors, err := tasks.ListRecurringAnchors(ctx, owner)
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	assert.Equal(t, next.UUID, anchors[0].UUID)
}

func TestUserStorage_Streak(t *testing.T) {
	ctx := context.Background()
	users := inmemory.NewStorage().Users()

	u := &user.User{UUID: uuid.New(), Timezone: "UTC"}
	require.NoError(t, users.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	last := ts("2024-01-15T10:00:00Z")
	require.NoError(t, users.UpdateStreak(ctx, u.UUID, user.StreakState{CurrentStreak: 4, LongestStreak: 2, LastStreakCheckDate: last}))

	got, err := users.GetByID(ctx, u.UUID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentStreak)
	assert.Equal(t, 4, got.LongestStreak)
	assert.True(t, got.LastStreakCheckDate.Equal(*last))

	require.NoError(t, users.UpdateTimezone(ctx, u.UUID, "Asia/Tokyo"))
	got, err = users.GetByID(ctx, u.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", got.Timezone)

	all, err := users.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, users.UpdateStreak(ctx, uuid.New(), user.StreakState{}), repository.ErrNotFound)
	assert.ErrorIs(t, users.UpdateTimezone(ctx, uuid.New(), "UTC"), repository.ErrNotFound)
}

// TestUserStorage_ApplyReconciliation checks the all-or-nothing write.
func TestUserStorage_ApplyReconciliation(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	users, tasks := storage.Users(), storage.Tasks()

	u := &user.User{UUID: uuid.New(), Timezone: "UTC", CurrentStreak: 3, LongestStreak: 3}
	require.NoError(t, users.Create(ctx, u))

	series := newTask(u.UUID, ts("2024-01-15T08:00:00Z"))
	series.IsRecurring = true
	series.RecurringStreak = 5
	series.LongestRecurringStreak = 5
	require.NoError(t, tasks.Create(ctx, series))

	stamp := ts("2024-01-15T00:00:00Z")
	state := &user.StreakState{CurrentStreak: 0, LongestStreak: 3, LastStreakCheckDate: stamp}

	err := users.ApplyReconciliation(ctx, u.UUID, state, []uuid.UUID{series.UUID, uuid.New()})
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	got, err := users.GetByID(ctx, u.UUID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Nil(t, got.LastStreakCheckDate)

	gotTask, err := tasks.GetByID(ctx, series.UUID)
	require.NoError(t, err)
	assert.Equal(t, 5, gotTask.RecurringStreak)

	require.NoError(t, users.ApplyReconciliation(ctx, u.UUID, state, []uuid.UUID{series.UUID}))

	got, err = users.GetByID(ctx, u.UUID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 3, got.LongestStreak)

	gotTask, err = tasks.GetByID(ctx, series.UUID)
	require.NoError(t, err)
	assert.Zero(t, gotTask.RecurringStreak)
	assert.Equal(t, 5, gotTask.LongestRecurringStreak)
}

func TestStorage_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	owner := uuid.New()
	require.NoError(t, storage.Users().Create(ctx, &user.User{UUID: owner, Timezone: "UTC"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := newTask(owner, ts("2024-01-15T08:00:00Z"))
			_ = storage.Tasks().Create(ctx, tk)
			_, _ = storage.Tasks().ListScheduledBetween(ctx, owner, *ts("2024-01-15T00:00:00Z"), *ts("2024-01-16T00:00:00Z"), repository.TaskFilter{})
			_ = storage.Users().UpdateStreak(ctx, owner, user.StreakState{CurrentStreak: 1})
		}()
	}
	wg.Wait()

	all, err := storage.Tasks().ListScheduledBetween(ctx, owner, *ts("2024-01-15T00:00:00Z"), *ts("2024-01-16T00:00:00Z"), repository.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestTaskStorage_AtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	tasks := storage.Tasks()
	userID := uuid.New()

	series := newTask(userID, ts("2024-01-15T09:00:00Z"))
	series.IsRecurring = true
	require.NoError(t, tasks.Create(ctx, series))
	doneAt := *ts("2024-01-15T10:00:00Z")
	boom := errors.New("successor insert failed")

	err := tasks.Atomic(ctx, func(tx repository.TaskTx) error {
		require.NoError(t, tx.SetCompleted(ctx, series.UUID, true, doneAt))
		successor := newTask(userID, ts("2024-01-16T09:00:00Z"))
		successor.RecurringParentID = &series.UUID
		require.NoError(t, tx.Create(ctx, successor))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := tasks.GetByID(ctx, series.UUID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
	exists, err := tasks.HasSuccessor(ctx, series.UUID)
	require.NoError(t, err)
	assert.False(t, exists)

	err = tasks.Atomic(ctx, func(tx repository.TaskTx) error {
		return tx.SetCompleted(ctx, series.UUID, true, doneAt)
	})
	require.NoError(t, err)

	got, err = tasks.GetByID(ctx, series.UUID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
}

func TestUserStorage_CompareAndSetStreak(t *testing.T) {
	ctx := context.Background()
	users := inmemory.NewStorage().Users()

	u := &user.User{UUID: uuid.New(), Timezone: "UTC"}
	require.NoError(t, users.Create(ctx, u))
	first := ts("2024-01-15T09:00:00Z")
	second := ts("2024-01-16T09:00:00Z")

	require.NoError(t, users.CompareAndSetStreak(ctx, u.UUID, nil,
		user.StreakState{CurrentStreak: 1, LongestStreak: 1, LastStreakCheckDate: first}))

	// a second writer that read the same empty stamp loses
	err := users.CompareAndSetStreak(ctx, u.UUID, nil,
		user.StreakState{CurrentStreak: 1, LongestStreak: 1, LastStreakCheckDate: second})
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	require.NoError(t, users.CompareAndSetStreak(ctx, u.UUID, ts("2024-01-15T09:00:00Z"),
		user.StreakState{CurrentStreak: 2, LongestStreak: 2, LastStreakCheckDate: second}))

	got, err := users.GetByID(ctx, u.UUID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStreak)

	err = users.CompareAndSetStreak(ctx, uuid.New(), nil, user.StreakState{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
