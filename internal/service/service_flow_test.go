package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"streakTracker/internal/models/task"
	repo "streakTracker/internal/repository"
	"streakTracker/internal/repository/inmemory"
	"streakTracker/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowFixture struct {
	storage *inmemory.Storage
	svc     service.TaskService
	userID  uuid.UUID
}

// newFlow registers a New York user on a service whose clock reads
// Monday 2024-01-15 10:00 local time.
func newFlow(t *testing.T) *flowFixture {
	t.Helper()
	storage := inmemory.NewStorage()
	svc := service.NewTaskService(storage.Tasks(), storage.Users(), service.InMemoryType,
		service.WithClock(fixedClock("2024-01-15T15:00:00Z")))

	u, err := svc.RegisterUser(context.Background(), "America/New_York")
	require.NoError(t, err)
	return &flowFixture{storage: storage, svc: svc, userID: u.UUID}
}

func ptr(value string) *time.Time {
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return &at
}

func TestTaskFlow_DailyStreakTwoTasks(t *testing.T) {
	ctx := context.Background()
	f := newFlow(t)

	first, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Email", Scheduled: ptr("2024-01-15T14:00:00Z")})
	require.NoError(t, err)
	second, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Gym", Scheduled: ptr("2024-01-15T22:00:00Z")})
	require.NoError(t, err)

	_, err = f.svc.CompleteTask(ctx, f.userID, first.UUID)
	require.NoError(t, err)

	u, err := f.svc.GetStreak(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 0, u.CurrentStreak)

	_, err = f.svc.CompleteTask(ctx, f.userID, second.UUID)
	require.NoError(t, err)

	u, err = f.svc.GetStreak(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.CurrentStreak)
	assert.Equal(t, 1, u.LongestStreak)

	// a task on another day triggers another sync without touching today
	_, err = f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Later", Scheduled: ptr("2024-01-20T14:00:00Z")})
	require.NoError(t, err)

	u, err = f.svc.GetStreak(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, u.CurrentStreak)

	// reopening a task takes today's credit back
	_, err = f.svc.UncompleteTask(ctx, f.userID, second.UUID)
	require.NoError(t, err)

	u, err = f.svc.GetStreak(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 1, u.LongestStreak)
}

func TestTaskFlow_CompleteRecurringWithSubTask(t *testing.T) {
	ctx := context.Background()
	f := newFlow(t)

	parent, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{
		Title:            "Morning routine",
		Priority:         2,
		Scheduled:        ptr("2024-01-15T14:00:00Z"),
		IsRecurring:      true,
		RecurringPattern: json.RawMessage(`{"frequency":"daily","interval":1}`),
		Tags:             []string{"habit"},
	})
	require.NoError(t, err)

	child, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{
		Title:     "Stretch",
		Scheduled: ptr("2024-01-15T16:00:00Z"),
		ParentID:  &parent.UUID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, child.Depth)

	result, err := f.svc.CompleteTask(ctx, f.userID, parent.UUID)
	require.NoError(t, err)
	require.NotNil(t, result.Next)

	next := result.Next
	assert.True(t, next.Scheduled.Equal(*ptr("2024-01-16T14:00:00Z")))
	assert.False(t, next.IsCompleted)
	assert.Equal(t, parent.UUID, *next.RecurringParentID)
	assert.Equal(t, "Morning routine", next.Title)
	assert.Equal(t, 2, next.Priority)
	assert.Equal(t, []string{"habit"}, next.Tags)
	assert.Equal(t, 1, next.RecurringStreak)

	completedParent, err := f.svc.GetTask(ctx, f.userID, parent.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, completedParent.RecurringStreak)
	assert.Equal(t, 1, completedParent.LongestRecurringStreak)

	completedChild, err := f.svc.GetTask(ctx, f.userID, child.UUID)
	require.NoError(t, err)
	assert.True(t, completedChild.IsCompleted)

	clones, err := f.storage.Tasks().ListChildren(ctx, next.UUID)
	require.NoError(t, err)
	require.Len(t, clones, 1)
	assert.Equal(t, "Stretch", clones[0].Title)
	assert.False(t, clones[0].IsCompleted)
	assert.False(t, clones[0].IsRecurring)
	assert.Equal(t, 2*time.Hour, clones[0].Scheduled.Sub(*next.Scheduled))

	// reopening and completing again does not fork the series
	_, err = f.svc.UncompleteTask(ctx, f.userID, parent.UUID)
	require.NoError(t, err)
	again, err := f.svc.CompleteTask(ctx, f.userID, parent.UUID)
	require.NoError(t, err)
	assert.Nil(t, again.Next)
}

func TestTaskFlow_RecompletingCreditsSeriesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFlow(t)

	series, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{
		Title:            "Read",
		Scheduled:        ptr("2024-01-15T14:00:00Z"),
		IsRecurring:      true,
		RecurringPattern: json.RawMessage(`{"frequency":"daily","interval":1}`),
	})
	require.NoError(t, err)

	first, err := f.svc.CompleteTask(ctx, f.userID, series.UUID)
	require.NoError(t, err)
	require.NotNil(t, first.Next)

	for i := 0; i < 2; i++ {
		_, err = f.svc.UncompleteTask(ctx, f.userID, series.UUID)
		require.NoError(t, err)
		again, err := f.svc.CompleteTask(ctx, f.userID, series.UUID)
		require.NoError(t, err)
		assert.Nil(t, again.Next)
		assert.Equal(t, 1, again.Task.RecurringStreak)
	}

	got, err := f.svc.GetTask(ctx, f.userID, series.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RecurringStreak)
	assert.Equal(t, 1, got.LongestRecurringStreak)

	successor, err := f.svc.GetTask(ctx, f.userID, first.Next.UUID)
	require.NoError(t, err)
	assert.Equal(t, got.RecurringStreak, successor.RecurringStreak)
	assert.Nil(t, successor.SeriesCreditedAt)
}

// flakyTasks fails the next failures successor inserts made inside a
// transaction.
type flakyTasks struct {
	*inmemory.TaskStorage
	failures int
}

func (f *flakyTasks) Atomic(ctx context.Context, fn func(repo.TaskTx) error) error {
	return f.TaskStorage.Atomic(ctx, func(tx repo.TaskTx) error {
		return fn(&flakyTx{TaskTx: tx, owner: f})
	})
}

type flakyTx struct {
	repo.TaskTx
	owner *flakyTasks
}

func (f *flakyTx) Create(ctx context.Context, t *task.Task) error {
	if t.RecurringParentID != nil && f.owner.failures > 0 {
		f.owner.failures--
		return errors.New("disk full")
	}
	return f.TaskTx.Create(ctx, t)
}

func TestTaskFlow_FailedMaterializationKeepsTaskOpen(t *testing.T) {
	ctx := context.Background()
	storage := inmemory.NewStorage()
	tasks := &flakyTasks{TaskStorage: storage.Tasks(), failures: 1}
	svc := service.NewTaskService(tasks, storage.Users(), service.InMemoryType,
		service.WithClock(fixedClock("2024-01-15T15:00:00Z")))

	u, err := svc.RegisterUser(ctx, "America/New_York")
	require.NoError(t, err)
	series, err := svc.CreateTask(ctx, u.UUID, service.CreateTaskInput{
		Title:            "Walk",
		Scheduled:        ptr("2024-01-15T14:00:00Z"),
		IsRecurring:      true,
		RecurringPattern: json.RawMessage(`{"frequency":"daily","interval":1}`),
	})
	require.NoError(t, err)

	_, err = svc.CompleteTask(ctx, u.UUID, series.UUID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "materialize next occurrence")

	got, err := svc.GetTask(ctx, u.UUID, series.UUID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, 0, got.RecurringStreak)
	exists, err := storage.Tasks().HasSuccessor(ctx, series.UUID)
	require.NoError(t, err)
	assert.False(t, exists)

	// the retry finds the task open and finishes the whole completion
	result, err := svc.CompleteTask(ctx, u.UUID, series.UUID)
	require.NoError(t, err)
	require.NotNil(t, result.Next)
	assert.Equal(t, 1, result.Task.RecurringStreak)

	got, err = svc.GetTask(ctx, u.UUID, series.UUID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, 1, got.RecurringStreak)
}

func TestTaskFlow_RecurringSeriesEnds(t *testing.T) {
	ctx := context.Background()
	f := newFlow(t)

	last, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{
		Title:            "Course",
		Scheduled:        ptr("2024-01-15T14:00:00Z"),
		IsRecurring:      true,
		RecurringPattern: json.RawMessage(`{"frequency":"weekly","interval":1,"endDate":"2024-01-20"}`),
	})
	require.NoError(t, err)

	result, err := f.svc.CompleteTask(ctx, f.userID, last.UUID)
	require.NoError(t, err)
	assert.Nil(t, result.Next)
}

func TestTaskFlow_Schedule(t *testing.T) {
	ctx := context.Background()
	f := newFlow(t)

	anchor, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{
		Title:            "Journal",
		Scheduled:        ptr("2024-01-16T14:00:00Z"),
		IsRecurring:      true,
		RecurringPattern: json.RawMessage(`"{\"frequency\":\"daily\",\"interval\":1}"`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"frequency":"daily","interval":1}`, string(anchor.RecurringPattern))

	_, err = f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Dentist", Priority: 1, Scheduled: ptr("2024-01-16T14:00:00Z")})
	require.NoError(t, err)
	done, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Done", Scheduled: ptr("2024-01-17T14:00:00Z")})
	require.NoError(t, err)
	_, err = f.svc.CompleteTask(ctx, f.userID, done.UUID)
	require.NoError(t, err)

	// default window: Monday 2024-01-15 00:00 New York plus 35 days
	schedule, err := f.svc.GetSchedule(ctx, f.userID, nil, nil)
	require.NoError(t, err)

	virtual := 0
	ids := map[uuid.UUID]bool{}
	for i, item := range schedule {
		if item.Virtual {
			virtual++
		}
		assert.False(t, ids[item.UUID], "duplicate id %s", item.UUID)
		ids[item.UUID] = true
		if i > 0 {
			assert.False(t, item.Scheduled.Before(*schedule[i-1].Scheduled))
		}
	}
	// Jan 17 .. Feb 18
	assert.Equal(t, 33, virtual)
	require.Len(t, schedule, 35)
	assert.Equal(t, "Dentist", schedule[0].Title)
	assert.Equal(t, anchor.UUID, schedule[1].UUID)

	again, err := f.svc.GetSchedule(ctx, f.userID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, schedule[2].UUID, again[2].UUID)

	_, err = f.svc.GetSchedule(ctx, f.userID, ptr("2024-02-01T00:00:00Z"), ptr("2024-01-01T00:00:00Z"))
	assert.Equal(t, service.CodeValidation, businessCode(t, err))
}

func TestTaskFlow_DepthLimit(t *testing.T) {
	ctx := context.Background()
	f := newFlow(t)

	root, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Root"})
	require.NoError(t, err)
	mid, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Mid", ParentID: &root.UUID})
	require.NoError(t, err)
	leaf, err := f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Leaf", ParentID: &mid.UUID})
	require.NoError(t, err)
	assert.Equal(t, task.MaxDepth, leaf.Depth)

	_, err = f.svc.CreateTask(ctx, f.userID, service.CreateTaskInput{Title: "Too deep", ParentID: &leaf.UUID})
	assert.Equal(t, service.CodeValidation, businessCode(t, err))

	result, err := f.svc.CompleteTask(ctx, f.userID, root.UUID)
	require.NoError(t, err)
	assert.Nil(t, result.Next)

	gotLeaf, err := f.svc.GetTask(ctx, f.userID, leaf.UUID)
	require.NoError(t, err)
	assert.True(t, gotLeaf.IsCompleted)
}
