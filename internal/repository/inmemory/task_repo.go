package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/task"
	repo "streakTracker/internal/repository"

	"github.com/google/uuid"
)

type TaskStorage struct {
	*Storage
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: in-memory storage is healthy")
	return nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}

	s.tasks[taskToCreate.UUID] = taskToCreate.Clone()
	s.taskIDs = append(s.taskIDs, taskToCreate.UUID)
	return nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[taskToUpdate.UUID]; !ok {
		return repo.ErrNotFound
	}

	now := time.Now().UTC()
	taskToUpdate.UpdatedAt = &now
	s.tasks[taskToUpdate.UUID] = taskToUpdate.Clone()
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return taskToGet.Clone(), nil
}

func (s *TaskStorage) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, id := range s.taskIDs {
		t := s.tasks[id]
		if t.ParentID != nil && *t.ParentID == parentID {
			res = append(res, t.Clone())
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Order < res[j].Order
	})
	return res, nil
}

// CompleteDescendants marks every incomplete task below parentID completed.
func (s *TaskStorage) CompleteDescendants(ctx context.Context, parentID uuid.UUID, at time.Time) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	completed := 0
	queue := []uuid.UUID{parentID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, id := range s.taskIDs {
			t := s.tasks[id]
			if t.ParentID == nil || *t.ParentID != current {
				continue
			}
			queue = append(queue, t.UUID)
			if t.IsCompleted {
				continue
			}
			doneAt := at.UTC()
			t.IsCompleted = true
			t.CompletedAt = &doneAt
			t.UpdatedAt = &doneAt
			completed++
		}
	}
	return completed, nil
}

// ListScheduledBetween returns the user's tasks with a scheduled date in
// [from, to), top-level and sub-tasks alike.
func (s *TaskStorage) ListScheduledBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, filter repo.TaskFilter) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, id := range s.taskIDs {
		t := s.tasks[id]
		if t.UserID != userID || t.Scheduled == nil {
			continue
		}
		if t.Scheduled.Before(from) || !t.Scheduled.Before(to) {
			continue
		}
		if filter.Completed != nil && t.IsCompleted != *filter.Completed {
			continue
		}
		if filter.RecurringOnly && !t.IsRecurring {
			continue
		}
		res = append(res, t.Clone())
	}
	sortBySchedule(res)
	return res, nil
}

// ListRecurringAnchors returns the live head of every recurring series: the
// incomplete, scheduled, recurring rows of the user.
func (s *TaskStorage) ListRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, id := range s.taskIDs {
		t := s.tasks[id]
		if t.UserID == userID && t.IsRecurring && !t.IsCompleted && t.Scheduled != nil {
			res = append(res, t.Clone())
		}
	}
	sortBySchedule(res)
	return res, nil
}

func sortBySchedule(tasks []*task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Scheduled.Equal(*tasks[j].Scheduled) {
			return tasks[i].Scheduled.Before(*tasks[j].Scheduled)
		}
		return tasks[i].Priority < tasks[j].Priority
	})
}

// SetCompleted flips the completion flag. It fails with ErrVersionConflict
// when the row is already in the requested state, so two concurrent
// completions cannot both win.
func (s *TaskStorage) SetCompleted(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return repo.ErrNotFound
	}
	if t.IsCompleted == completed {
		return repo.ErrVersionConflict
	}

	stamp := at.UTC()
	t.IsCompleted = completed
	if completed {
		t.CompletedAt = &stamp
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = &stamp
	return nil
}

func (s *TaskStorage) HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, t := range s.tasks {
		if t.RecurringParentID != nil && *t.RecurringParentID == id {
			return true, nil
		}
	}
	return false, nil
}

// Atomic runs fn against a private copy of the task rows and publishes the
// copy only when fn returns nil. Other callers wait until it is done, so fn
// must use the store it is given and never the outer one.
func (s *TaskStorage) Atomic(ctx context.Context, fn func(repo.TaskTx) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	draft := &Storage{
		mtx:     &sync.RWMutex{},
		tasks:   make(map[uuid.UUID]*task.Task, len(s.tasks)),
		taskIDs: append([]uuid.UUID(nil), s.taskIDs...),
		users:   s.users,
		userIDs: s.userIDs,
	}
	for id, t := range s.tasks {
		draft.tasks[id] = t.Clone()
	}

	if err := fn(draft.Tasks()); err != nil {
		logger.Debug("Repository: in-memory transaction discarded")
		return err
	}

	s.tasks = draft.tasks
	s.taskIDs = draft.taskIDs
	return nil
}
