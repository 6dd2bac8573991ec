package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/recurrence"
	rep "streakTracker/internal/repository"
	"streakTracker/internal/streak"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"go.uber.org/zap"
)

type RepoType string

const (
	InMemoryType RepoType = "inmemory"
	PostgresType RepoType = "postgres"
	SQLiteType   RepoType = "sqlite"
)

const (
	maxTitleLength  = 255
	scheduleDays    = 35
	maxScheduleSpan = 366 * 24 * time.Hour
)

type CreateTaskInput struct {
	Title            string
	Description      string
	Priority         int
	Scheduled        *time.Time
	Duration         *int
	ParentID         *uuid.UUID
	AreaID           *uuid.UUID
	Tags             []string
	Order            int
	IsRecurring      bool
	RecurringPattern json.RawMessage
}

type CompletionResult struct {
	Task *task.Task
	// Next is the materialized successor of a recurring task, if any.
	Next *task.Task
}

type TaskService struct {
	tasks    TaskRepository
	users    UserRepository
	zones    *streak.Zones
	streaks  *streak.Synchronizer
	now      func() time.Time
	RepoType RepoType
}

func NewTaskService(tasks TaskRepository, users UserRepository, repoType RepoType, opts ...Option) TaskService {
	s := TaskService{
		tasks:    tasks,
		users:    users,
		zones:    streak.NewZones("UTC"),
		now:      time.Now,
		RepoType: repoType,
	}
	for _, opt := range opts {
		opt(&s)
	}

	s.streaks = streak.NewSynchronizer(tasks, users, s.zones).WithClock(s.now)
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.tasks.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", err)
	}
	return nil
}

func (s *TaskService) RegisterUser(ctx context.Context, timezone string) (*user.User, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, NewValidationError("timezone", "unknown IANA timezone")
		}
	}

	u := &user.User{
		UUID:      uuid.New(),
		Timezone:  timezone,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Info("Service: user registered",
		zap.String("user_id", u.UUID.String()),
		zap.String("timezone", u.Timezone))
	return u, nil
}

func (s *TaskService) GetStreak(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	return s.loadUser(ctx, userID)
}

func (s *TaskService) UpdateTimezone(ctx context.Context, userID uuid.UUID, timezone string) (*user.User, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return nil, NewValidationError("timezone", "must not be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, NewValidationError("timezone", "unknown IANA timezone")
	}

	if err := s.users.UpdateTimezone(ctx, userID, timezone); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewNotFound("user", userID.String())
		}
		return nil, fmt.Errorf("update timezone: %w", err)
	}

	// today's boundaries moved with the zone
	s.syncStreak(ctx, userID)
	return s.loadUser(ctx, userID)
}

func (s *TaskService) CreateTask(ctx context.Context, userID uuid.UUID, input CreateTaskInput) (*task.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, NewValidationError("title", "must not be empty")
	}
	if len(title) > maxTitleLength {
		return nil, NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}

	priority := input.Priority
	if priority == 0 {
		priority = task.DefaultPriority
	}
	if priority < 1 || priority > 4 {
		return nil, NewValidationError("priority", "must be between 1 and 4")
	}
	if input.Duration != nil && *input.Duration < 0 {
		return nil, NewValidationError("duration", "must not be negative")
	}
	if input.IsRecurring && input.ParentID != nil {
		return nil, NewValidationError("is_recurring", "sub-tasks cannot recur")
	}

	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	newTask := &task.Task{
		UUID:        uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Priority:    priority,
		Duration:    input.Duration,
		AreaID:      input.AreaID,
		Tags:        input.Tags,
		Order:       input.Order,
		CreatedAt:   s.now().UTC(),
	}
	if input.Scheduled != nil {
		scheduled := input.Scheduled.UTC()
		newTask.Scheduled = &scheduled
	}

	if input.ParentID != nil {
		parent, err := s.loadOwned(ctx, userID, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Depth+1 > task.MaxDepth {
			return nil, NewBusinessError(CodeValidation,
				fmt.Sprintf("sub-tasks can be nested at most %d levels deep", task.MaxDepth),
				ToDetail("field", "parent_id"),
				ToDetail("max_depth", task.MaxDepth))
		}
		parentID := parent.UUID
		newTask.ParentID = &parentID
		newTask.Depth = parent.Depth + 1
	}

	if input.IsRecurring {
		pattern, err := recurrence.Parse(input.RecurringPattern)
		if err != nil {
			return nil, NewValidationError("recurring_pattern", err.Error())
		}
		if newTask.Scheduled == nil {
			return nil, NewValidationError("scheduled_date", "recurring tasks need a scheduled date")
		}
		canonical, err := json.Marshal(pattern)
		if err != nil {
			return nil, fmt.Errorf("encode pattern: %w", err)
		}
		newTask.IsRecurring = true
		newTask.RecurringPattern = canonical
	}

	if err := s.tasks.Create(ctx, newTask); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	logger.Info("Service: task created",
		zap.String("task_id", newTask.UUID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("recurring", newTask.IsRecurring))

	s.syncStreak(ctx, userID)
	return newTask, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	return s.loadOwned(ctx, userID, id)
}

// CompleteTask marks the task and its whole subtree complete. For recurring
// tasks it then bumps the series streak and materializes the next occurrence.
// All of it commits together or not at all, so a failed run can be retried.
func (s *TaskService) CompleteTask(ctx context.Context, userID, id uuid.UUID) (*CompletionResult, error) {
	current, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if current.IsCompleted {
		return nil, alreadyCompleted(id)
	}

	// resolved up front: the transaction below only sees task rows
	loc := time.UTC
	if current.IsRecurring {
		u, err := s.loadUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		loc = s.zones.Resolve(u.Timezone)
	}

	doneAt := s.now().UTC()
	result := &CompletionResult{}
	cascaded := 0

	err = s.tasks.Atomic(ctx, func(tx rep.TaskTx) error {
		if err := tx.SetCompleted(ctx, id, true, doneAt); err != nil {
			switch {
			case errors.Is(err, rep.ErrVersionConflict):
				return alreadyCompleted(id)
			case errors.Is(err, rep.ErrNotFound):
				return NewNotFound("task", id.String())
			}
			return fmt.Errorf("complete task: %w", err)
		}

		n, err := tx.CompleteDescendants(ctx, id, doneAt)
		if err != nil {
			return fmt.Errorf("complete sub-tasks: %w", err)
		}
		cascaded = n

		completed := current.Clone()
		completed.IsCompleted = true
		completed.CompletedAt = &doneAt
		result.Task = completed
		if !completed.IsRecurring {
			return nil
		}

		next, err := s.advanceSeries(ctx, tx, completed, loc)
		if err != nil {
			return err
		}
		result.Next = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: task completed",
		zap.String("task_id", id.String()),
		zap.Int("sub_tasks_completed", cascaded),
		zap.Bool("materialized", result.Next != nil))

	s.syncStreak(ctx, userID)
	return result, nil
}

func (s *TaskService) advanceSeries(ctx context.Context, tx rep.TaskTx, completed *task.Task, loc *time.Location) (*task.Task, error) {
	if streak.OnRecurringCompletion(completed, loc) {
		if err := tx.Update(ctx, completed); err != nil {
			return nil, fmt.Errorf("update series streak: %w", err)
		}
	}

	next, err := recurrence.NewMaterializer(tx).MaterializeNext(ctx, completed, loc)
	if err != nil {
		return nil, fmt.Errorf("materialize next occurrence: %w", err)
	}
	return next, nil
}

// UncompleteTask clears the completion of a single task. Sub-tasks and any
// already materialized successor are left as they are.
func (s *TaskService) UncompleteTask(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	current, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !current.IsCompleted {
		return nil, notCompleted(id)
	}

	at := s.now().UTC()
	if err := s.tasks.SetCompleted(ctx, id, false, at); err != nil {
		switch {
		case errors.Is(err, rep.ErrVersionConflict):
			return nil, notCompleted(id)
		case errors.Is(err, rep.ErrNotFound):
			return nil, NewNotFound("task", id.String())
		}
		return nil, fmt.Errorf("uncomplete task: %w", err)
	}
	current.IsCompleted = false
	current.CompletedAt = nil
	current.UpdatedAt = &at

	logger.Info("Service: task reopened", zap.String("task_id", id.String()))

	s.syncStreak(ctx, userID)
	return current, nil
}

// GetSchedule lists the user's open tasks in [from, to) together with the
// virtual occurrences of every live recurring series. Nil bounds default to
// the current local week, Monday first, plus 35 days.
func (s *TaskService) GetSchedule(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]*task.Task, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := s.zones.Resolve(u.Timezone)

	var start, end time.Time
	if from != nil {
		start = from.UTC()
	} else {
		week := &now.Config{WeekStartDay: time.Monday, TimeLocation: loc}
		start = week.With(s.now().In(loc)).BeginningOfWeek().UTC()
	}
	if to != nil {
		end = to.UTC()
	} else {
		end = start.In(loc).AddDate(0, 0, scheduleDays).UTC()
	}
	if !end.After(start) {
		return nil, NewValidationError("to", "must be after from")
	}
	if end.Sub(start) > maxScheduleSpan {
		return nil, NewValidationError("to", "schedule range must not exceed one year")
	}

	stored, err := s.tasks.ListScheduledBetween(ctx, userID, start, end, rep.TaskFilter{Completed: rep.Incomplete()})
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}

	anchors, err := s.tasks.ListRecurringAnchors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring tasks: %w", err)
	}

	schedule := stored
	projected := 0
	for _, anchor := range anchors {
		occurrences := recurrence.Project(anchor, start.In(loc), end.In(loc))
		projected += len(occurrences)
		schedule = append(schedule, occurrences...)
	}

	sort.SliceStable(schedule, func(i, j int) bool {
		a, b := schedule[i], schedule[j]
		if !a.Scheduled.Equal(*b.Scheduled) {
			return a.Scheduled.Before(*b.Scheduled)
		}
		return a.Priority < b.Priority
	})

	logger.Debug("Service: schedule built",
		zap.String("user_id", userID.String()),
		zap.Int("stored", len(stored)),
		zap.Int("projected", projected))
	return schedule, nil
}

// syncStreak runs the synchronizer after a mutation. Its failures never fail
// the mutation; the nightly sweep repairs whatever is left behind.
func (s *TaskService) syncStreak(ctx context.Context, userID uuid.UUID) {
	if err := s.streaks.SyncDailyStreak(ctx, userID); err != nil {
		logger.Warn("Service: streak sync failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

func (s *TaskService) loadUser(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: user not found", zap.String("target_id", userID.String()))
			return nil, NewNotFound("user", userID.String())
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// loadOwned hides tasks of other users behind NOT_FOUND.
func (s *TaskService) loadOwned(ctx context.Context, userID, id uuid.UUID) (*task.Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("target_id", id.String()))
			return nil, NewNotFound("task", id.String())
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t.UserID != userID {
		logger.Warn("Service: task belongs to another user",
			zap.String("target_id", id.String()),
			zap.String("user_id", userID.String()))
		return nil, NewNotFound("task", id.String())
	}
	return t, nil
}

func alreadyCompleted(id uuid.UUID) *BusinessError {
	return NewBusinessError(CodeAlreadyCompleted, "task is already completed", ToDetail("id", id.String()))
}

func notCompleted(id uuid.UUID) *BusinessError {
	return NewBusinessError(CodeNotCompleted, "task is not completed", ToDetail("id", id.String()))
}
