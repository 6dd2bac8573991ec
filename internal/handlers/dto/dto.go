package dto

import (
	"encoding/json"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"
	"streakTracker/internal/service"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Priority         int             `json:"priority,omitempty"`
	ScheduledDate    *time.Time      `json:"scheduled_date,omitempty"`
	Duration         *int            `json:"duration,omitempty"`
	ParentID         *uuid.UUID      `json:"parent_id,omitempty"`
	AreaID           *uuid.UUID      `json:"area_id,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	Order            int             `json:"order,omitempty"`
	IsRecurring      bool            `json:"is_recurring"`
	RecurringPattern json.RawMessage `json:"recurring_pattern,omitempty"`
}

func (r CreateTaskRequest) ToInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:            r.Title,
		Description:      r.Description,
		Priority:         r.Priority,
		Scheduled:        r.ScheduledDate,
		Duration:         r.Duration,
		ParentID:         r.ParentID,
		AreaID:           r.AreaID,
		Tags:             r.Tags,
		Order:            r.Order,
		IsRecurring:      r.IsRecurring,
		RecurringPattern: r.RecurringPattern,
	}
}

type RegisterUserRequest struct {
	Timezone string `json:"timezone"`
}

type UpdateTimezoneRequest struct {
	Timezone string `json:"timezone"`
}

type TaskResponse struct {
	UUID                   uuid.UUID       `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Priority               int             `json:"priority"`
	ScheduledDate          *time.Time      `json:"scheduled_date,omitempty"`
	Duration               *int            `json:"duration,omitempty"`
	IsCompleted            bool            `json:"is_completed"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
	IsRecurring            bool            `json:"is_recurring"`
	RecurringPattern       json.RawMessage `json:"recurring_pattern,omitempty"`
	RecurringParentID      *uuid.UUID      `json:"recurring_parent_id,omitempty"`
	ParentID               *uuid.UUID      `json:"parent_id,omitempty"`
	Depth                  int             `json:"depth"`
	Order                  int             `json:"order"`
	AreaID                 *uuid.UUID      `json:"area_id,omitempty"`
	Tags                   []string        `json:"tags"`
	RecurringStreak        int             `json:"recurring_streak"`
	LongestRecurringStreak int             `json:"longest_recurring_streak"`
	IsVirtual              bool            `json:"is_virtual"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              *time.Time      `json:"updated_at,omitempty"`
}

func FromTask(t *task.Task) TaskResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskResponse{
		UUID:                   t.UUID,
		Title:                  t.Title,
		Description:            t.Description,
		Priority:               t.Priority,
		ScheduledDate:          t.Scheduled,
		Duration:               t.Duration,
		IsCompleted:            t.IsCompleted,
		CompletedAt:            t.CompletedAt,
		IsRecurring:            t.IsRecurring,
		RecurringPattern:       t.RecurringPattern,
		RecurringParentID:      t.RecurringParentID,
		ParentID:               t.ParentID,
		Depth:                  t.Depth,
		Order:                  t.Order,
		AreaID:                 t.AreaID,
		Tags:                   tags,
		RecurringStreak:        t.RecurringStreak,
		LongestRecurringStreak: t.LongestRecurringStreak,
		IsVirtual:              t.Virtual,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type CompletionResponse struct {
	Task TaskResponse  `json:"task"`
	Next *TaskResponse `json:"next,omitempty"`
}

func FromCompletion(res *service.CompletionResult) CompletionResponse {
	out := CompletionResponse{Task: FromTask(res.Task)}
	if res.Next != nil {
		next := FromTask(res.Next)
		out.Next = &next
	}
	return out
}

type StreakResponse struct {
	UserID              uuid.UUID  `json:"user_id"`
	Timezone            string     `json:"timezone"`
	CurrentStreak       int        `json:"current_streak"`
	LongestStreak       int        `json:"longest_streak"`
	LastStreakCheckDate *time.Time `json:"last_streak_check_date,omitempty"`
}

func FromUser(u *user.User) StreakResponse {
	return StreakResponse{
		UserID:              u.UUID,
		Timezone:            u.Timezone,
		CurrentStreak:       u.CurrentStreak,
		LongestStreak:       u.LongestStreak,
		LastStreakCheckDate: u.LastStreakCheckDate,
	}
}
