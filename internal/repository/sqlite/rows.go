package sqlite

import (
	"encoding/json"
	"time"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"

	"github.com/google/uuid"
)

type userRow struct {
	UUID                string `gorm:"primaryKey;size:36"`
	Timezone            string `gorm:"not null;default:''"`
	CurrentStreak       int    `gorm:"not null;default:0"`
	LongestStreak       int    `gorm:"not null;default:0"`
	LastStreakCheckDate *time.Time
	CreatedAt           time.Time
}

func (userRow) TableName() string { return "users" }

type taskRow struct {
	UUID                   string     `gorm:"primaryKey;size:36"`
	UserID                 string     `gorm:"size:36;not null;index:idx_tasks_user_scheduled,priority:1"`
	Title                  string     `gorm:"size:255;not null"`
	Description            string     `gorm:"not null;default:''"`
	Priority               int        `gorm:"not null;default:4"`
	ScheduledDate          *time.Time `gorm:"index:idx_tasks_user_scheduled,priority:2"`
	Duration               *int
	IsCompleted            bool `gorm:"not null;default:false"`
	CompletedAt            *time.Time
	IsRecurring            bool `gorm:"not null;default:false"`
	RecurringPattern       *string
	RecurringParentID      *string  `gorm:"size:36;index"`
	ParentID               *string  `gorm:"size:36;index"`
	Depth                  int      `gorm:"not null;default:0"`
	SortOrder              int      `gorm:"not null;default:0"`
	AreaID                 *string  `gorm:"size:36"`
	Tags                   []string `gorm:"serializer:json"`
	RecurringStreak        int      `gorm:"not null;default:0"`
	LongestRecurringStreak int      `gorm:"not null;default:0"`
	SeriesCreditedAt       *time.Time
	CreatedAt              time.Time
	UpdatedAt              *time.Time `gorm:"autoUpdateTime:false"`
}

func (taskRow) TableName() string { return "tasks" }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func idPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}

func parseIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func toTaskRow(t *task.Task) *taskRow {
	row := &taskRow{
		UUID:                   t.UUID.String(),
		UserID:                 t.UserID.String(),
		Title:                  t.Title,
		Description:            t.Description,
		Priority:               t.Priority,
		ScheduledDate:          utcPtr(t.Scheduled),
		Duration:               t.Duration,
		IsCompleted:            t.IsCompleted,
		CompletedAt:            utcPtr(t.CompletedAt),
		IsRecurring:            t.IsRecurring,
		RecurringParentID:      idPtr(t.RecurringParentID),
		ParentID:               idPtr(t.ParentID),
		Depth:                  t.Depth,
		SortOrder:              t.Order,
		AreaID:                 idPtr(t.AreaID),
		Tags:                   t.Tags,
		RecurringStreak:        t.RecurringStreak,
		LongestRecurringStreak: t.LongestRecurringStreak,
		SeriesCreditedAt:       utcPtr(t.SeriesCreditedAt),
		CreatedAt:              t.CreatedAt.UTC(),
		UpdatedAt:              utcPtr(t.UpdatedAt),
	}
	if len(t.RecurringPattern) > 0 {
		p := string(t.RecurringPattern)
		row.RecurringPattern = &p
	}
	return row
}

func (r *taskRow) toTask() *task.Task {
	t := &task.Task{
		UUID:                   uuid.MustParse(r.UUID),
		UserID:                 uuid.MustParse(r.UserID),
		Title:                  r.Title,
		Description:            r.Description,
		Priority:               r.Priority,
		Scheduled:              utcPtr(r.ScheduledDate),
		Duration:               r.Duration,
		IsCompleted:            r.IsCompleted,
		CompletedAt:            utcPtr(r.CompletedAt),
		IsRecurring:            r.IsRecurring,
		RecurringParentID:      parseIDPtr(r.RecurringParentID),
		ParentID:               parseIDPtr(r.ParentID),
		Depth:                  r.Depth,
		Order:                  r.SortOrder,
		AreaID:                 parseIDPtr(r.AreaID),
		Tags:                   r.Tags,
		RecurringStreak:        r.RecurringStreak,
		LongestRecurringStreak: r.LongestRecurringStreak,
		SeriesCreditedAt:       utcPtr(r.SeriesCreditedAt),
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              utcPtr(r.UpdatedAt),
	}
	if r.RecurringPattern != nil {
		t.RecurringPattern = json.RawMessage(*r.RecurringPattern)
	}
	return t
}

func toUserRow(u *user.User) *userRow {
	return &userRow{
		UUID:                u.UUID.String(),
		Timezone:            u.Timezone,
		CurrentStreak:       u.CurrentStreak,
		LongestStreak:       u.LongestStreak,
		LastStreakCheckDate: utcPtr(u.LastStreakCheckDate),
		CreatedAt:           u.CreatedAt.UTC(),
	}
}

func (r *userRow) toUser() *user.User {
	return &user.User{
		UUID:                uuid.MustParse(r.UUID),
		Timezone:            r.Timezone,
		CurrentStreak:       r.CurrentStreak,
		LongestStreak:       r.LongestStreak,
		LastStreakCheckDate: utcPtr(r.LastStreakCheckDate),
		CreatedAt:           r.CreatedAt.UTC(),
	}
}
