package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	MaxDepth        = 2
	DefaultPriority = 4
)

// Task is both a plain task and a recurring occurrence; the first row of a
// RecurringParentID chain acts as the template for every later materialization.
type Task struct {
	UUID        uuid.UUID  `json:"id" db:"uuid"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Priority    int        `json:"priority" db:"priority"`
	Scheduled   *time.Time `json:"scheduled_date,omitempty" db:"scheduled_date"`
	Duration    *int       `json:"duration,omitempty" db:"duration"`

	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	IsRecurring       bool            `json:"is_recurring" db:"is_recurring"`
	RecurringPattern  json.RawMessage `json:"recurring_pattern,omitempty" db:"recurring_pattern"`
	RecurringParentID *uuid.UUID      `json:"recurring_parent_id,omitempty" db:"recurring_parent_id"`

	ParentID *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Depth    int        `json:"depth" db:"depth"`
	Order    int        `json:"order" db:"sort_order"`
	AreaID   *uuid.UUID `json:"area_id,omitempty" db:"area_id"`
	Tags     []string   `json:"tags,omitempty" db:"tags"`

	RecurringStreak        int `json:"recurring_streak" db:"recurring_streak"`
	LongestRecurringStreak int `json:"longest_recurring_streak" db:"longest_recurring_streak"`
	// SeriesCreditedAt is set when this occurrence bumped its series streak.
	// Completing it again after a reopen never credits a second time.
	SeriesCreditedAt *time.Time `json:"series_credited_at,omitempty" db:"series_credited_at"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// Virtual marks a projected occurrence that has no row behind it.
	Virtual bool `json:"is_virtual" db:"-"`
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored row.
func (t *Task) Clone() *Task {
	c := *t
	if t.Scheduled != nil {
		s := *t.Scheduled
		c.Scheduled = &s
	}
	if t.Duration != nil {
		d := *t.Duration
		c.Duration = &d
	}
	if t.CompletedAt != nil {
		ca := *t.CompletedAt
		c.CompletedAt = &ca
	}
	if t.SeriesCreditedAt != nil {
		sc := *t.SeriesCreditedAt
		c.SeriesCreditedAt = &sc
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		c.UpdatedAt = &u
	}
	if t.RecurringPattern != nil {
		c.RecurringPattern = append(json.RawMessage(nil), t.RecurringPattern...)
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	c.RecurringParentID = cloneID(t.RecurringParentID)
	c.ParentID = cloneID(t.ParentID)
	c.AreaID = cloneID(t.AreaID)
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
