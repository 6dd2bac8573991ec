package repository

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
)

// TaskFilter narrows range queries over scheduled tasks. A nil Completed
// matches both states.
type TaskFilter struct {
	Completed     *bool
	RecurringOnly bool
}

func Incomplete() *bool {
	v := false
	return &v
}
