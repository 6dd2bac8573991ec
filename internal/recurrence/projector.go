package recurrence

import (
	"time"

	"streakTracker/internal/models/task"

	"github.com/google/uuid"
)

// MaxProjectionSteps bounds the walk in Project. Hitting it truncates the
// result silently.
const MaxProjectionSteps = 100

// Project expands a recurring anchor into virtual occurrences in
// [windowStart, windowEnd). The anchor's own date is never emitted since the
// anchor row already represents it. Each occurrence follows from the one
// before it, exactly as MaterializeNext would create them, so a monthly series
// clamped to Feb 29 stays on the 29th. Calendar arithmetic runs in
// windowStart's location, so pass the window in the owner's timezone.
func Project(anchor *task.Task, windowStart, windowEnd time.Time) []*task.Task {
	if anchor == nil || !anchor.IsRecurring || anchor.Scheduled == nil {
		return nil
	}
	pattern, err := Parse(anchor.RecurringPattern)
	if err != nil || !pattern.Projectable() {
		return nil
	}

	loc := windowStart.Location()
	origin := anchor.Scheduled.In(loc)
	cursor := origin

	var out []*task.Task
	for step := 1; step <= MaxProjectionSteps && cursor.Before(windowEnd); step++ {
		if pattern.EndDate != nil && cursor.After(*pattern.EndDate) {
			return out
		}
		if !cursor.Equal(origin) && !cursor.Before(windowStart) {
			out = append(out, virtualOccurrence(anchor, cursor))
		}
		next, ok := pattern.Advance(cursor, loc)
		if !ok || !next.After(cursor) {
			return out
		}
		cursor = next.In(loc)
	}
	return out
}

// VirtualID is stable for a given anchor and date so repeated reads agree.
func VirtualID(anchorID uuid.UUID, at time.Time) uuid.UUID {
	return uuid.NewSHA1(anchorID, []byte(at.UTC().Format(time.RFC3339)))
}

func virtualOccurrence(anchor *task.Task, at time.Time) *task.Task {
	occ := anchor.Clone()
	occ.UUID = VirtualID(anchor.UUID, at)
	scheduled := at.UTC()
	occ.Scheduled = &scheduled
	occ.Virtual = true
	return occ
}
