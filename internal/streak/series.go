package streak

import (
	"time"

	"streakTracker/internal/models/task"
)

// OnRecurringCompletion bumps the series streak of occ when it was completed on
// its own due day in the owner's timezone. Early or late completions leave the
// counters alone; only the nightly reconciler breaks a series. An occurrence
// credits its series at most once, however often it is reopened and completed
// again. It reports whether occ changed.
func OnRecurringCompletion(occ *task.Task, loc *time.Location) bool {
	if !occ.IsRecurring || occ.Scheduled == nil || occ.CompletedAt == nil {
		return false
	}
	if occ.SeriesCreditedAt != nil {
		return false
	}
	if !SameLocalDay(*occ.Scheduled, *occ.CompletedAt, loc) {
		return false
	}

	occ.RecurringStreak++
	if occ.RecurringStreak > occ.LongestRecurringStreak {
		occ.LongestRecurringStreak = occ.RecurringStreak
	}
	credited := occ.CompletedAt.UTC()
	occ.SeriesCreditedAt = &credited
	return true
}
