package worker

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

// Window is the span around local midnight in which a sweep tick picks a user
// up. The end is minute-inclusive: After = 7m accepts 00:07:59.
type Window struct {
	Before time.Duration
	After  time.Duration
}

func DefaultWindow() Window {
	return Window{Before: 7 * time.Minute, After: 7 * time.Minute}
}

func (w Window) Span() time.Duration {
	return w.Before + w.After + time.Minute
}

// Validate enforces that consecutive ticks cannot both fall outside the window.
func (w Window) Validate(cadence time.Duration) error {
	if w.Before < 0 || w.After < 0 {
		return fmt.Errorf("midnight window must not be negative (before=%s, after=%s)", w.Before, w.After)
	}
	if cadence <= 0 {
		return fmt.Errorf("sweep cadence must be positive, got %s", cadence)
	}
	if w.Span() < cadence {
		return fmt.Errorf("midnight window %s is narrower than the sweep cadence %s; widen before/after", w.Span(), cadence)
	}
	if w.Span() >= 12*time.Hour {
		return fmt.Errorf("midnight window %s is too wide", w.Span())
	}
	return nil
}

// Midnight returns the local midnight that local is close to, if it is inside
// the window. At 23:55 that is the coming midnight, at 00:05 the one just past.
func (w Window) Midnight(local time.Time) (time.Time, bool) {
	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())

	dayStart := now.New(local).BeginningOfDay()
	switch {
	case sinceMidnight < w.After+time.Minute:
		return dayStart, true
	case sinceMidnight >= 24*time.Hour-w.Before:
		return dayStart.AddDate(0, 0, 1), true
	default:
		return time.Time{}, false
	}
}

// previousDay is the start of the local day before local.
func previousDay(local time.Time) time.Time {
	return now.New(local).BeginningOfDay().AddDate(0, 0, -1)
}
