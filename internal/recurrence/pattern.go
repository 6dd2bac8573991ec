package recurrence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

var ErrInvalidPattern = errors.New("invalid recurrence pattern")

// Clock is an "HH:mm" override for generated occurrences.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Pattern is the validated form of a task's recurringPattern payload.
type Pattern struct {
	Frequency Frequency
	Interval  int
	Time      *Clock
	EndDate   *time.Time
}

// payload mirrors the stored JSON. Keys like daysOfWeek or count are accepted
// and ignored.
type payload struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	Time      string `json:"time,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Parse validates a stored pattern. Older rows hold the pattern as a JSON
// string containing JSON, so one level of string encoding is unwrapped.
func Parse(raw json.RawMessage) (Pattern, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Pattern{}, fmt.Errorf("%w: empty payload", ErrInvalidPattern)
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		raw = json.RawMessage(inner)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	pattern := Pattern{
		Frequency: Frequency(p.Frequency),
		Interval:  p.Interval,
	}
	switch pattern.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return Pattern{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, p.Frequency)
	}
	if pattern.Interval < 1 {
		return Pattern{}, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidPattern, p.Interval)
	}

	if p.Time != "" {
		clock, err := parseClock(p.Time)
		if err != nil {
			return Pattern{}, err
		}
		pattern.Time = &clock
	}

	if p.EndDate != "" {
		end, err := parseEndDate(p.EndDate)
		if err != nil {
			return Pattern{}, err
		}
		pattern.EndDate = &end
	}

	return pattern, nil
}

// MarshalJSON writes the same shape Parse reads.
func (p Pattern) MarshalJSON() ([]byte, error) {
	out := payload{
		Frequency: string(p.Frequency),
		Interval:  p.Interval,
	}
	if p.Time != nil {
		out.Time = p.Time.String()
	}
	if p.EndDate != nil {
		out.EndDate = p.EndDate.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// Projectable reports whether schedule views expand this pattern. Yearly
// series are only ever materialized.
func (p Pattern) Projectable() bool {
	return p.Frequency == Daily || p.Frequency == Weekly || p.Frequency == Monthly
}

// step moves t forward by n units of the pattern frequency using calendar
// arithmetic in t's location. ok is false for frequencies it does not know.
func (p Pattern) step(t time.Time, n int) (time.Time, bool) {
	switch p.Frequency {
	case Daily:
		return t.AddDate(0, 0, n*p.Interval), true
	case Weekly:
		return t.AddDate(0, 0, n*p.Interval*7), true
	case Monthly:
		return addMonths(t, n*p.Interval), true
	case Yearly:
		return addMonths(t, n*p.Interval*12), true
	default:
		return t, false
	}
}

// Advance returns the occurrence that follows from, computed in loc. ok is
// false once the series is past its end date or the frequency is unknown.
func (p Pattern) Advance(from time.Time, loc *time.Location) (time.Time, bool) {
	next, ok := p.step(from.In(loc), 1)
	if !ok {
		return time.Time{}, false
	}
	if p.Time != nil {
		next = time.Date(next.Year(), next.Month(), next.Day(), p.Time.Hour, p.Time.Minute, 0, 0, loc)
	}
	if p.EndDate != nil && next.After(*p.EndDate) {
		return time.Time{}, false
	}
	return next.UTC(), true
}

// addMonths clamps to the last day of the target month: Jan 31 + 1 month is
// Feb 28 (or 29), not Mar 3.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func parseClock(s string) (Clock, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: time %q is not HH:mm", ErrInvalidPattern, s)
	}
	return Clock{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

func parseEndDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: endDate %q is neither RFC3339 nor YYYY-MM-DD", ErrInvalidPattern, s)
}
