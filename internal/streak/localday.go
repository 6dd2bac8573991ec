package streak

import (
	"sync"
	"time"
	// zone data for hosts without /usr/share/zoneinfo
	_ "time/tzdata"

	"streakTracker/internal/logger"

	"github.com/jinzhu/now"
	"go.uber.org/zap"
)

const dateKeyLayout = "2006-01-02"

// Zones resolves IANA names to locations, falling back to a default zone for
// empty or unknown names instead of failing.
type Zones struct {
	fallback *time.Location
	cache    sync.Map
}

func NewZones(defaultName string) *Zones {
	fallback, err := time.LoadLocation(defaultName)
	if err != nil || defaultName == "" {
		fallback = time.UTC
	}
	return &Zones{fallback: fallback}
}

func (z *Zones) Default() *time.Location {
	return z.fallback
}

func (z *Zones) Resolve(name string) *time.Location {
	if name == "" {
		return z.fallback
	}
	if cached, ok := z.cache.Load(name); ok {
		return cached.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("Streak: unknown timezone, using default",
			zap.String("timezone", name),
			zap.String("default", z.fallback.String()))
		return z.fallback
	}
	z.cache.Store(name, loc)
	return loc
}

// DayBounds returns the UTC [start, end) range of the local calendar day that
// contains t.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := now.New(t.In(loc)).BeginningOfDay()
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateKeyLayout)
}

func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	return DateKey(a, loc) == DateKey(b, loc)
}

// creditedOn reports whether last marks the local day of day as processed.
func creditedOn(last *time.Time, day time.Time, loc *time.Location) bool {
	return last != nil && SameLocalDay(*last, day, loc)
}
