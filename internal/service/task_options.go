package service

import (
	"time"

	"streakTracker/internal/streak"
)

type Option func(*TaskService)

// WithClock replaces time.Now for the service and its streak synchronizer.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

func WithZones(zones *streak.Zones) Option {
	return func(s *TaskService) {
		s.zones = zones
	}
}
