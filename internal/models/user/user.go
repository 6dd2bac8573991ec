package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	UUID                uuid.UUID  `json:"id" db:"uuid"`
	Timezone            string     `json:"timezone" db:"timezone"`
	CurrentStreak       int        `json:"current_streak" db:"current_streak"`
	LongestStreak       int        `json:"longest_streak" db:"longest_streak"`
	LastStreakCheckDate *time.Time `json:"last_streak_check_date,omitempty" db:"last_streak_check_date"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// StreakState is the set of fields the streak engine writes back.
type StreakState struct {
	CurrentStreak       int
	LongestStreak       int
	LastStreakCheckDate *time.Time
}

func (u *User) Streak() StreakState {
	return StreakState{
		CurrentStreak:       u.CurrentStreak,
		LongestStreak:       u.LongestStreak,
		LastStreakCheckDate: u.LastStreakCheckDate,
	}
}

func (u *User) Apply(s StreakState) {
	u.CurrentStreak = s.CurrentStreak
	u.LongestStreak = s.LongestStreak
	u.LastStreakCheckDate = s.LastStreakCheckDate
}

// Normalize restores longest >= current and non-negative counters.
func (s StreakState) Normalize() StreakState {
	if s.CurrentStreak < 0 {
		s.CurrentStreak = 0
	}
	if s.LongestStreak < s.CurrentStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return s
}
