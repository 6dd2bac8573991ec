package inmemory

import (
	"context"
	"time"

	"streakTracker/internal/models/user"
	repo "streakTracker/internal/repository"

	"github.com/google/uuid"
)

type UserStorage struct {
	*Storage
}

func (s *UserStorage) Create(ctx context.Context, userToCreate *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if userToCreate.CreatedAt.IsZero() {
		userToCreate.CreatedAt = time.Now().UTC()
	}

	copied := *userToCreate
	s.users[userToCreate.UUID] = &copied
	s.userIDs = append(s.userIDs, userToCreate.UUID)
	return nil
}

func (s *UserStorage) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *UserStorage) ListAll(ctx context.Context) ([]*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*user.User, 0, len(s.userIDs))
	for _, id := range s.userIDs {
		copied := *s.users[id]
		res = append(res, &copied)
	}
	return res, nil
}

func (s *UserStorage) UpdateStreak(ctx context.Context, id uuid.UUID, state user.StreakState) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Apply(state.Normalize())
	return nil
}

// CompareAndSetStreak writes state only while the stored check date still
// equals expected.
func (s *UserStorage) CompareAndSetStreak(ctx context.Context, id uuid.UUID, expected *time.Time, state user.StreakState) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	if !sameInstant(u.LastStreakCheckDate, expected) {
		return repo.ErrVersionConflict
	}
	u.Apply(state.Normalize())
	return nil
}

func (s *UserStorage) UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Timezone = timezone
	return nil
}

// ApplyReconciliation holds the shared lock for both writes, so readers never
// see one without the other.
func (s *UserStorage) ApplyReconciliation(ctx context.Context, id uuid.UUID, state *user.StreakState, resetSeries []uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	for _, taskID := range resetSeries {
		if _, ok := s.tasks[taskID]; !ok {
			return repo.ErrNotFound
		}
	}

	if state != nil {
		u.Apply(state.Normalize())
	}
	now := time.Now().UTC()
	for _, taskID := range resetSeries {
		t := s.tasks[taskID]
		t.RecurringStreak = 0
		t.UpdatedAt = &now
	}
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
