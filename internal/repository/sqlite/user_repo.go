package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streakTracker/internal/models/user"
	repo "streakTracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStorage struct {
	*Storage
}

func (s *UserStorage) Create(ctx context.Context, userToCreate *user.User) error {
	if userToCreate.CreatedAt.IsZero() {
		userToCreate.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(toUserRow(userToCreate)).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *UserStorage) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("uuid = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toUser(), nil
}

func (s *UserStorage) ListAll(ctx context.Context) ([]*user.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toUser())
	}
	return users, nil
}

func (s *UserStorage) UpdateStreak(ctx context.Context, id uuid.UUID, state user.StreakState) error {
	return updateStreak(s.db.WithContext(ctx), id, state.Normalize())
}

// CompareAndSetStreak writes state only while last_streak_check_date still
// holds expected, and reports ErrVersionConflict otherwise.
func (s *UserStorage) CompareAndSetStreak(ctx context.Context, id uuid.UUID, expected *time.Time, state user.StreakState) error {
	state = state.Normalize()

	q := s.db.WithContext(ctx).Model(&userRow{}).Where("uuid = ?", id.String())
	if expected == nil {
		q = q.Where("last_streak_check_date IS NULL")
	} else {
		q = q.Where("last_streak_check_date = ?", expected.UTC())
	}

	res := q.Updates(map[string]interface{}{
		"current_streak":         state.CurrentStreak,
		"longest_streak":         state.LongestStreak,
		"last_streak_check_date": utcPtr(state.LastStreakCheckDate),
	})
	if res.Error != nil {
		return fmt.Errorf("update streak: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return repo.ErrVersionConflict
	}
	return nil
}

func (s *UserStorage) UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	res := s.db.WithContext(ctx).Model(&userRow{}).
		Where("uuid = ?", id.String()).
		Update("timezone", timezone)
	if res.Error != nil {
		return fmt.Errorf("update timezone: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *UserStorage) ApplyReconciliation(ctx context.Context, id uuid.UUID, state *user.StreakState, resetSeries []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if state != nil {
			if err := updateStreak(tx, id, state.Normalize()); err != nil {
				return err
			}
		}
		if len(resetSeries) == 0 {
			return nil
		}

		ids := make([]string, len(resetSeries))
		for i, taskID := range resetSeries {
			ids[i] = taskID.String()
		}
		res := tx.Model(&taskRow{}).
			Where("uuid IN ? AND user_id = ?", ids, id.String()).
			Updates(map[string]interface{}{
				"recurring_streak": 0,
				"updated_at":       time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("reset series: %w", res.Error)
		}
		if int(res.RowsAffected) != len(resetSeries) {
			return repo.ErrNotFound
		}
		return nil
	})
}

func updateStreak(db *gorm.DB, id uuid.UUID, state user.StreakState) error {
	res := db.Model(&userRow{}).
		Where("uuid = ?", id.String()).
		Updates(map[string]interface{}{
			"current_streak":         state.CurrentStreak,
			"longest_streak":         state.LongestStreak,
			"last_streak_check_date": utcPtr(state.LastStreakCheckDate),
		})
	if res.Error != nil {
		return fmt.Errorf("update streak: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
