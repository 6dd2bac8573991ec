package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/user"
	repo "streakTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const userColumns = `uuid, timezone, current_streak, longest_streak, last_streak_check_date, created_at`

type UserStorage struct {
	*Storage
}

func scanUser(row rowScanner) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.UUID,
		&u.Timezone,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.LastStreakCheckDate,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if u.LastStreakCheckDate != nil {
		last := u.LastStreakCheckDate.UTC()
		u.LastStreakCheckDate = &last
	}
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]*user.User, error) {
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			logger.Error("Repository: failed to scan user", err)
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return users, nil
}

func (s *UserStorage) Create(ctx context.Context, userToCreate *user.User) error {
	start := time.Now()

	if userToCreate.CreatedAt.IsZero() {
		userToCreate.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (` + userColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		userToCreate.UUID,
		userToCreate.Timezone,
		userToCreate.CurrentStreak,
		userToCreate.LongestStreak,
		userToCreate.LastStreakCheckDate,
		userToCreate.CreatedAt,
	)
	if err != nil {
		logger.Error("Repository: failed to insert user", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("insert user: %w", err)
	}

	warnIfSlow("create user", start, slowWrite)
	return nil
}

func (s *UserStorage) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	start := time.Now()

	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get user", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("get user: %w", err)
	}

	warnIfSlow("get user", start, slowQuery)
	return u, nil
}

func (s *UserStorage) ListAll(ctx context.Context) ([]*user.User, error) {
	start := time.Now()

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		logger.Error("Repository: failed to list users", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}

	warnIfSlow("list users", start, slowQuery)
	return users, nil
}

func (s *UserStorage) UpdateStreak(ctx context.Context, id uuid.UUID, state user.StreakState) error {
	start := time.Now()

	if err := updateStreak(ctx, s.db, id, state.Normalize()); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Error("Repository: failed to update streak", err, zap.Duration("ms", time.Since(start)))
		}
		return err
	}

	warnIfSlow("update streak", start, slowQuery)
	return nil
}

// CompareAndSetStreak writes state only while last_streak_check_date still
// holds expected. A moved stamp means another writer got there first and the
// caller gets ErrVersionConflict.
func (s *UserStorage) CompareAndSetStreak(ctx context.Context, id uuid.UUID, expected *time.Time, state user.StreakState) error {
	start := time.Now()
	state = state.Normalize()

	query := `UPDATE users
			SET current_streak = $2,
				longest_streak = $3,
				last_streak_check_date = $4
			WHERE uuid = $1 AND last_streak_check_date IS NOT DISTINCT FROM $5`

	tag, err := s.db.Exec(ctx, query, id, state.CurrentStreak, state.LongestStreak,
		utcTime(state.LastStreakCheckDate), utcTime(expected))
	if err != nil {
		logger.Error("Repository: failed to update streak", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return repo.ErrVersionConflict
	}

	warnIfSlow("compare and set streak", start, slowQuery)
	return nil
}

func (s *UserStorage) UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	start := time.Now()

	tag, err := s.db.Exec(ctx, `UPDATE users SET timezone = $2 WHERE uuid = $1`, id, timezone)
	if err != nil {
		logger.Error("Repository: failed to update timezone", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("update timezone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	warnIfSlow("update timezone", start, slowQuery)
	return nil
}

// ApplyReconciliation writes the user's streak and zeroes the listed series
// counters in one transaction.
func (s *UserStorage) ApplyReconciliation(ctx context.Context, id uuid.UUID, state *user.StreakState, resetSeries []uuid.UUID) error {
	start := time.Now()

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if state != nil {
			if err := updateStreak(ctx, tx, id, state.Normalize()); err != nil {
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
		tag, err := tx.Exec(ctx, `UPDATE tasks
				SET recurring_streak = 0,
					updated_at = NOW()
				WHERE uuid = ANY($1::uuid[]) AND user_id = $2`, ids, id)
		if err != nil {
			return fmt.Errorf("reset series: %w", err)
		}
		if int(tag.RowsAffected()) != len(resetSeries) {
			return repo.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Error("Repository: reconciliation rolled back", err,
				zap.String("user_id", id.String()),
				zap.Duration("ms", time.Since(start)))
		}
		return err
	}

	warnIfSlow("apply reconciliation", start, slowQuery)
	return nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateStreak(ctx context.Context, db execer, id uuid.UUID, state user.StreakState) error {
	query := `UPDATE users
			SET current_streak = $2,
				longest_streak = $3,
				last_streak_check_date = $4
			WHERE uuid = $1`

	tag, err := db.Exec(ctx, query, id, state.CurrentStreak, state.LongestStreak, utcTime(state.LastStreakCheckDate))
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
