package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"streakTracker/internal/logger"
	"streakTracker/internal/models/task"
	repo "streakTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const taskColumns = `uuid,
	user_id,
	title,
	description,
	priority,
	scheduled_date,
	duration,
	is_completed,
	completed_at,
	is_recurring,
	recurring_pattern,
	recurring_parent_id,
	parent_id,
	depth,
	sort_order,
	area_id,
	tags,
	recurring_streak,
	longest_recurring_streak,
	series_credited_at,
	created_at,
	updated_at`

type TaskStorage struct {
	*Storage
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	t := &task.Task{}
	var pattern []byte
	err := row.Scan(
		&t.UUID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Scheduled,
		&t.Duration,
		&t.IsCompleted,
		&t.CompletedAt,
		&t.IsRecurring,
		&pattern,
		&t.RecurringParentID,
		&t.ParentID,
		&t.Depth,
		&t.Order,
		&t.AreaID,
		&t.Tags,
		&t.RecurringStreak,
		&t.LongestRecurringStreak,
		&t.SeriesCreditedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(pattern) > 0 {
		t.RecurringPattern = pattern
	}
	normalizeTimes(t)
	return t, nil
}

// timestamptz comes back in the session zone; the rest of the code expects UTC.
func normalizeTimes(t *task.Task) {
	t.CreatedAt = t.CreatedAt.UTC()
	for _, p := range []*time.Time{t.Scheduled, t.CompletedAt, t.SeriesCreditedAt, t.UpdatedAt} {
		if p != nil {
			*p = p.UTC()
		}
	}
}

func collectTasks(rows pgx.Rows) ([]*task.Task, error) {
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: failed to scan task", err)
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

func patternParam(t *task.Task) any {
	if len(t.RecurringPattern) == 0 {
		return nil
	}
	return string(t.RecurringPattern)
}

func tagsParam(t *task.Task) []string {
	if t.Tags == nil {
		return []string{}
	}
	return t.Tags
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tasks (` + taskColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

	_, err := s.db.Exec(ctx, query,
		taskToCreate.UUID,
		taskToCreate.UserID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.Priority,
		taskToCreate.Scheduled,
		taskToCreate.Duration,
		taskToCreate.IsCompleted,
		taskToCreate.CompletedAt,
		taskToCreate.IsRecurring,
		patternParam(taskToCreate),
		taskToCreate.RecurringParentID,
		taskToCreate.ParentID,
		taskToCreate.Depth,
		taskToCreate.Order,
		taskToCreate.AreaID,
		tagsParam(taskToCreate),
		taskToCreate.RecurringStreak,
		taskToCreate.LongestRecurringStreak,
		taskToCreate.SeriesCreditedAt,
		taskToCreate.CreatedAt,
		taskToCreate.UpdatedAt,
	)
	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("insert task: %w", err)
	}

	warnIfSlow("create task", start, slowWrite)
	return nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	start := time.Now()

	query := `UPDATE tasks
			SET title = $2,
				description = $3,
				priority = $4,
				scheduled_date = $5,
				duration = $6,
				is_completed = $7,
				completed_at = $8,
				is_recurring = $9,
				recurring_pattern = $10,
				sort_order = $11,
				area_id = $12,
				tags = $13,
				recurring_streak = $14,
				longest_recurring_streak = $15,
				series_credited_at = $16,
				updated_at = NOW()
			WHERE uuid = $1
			RETURNING updated_at`

	var updatedAt time.Time
	err := s.db.QueryRow(ctx, query,
		taskToUpdate.UUID,
		taskToUpdate.Title,
		taskToUpdate.Description,
		taskToUpdate.Priority,
		taskToUpdate.Scheduled,
		taskToUpdate.Duration,
		taskToUpdate.IsCompleted,
		taskToUpdate.CompletedAt,
		taskToUpdate.IsRecurring,
		patternParam(taskToUpdate),
		taskToUpdate.Order,
		taskToUpdate.AreaID,
		tagsParam(taskToUpdate),
		taskToUpdate.RecurringStreak,
		taskToUpdate.LongestRecurringStreak,
		taskToUpdate.SeriesCreditedAt,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrNotFound
		}
		logger.Error("Repository: failed to update task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("update task: %w", err)
	}

	updatedAt = updatedAt.UTC()
	taskToUpdate.UpdatedAt = &updatedAt
	warnIfSlow("update task", start, slowQuery)
	return nil
}

func (s *TaskStorage) SetCompleted(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error {
	start := time.Now()

	var completedAt *time.Time
	if completed {
		stamp := at.UTC()
		completedAt = &stamp
	}

	query := `UPDATE tasks
			SET is_completed = $2,
				completed_at = $3,
				updated_at = $4
			WHERE uuid = $1 AND is_completed <> $2`

	tag, err := s.db.Exec(ctx, query, id, completed, completedAt, at.UTC())
	if err != nil {
		logger.Error("Repository: failed to set completion", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("set completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		logger.Warn("Repository: completion state already set",
			zap.String("task_id", id.String()),
			zap.Bool("completed", completed))
		return repo.ErrVersionConflict
	}

	warnIfSlow("set completion", start, slowQuery)
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE uuid = $1`

	t, err := scanTask(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("get task: %w", err)
	}

	warnIfSlow("get task", start, slowQuery)
	return t, nil
}

func (s *TaskStorage) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE parent_id = $1
			ORDER BY sort_order, created_at`

	rows, err := s.db.Query(ctx, query, parentID)
	if err != nil {
		logger.Error("Repository: failed to list children", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list children: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	warnIfSlow("list children", start, slowQuery)
	return tasks, nil
}

func (s *TaskStorage) CompleteDescendants(ctx context.Context, parentID uuid.UUID, at time.Time) (int, error) {
	start := time.Now()

	query := `WITH RECURSIVE subtree AS (
				SELECT uuid FROM tasks WHERE parent_id = $1
				UNION ALL
				SELECT t.uuid FROM tasks t JOIN subtree s ON t.parent_id = s.uuid
			)
			UPDATE tasks
			SET is_completed = TRUE,
				completed_at = $2,
				updated_at = $2
			WHERE uuid IN (SELECT uuid FROM subtree) AND NOT is_completed`

	tag, err := s.db.Exec(ctx, query, parentID, at.UTC())
	if err != nil {
		logger.Error("Repository: failed to complete descendants", err, zap.Duration("ms", time.Since(start)))
		return 0, fmt.Errorf("complete descendants: %w", err)
	}

	warnIfSlow("complete descendants", start, slowQuery)
	return int(tag.RowsAffected()), nil
}

func (s *TaskStorage) ListScheduledBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, filter repo.TaskFilter) ([]*task.Task, error) {
	start := time.Now()

	conds := []string{"user_id = $1", "scheduled_date >= $2", "scheduled_date < $3"}
	args := []any{userID, from.UTC(), to.UTC()}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		conds = append(conds, fmt.Sprintf("is_completed = $%d", len(args)))
	}
	if filter.RecurringOnly {
		conds = append(conds, "is_recurring")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE ` + strings.Join(conds, " AND ") + `
			ORDER BY scheduled_date, priority`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to list scheduled tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list scheduled: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	warnIfSlow("list scheduled", start, slowQuery)
	return tasks, nil
}

func (s *TaskStorage) ListRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE user_id = $1
				AND is_recurring
				AND NOT is_completed
				AND scheduled_date IS NOT NULL
			ORDER BY scheduled_date, priority`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		logger.Error("Repository: failed to list recurring anchors", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list recurring anchors: %w", err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, err
	}

	warnIfSlow("list recurring anchors", start, slowQuery)
	return tasks, nil
}

// HasSuccessor reports whether an occurrence was already materialized from id.
func (s *TaskStorage) HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error) {
	start := time.Now()

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE recurring_parent_id = $1)`, id).Scan(&exists)
	if err != nil {
		logger.Error("Repository: failed to look up successor", err, zap.Duration("ms", time.Since(start)))
		return false, fmt.Errorf("look up successor: %w", err)
	}

	warnIfSlow("has successor", start, slowQuery)
	return exists, nil
}

// Atomic runs fn on a view bound to one transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *TaskStorage) Atomic(ctx context.Context, fn func(repo.TaskTx) error) error {
	start := time.Now()

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&TaskStorage{&Storage{pool: s.pool, db: tx}})
	})
	if err != nil {
		logger.Warn("Repository: task transaction rolled back",
			zap.Error(err),
			zap.Duration("ms", time.Since(start)))
		return err
	}

	warnIfSlow("task transaction", start, slowQuery)
	return nil
}
