package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"streakTracker/internal/models/task"
	repo "streakTracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStorage struct {
	*Storage
}

// Updates with a map skip field serializers, so tags are encoded here the
// same way the json serializer writes them on insert.
func tagsJSON(tags []string) string {
	b, err := json.Marshal(tags)
	if err != nil {
		return "null"
	}
	return string(b)
}

func rowsToTasks(rows []taskRow) []*task.Task {
	tasks := make([]*task.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rows[i].toTask())
	}
	return tasks
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(toTaskRow(taskToCreate)).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	now := time.Now().UTC()
	row := toTaskRow(taskToUpdate)

	res := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("uuid = ?", row.UUID).
		Updates(map[string]interface{}{
			"title":                    row.Title,
			"description":              row.Description,
			"priority":                 row.Priority,
			"scheduled_date":           row.ScheduledDate,
			"duration":                 row.Duration,
			"is_completed":             row.IsCompleted,
			"completed_at":             row.CompletedAt,
			"is_recurring":             row.IsRecurring,
			"recurring_pattern":        row.RecurringPattern,
			"sort_order":               row.SortOrder,
			"area_id":                  row.AreaID,
			"tags":                     tagsJSON(row.Tags),
			"recurring_streak":         row.RecurringStreak,
			"longest_recurring_streak": row.LongestRecurringStreak,
			"series_credited_at":       row.SeriesCreditedAt,
			"updated_at":               now,
		})
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	taskToUpdate.UpdatedAt = &now
	return nil
}

func (s *TaskStorage) SetCompleted(ctx context.Context, id uuid.UUID, completed bool, at time.Time) error {
	stamp := at.UTC()
	var completedAt *time.Time
	if completed {
		completedAt = &stamp
	}

	res := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("uuid = ? AND is_completed <> ?", id.String(), completed).
		Updates(map[string]interface{}{
			"is_completed": completed,
			"completed_at": completedAt,
			"updated_at":   stamp,
		})
	if res.Error != nil {
		return fmt.Errorf("set completion: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return repo.ErrVersionConflict
	}
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	var row taskRow
	if err := s.db.WithContext(ctx).Where("uuid = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return row.toTask(), nil
}

func (s *TaskStorage) ListChildren(ctx context.Context, parentID uuid.UUID) ([]*task.Task, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID.String()).
		Order("sort_order, created_at").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return rowsToTasks(rows), nil
}

// CompleteDescendants walks the subtree level by level inside one transaction.
func (s *TaskStorage) CompleteDescendants(ctx context.Context, parentID uuid.UUID, at time.Time) (int, error) {
	stamp := at.UTC()
	completed := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		level := []string{parentID.String()}
		for depth := 0; depth < task.MaxDepth && len(level) > 0; depth++ {
			var children []string
			if err := tx.Model(&taskRow{}).Where("parent_id IN ?", level).Pluck("uuid", &children).Error; err != nil {
				return err
			}
			if len(children) == 0 {
				break
			}

			res := tx.Model(&taskRow{}).
				Where("uuid IN ? AND is_completed = ?", children, false).
				Updates(map[string]interface{}{
					"is_completed": true,
					"completed_at": stamp,
					"updated_at":   stamp,
				})
			if res.Error != nil {
				return res.Error
			}
			completed += int(res.RowsAffected)
			level = children
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("complete descendants: %w", err)
	}
	return completed, nil
}

func (s *TaskStorage) ListScheduledBetween(ctx context.Context, userID uuid.UUID, from, to time.Time, filter repo.TaskFilter) ([]*task.Task, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND scheduled_date >= ? AND scheduled_date < ?", userID.String(), from.UTC(), to.UTC())
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}
	if filter.RecurringOnly {
		q = q.Where("is_recurring = ?", true)
	}

	var rows []taskRow
	if err := q.Order("scheduled_date, priority").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list scheduled: %w", err)
	}
	return rowsToTasks(rows), nil
}

func (s *TaskStorage) ListRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*task.Task, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_recurring = ? AND is_completed = ? AND scheduled_date IS NOT NULL", userID.String(), true, false).
		Order("scheduled_date, priority").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list recurring anchors: %w", err)
	}
	return rowsToTasks(rows), nil
}

func (s *TaskStorage) HasSuccessor(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("recurring_parent_id = ?", id.String()).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("look up successor: %w", err)
	}
	return count > 0, nil
}

// Atomic runs fn on a view bound to one transaction; gorm commits when fn
// returns nil and rolls back otherwise.
func (s *TaskStorage) Atomic(ctx context.Context, fn func(repo.TaskTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn((&Storage{db: tx}).Tasks())
	})
}
