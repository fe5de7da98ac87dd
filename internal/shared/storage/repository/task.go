package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trip-planner/internal/shared/model"
	"trip-planner/internal/shared/storage"
)

// Create 保存新任务，同 ID 的过期记录会被替换
func (s *Store) Create(ctx context.Context, task *model.TaskRecord) error {
	data, err := storage.EncodeRecord(task)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	nowMs := s.now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trip_tasks WHERE id = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		task.ID, nowMs); err != nil {
		return fmt.Errorf("failed to clear expired task %s: %w", task.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trip_tasks (id, status, data, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, task.ID, string(task.Status), string(data),
		task.CreatedAt.UnixMilli(), task.UpdatedAt.UnixMilli(), toMillis(task.ExpiresAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("task %s: %w", task.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}
	return tx.Commit()
}

// Get 返回任务快照
func (s *Store) Get(ctx context.Context, id string) (*model.TaskRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM trip_tasks
		WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)
	`, id, s.now().UnixMilli()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return storage.DecodeRecord([]byte(data))
}

// Update 在事务内读取-修改-写回
func (s *Store) Update(ctx context.Context, id string, fn storage.UpdateFunc) (*model.TaskRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `
		SELECT data FROM trip_tasks
		WHERE id = ? AND (expires_at IS NULL OR expires_at > ?)
	`, id, s.now().UnixMilli()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}

	task, out, err := storage.ApplyUpdate([]byte(data), id, fn)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE trip_tasks SET status = ?, data = ?, updated_at = ?, expires_at = ?
		WHERE id = ?
	`, string(task.Status), string(out), task.UpdatedAt.UnixMilli(), toMillis(task.ExpiresAt), id); err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task %s: %w", id, err)
	}
	return task, nil
}

// DeleteExpired 删除保留期已过的任务
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM trip_tasks WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountByStatus 按状态统计任务数
func (s *Store) CountByStatus(ctx context.Context) (map[model.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM trip_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}
