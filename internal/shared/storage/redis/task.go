package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-planner/internal/shared/model"
	"trip-planner/internal/shared/storage"
)

func taskKey(id string) string {
	return KeyTaskPrefix + id
}

// ttlFor 结束的任务按 ExpiresAt 过期，其余使用 activeTTL
func (s *Store) ttlFor(task *model.TaskRecord) time.Duration {
	if task.ExpiresAt == nil {
		return s.activeTTL
	}
	ttl := task.ExpiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		// 0 在 Redis 中表示永不过期
		ttl = time.Millisecond
	}
	return ttl
}

// Create 保存新任务
func (s *Store) Create(ctx context.Context, task *model.TaskRecord) error {
	data, err := storage.EncodeRecord(task)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, taskKey(task.ID), data, s.ttlFor(task)).Result()
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, storage.ErrDuplicate)
	}
	return nil
}

// Get 返回任务快照
func (s *Store) Get(ctx context.Context, id string) (*model.TaskRecord, error) {
	data, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}

	task, err := storage.DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	if task.Expired(s.now()) {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return task, nil
}

// Update 使用 WATCH/MULTI 乐观锁原子更新，冲突时重试
func (s *Store) Update(ctx context.Context, id string, fn storage.UpdateFunc) (*model.TaskRecord, error) {
	key := taskKey(id)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var updated *model.TaskRecord
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to get task %s: %w", id, err)
			}

			task, out, err := storage.ApplyUpdate(data, id, fn)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, s.ttlFor(task))
				return nil
			})
			if err == nil {
				updated = task
			}
			return err
		}, key)

		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("task %s: %w", id, storage.ErrConflict)
}

// DeleteExpired 扫描任务 key，删除保留期已过的记录
//
// Redis 会按 TTL 自动删除，这里处理时钟提前清理的场景（如停机前的主动清理）。
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	iter := s.client.Scan(ctx, 0, KeyTaskPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to read %s: %w", key, err)
		}
		task, err := storage.DecodeRecord(data)
		if err != nil {
			continue
		}
		if !task.Expired(now) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", key, err)
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan tasks: %w", err)
	}
	return deleted, nil
}
