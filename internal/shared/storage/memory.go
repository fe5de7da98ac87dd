package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trip-planner/internal/shared/model"
)

type memEntry struct {
	data      []byte
	expiresAt *time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return e.expiresAt != nil && !now.Before(*e.expiresAt)
}

// MemoryStore 进程内任务存储
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]memEntry
	now   func() time.Time
}

var _ TaskStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]memEntry),
		now:   time.Now,
	}
}

// SetClock 替换时钟，测试使用
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Create 保存新任务
func (s *MemoryStore) Create(ctx context.Context, task *model.TaskRecord) error {
	data, err := EncodeRecord(task)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.tasks[task.ID]; ok && !e.expired(s.now()) {
		return fmt.Errorf("task %s: %w", task.ID, ErrDuplicate)
	}
	s.tasks[task.ID] = memEntry{data: data, expiresAt: task.ExpiresAt}
	return nil
}

// Get 返回任务快照
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.TaskRecord, error) {
	s.mu.RLock()
	e, ok := s.tasks[id]
	now := s.now()
	s.mu.RUnlock()

	if !ok || e.expired(now) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return DecodeRecord(e.data)
}

// Update 原子地修改任务
func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*model.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok || e.expired(s.now()) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	task, data, err := ApplyUpdate(e.data, id, fn)
	if err != nil {
		return nil, err
	}
	s.tasks[id] = memEntry{data: data, expiresAt: task.ExpiresAt}
	return task, nil
}

// DeleteExpired 删除过期任务
func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.tasks {
		if e.expired(now) {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

// Len 当前保存的任务数（含未清理的过期任务）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Close 内存存储无需释放资源
func (s *MemoryStore) Close() error {
	return nil
}
