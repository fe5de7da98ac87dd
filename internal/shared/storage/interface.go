package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trip-planner/internal/shared/model"
)

// UpdateFunc 在存储层持有的副本上执行修改，返回错误时放弃本次写入
type UpdateFunc func(task *model.TaskRecord) error

// TaskStore 任务存储接口
//
// 所有实现都以编码后的形式保存记录，Get 每次返回新解码的快照：
// 调用方永远拿不到存储内部对象的引用，同一任务的读写是线性一致的。
type TaskStore interface {
	// Create 保存新任务，ID 已存在时返回 ErrDuplicate
	Create(ctx context.Context, task *model.TaskRecord) error

	// Get 返回任务快照，未知或已过期返回 ErrNotFound
	Get(ctx context.Context, id string) (*model.TaskRecord, error)

	// Update 原子地读取-修改-写回，返回修改后的快照
	Update(ctx context.Context, id string, fn UpdateFunc) (*model.TaskRecord, error)

	// DeleteExpired 删除保留期已过的任务，返回删除数量
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Close 释放连接
	Close() error
}

// EncodeRecord 序列化任务记录
func EncodeRecord(task *model.TaskRecord) ([]byte, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	return data, nil
}

// DecodeRecord 反序列化任务记录
func DecodeRecord(data []byte) (*model.TaskRecord, error) {
	var task model.TaskRecord
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// ApplyUpdate 在解码后的副本上执行 fn，并校验 ID 未被修改
func ApplyUpdate(data []byte, id string, fn UpdateFunc) (*model.TaskRecord, []byte, error) {
	task, err := DecodeRecord(data)
	if err != nil {
		return nil, nil, err
	}
	if err := fn(task); err != nil {
		return nil, nil, err
	}
	if task.ID != id {
		return nil, nil, fmt.Errorf("task id changed during update: %s -> %s", id, task.ID)
	}
	out, err := EncodeRecord(task)
	if err != nil {
		return nil, nil, err
	}
	return task, out, nil
}
