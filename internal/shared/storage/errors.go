// Package storage 定义任务存储接口与领域错误
//
// 各驱动实现（内存、Redis、SQLite）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 任务不存在或已过保留期
	// 替代 redis.Nil / sql.ErrNoRows
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 并发冲突（乐观锁重试耗尽）
	ErrConflict = errors.New("conflict: concurrent modification detected")

	// ErrDuplicate 唯一键冲突（重复 ID）
	ErrDuplicate = errors.New("duplicate: entity already exists")
)
