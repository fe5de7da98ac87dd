// Package repository 基于 database/sql 的任务存储
//
// 记录整体以 JSON 保存在 data 列，status 与 expires_at 单独成列，便于查询与清理。
package repository

import (
	"database/sql"
	"time"

	"trip-planner/internal/shared/storage"
)

// Store SQL 任务存储
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.TaskStore = (*Store)(nil)

// NewStore 创建 SQL 存储，db 需已完成迁移
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
