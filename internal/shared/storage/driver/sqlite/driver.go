// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理和自动 Schema 迁移。
// 适用于单机部署：任务记录在进程重启后仍可查询，直到保留期结束。
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:data/trip-planner.db?mode=rwc" 或 ":memory:"
//
// 连接池限制为单连接：SQLite 写入本身串行，且 :memory: 数据库按连接隔离。
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// AutoMigrate 创建任务表
func AutoMigrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

// schema 时间字段统一为 Unix 毫秒
const schema = `
CREATE TABLE IF NOT EXISTS trip_tasks (
    id VARCHAR(64) PRIMARY KEY,
    status VARCHAR(32) NOT NULL DEFAULT 'pending',
    data TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_trip_tasks_expires_at ON trip_tasks (expires_at);
`
