package orchestrator

import (
	"time"

	"trip-planner/internal/config"
)

// Config 编排器配置
type Config struct {
	// Workers 同时执行的任务上限
	Workers int
	// QueueTimeout 直接调用 Agent 时等待空闲槽位的上限，提交的任务不受限
	QueueTimeout time.Duration
	// SyncWindow 提交接口同步等待的时长
	SyncWindow time.Duration
	// Retention 任务结束后保留多久
	Retention time.Duration
	// SweepInterval 过期清理间隔，0 表示不清理
	SweepInterval time.Duration
	DefaultOrigin string
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Workers:       8,
		QueueTimeout:  30 * time.Second,
		SyncWindow:    2 * time.Second,
		Retention:     time.Hour,
		SweepInterval: time.Minute,
	}
}

// ConfigFrom 由应用配置构造
func ConfigFrom(c config.OrchestratorConfig) Config {
	return Config{
		Workers:       c.Workers,
		QueueTimeout:  c.QueueTimeout,
		SyncWindow:    c.SyncWindow,
		Retention:     c.Retention,
		SweepInterval: c.SweepInterval,
		DefaultOrigin: c.DefaultOrigin,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = d.QueueTimeout
	}
	if c.SyncWindow < 0 {
		c.SyncWindow = 0
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
}
