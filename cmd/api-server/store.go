package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"trip-planner/internal/config"
	"trip-planner/internal/shared/eventbus"
	redisbus "trip-planner/internal/shared/eventbus/redis"
	"trip-planner/internal/shared/storage"
	sqlitedriver "trip-planner/internal/shared/storage/driver/sqlite"
	redisstore "trip-planner/internal/shared/storage/redis"
	"trip-planner/internal/shared/storage/repository"
)

// openStore 按 store.driver 创建任务存储与事件总线
//
//   - memory: 进程内存储 + 内存事件总线
//   - redis:  Redis 存储 + Redis Streams 事件总线（多实例共享）
//   - sqlite: SQLite 存储 + 内存事件总线
func openStore(cfg *config.Config) (storage.TaskStore, eventbus.TaskEventBus, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		store, err := redisstore.NewStoreFromURL(cfg.RedisURL, redisstore.Options{ActiveTTL: cfg.Orchestrator.ActiveTTL})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Println("[api-server.store] using redis task store")
		return store, redisbus.NewBus(store.Client(), cfg.Orchestrator.Retention), nil

	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		db, err := sqlitedriver.Open("file:" + cfg.SQLitePath + "?mode=rwc")
		if err != nil {
			return nil, nil, err
		}
		if err := sqlitedriver.AutoMigrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Printf("[api-server.store] using sqlite task store at %s", cfg.SQLitePath)
		return repository.NewStore(db), eventbus.NewMemoryBus(), nil

	default:
		log.Println("[api-server.store] using in-memory task store")
		return storage.NewMemoryStore(), eventbus.NewMemoryBus(), nil
	}
}
