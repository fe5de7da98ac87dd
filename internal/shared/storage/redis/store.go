// Package redis Redis 任务存储实现
//
// 任务记录以 JSON 字符串保存在 trip:task:{id}，结束的任务按保留期设置 TTL，
// 未结束的任务使用兜底 TTL，避免异常退出后残留。
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-planner/internal/shared/storage"
)

const (
	// KeyTaskPrefix 任务记录 key 前缀
	KeyTaskPrefix = "trip:task:"

	defaultActiveTTL  = 6 * time.Hour
	defaultMaxRetries = 16
)

// Options 存储选项
type Options struct {
	// ActiveTTL 未结束任务的兜底过期时长
	ActiveTTL time.Duration
	// MaxRetries 乐观锁冲突时的最大重试次数
	MaxRetries int
}

// Store Redis 任务存储
type Store struct {
	client     *redis.Client
	activeTTL  time.Duration
	maxRetries int
	now        func() time.Time
}

var _ storage.TaskStore = (*Store)(nil)

// NewStore 创建 Redis 存储实例
func NewStore(addr, password string, db int, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := ping(client); err != nil {
		client.Close()
		return nil, err
	}
	log.Printf("[Redis] Connected to %s", addr)
	return NewStoreFromClient(client, opts), nil
}

// NewStoreFromURL 从 URL 创建 Redis 存储实例
func NewStoreFromURL(redisURL string, opts Options) (*Store, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(parsed)
	if err := ping(client); err != nil {
		client.Close()
		return nil, err
	}
	log.Printf("[Redis] Connected to %s", parsed.Addr)
	return NewStoreFromClient(client, opts), nil
}

// NewStoreFromClient 使用已有客户端创建存储
func NewStoreFromClient(client *redis.Client, opts Options) *Store {
	if opts.ActiveTTL <= 0 {
		opts.ActiveTTL = defaultActiveTTL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &Store{
		client:     client,
		activeTTL:  opts.ActiveTTL,
		maxRetries: opts.MaxRetries,
		now:        time.Now,
	}
}

func ping(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 Redis 客户端
func (s *Store) Client() *redis.Client {
	return s.client
}
