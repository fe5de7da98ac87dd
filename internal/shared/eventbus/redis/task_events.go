// Package redis 基于 Redis Streams 的任务事件总线
//
// 每个任务一个 Stream（trip:events:{id}），限制长度并设置过期时间，
// 多个 API Server 实例共享同一组事件。
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-planner/internal/shared/eventbus"
)

const (
	streamMaxLen = 100
	readBlock    = 5 * time.Second
)

// Bus Redis Streams 事件总线
type Bus struct {
	client *redis.Client
	ttl    time.Duration
}

var _ eventbus.TaskEventBus = (*Bus)(nil)

// NewBus 创建事件总线，ttl 为 Stream 的过期时长（通常与任务保留期一致）
func NewBus(client *redis.Client, ttl time.Duration) *Bus {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Bus{client: client, ttl: ttl}
}

func streamKey(taskID string) string {
	return eventbus.KeyTaskEvents + taskID
}

// Publish 追加事件到任务 Stream
func (b *Bus) Publish(ctx context.Context, event *eventbus.TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := streamKey(event.TaskID)
	pipe := b.client.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": event.Type,
			"data": string(data),
		},
	})
	pipe.Expire(ctx, key, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe 从当前位置开始读取任务 Stream
//
// 起始位置在返回前确定，返回之后发布的事件都会被读到。
func (b *Bus) Subscribe(ctx context.Context, taskID string) (<-chan *eventbus.TaskEvent, error) {
	key := streamKey(taskID)
	lastID, err := b.lastID(ctx, key)
	if err != nil {
		return nil, err
	}
	ch := make(chan *eventbus.TaskEvent, 32)

	go func() {
		defer close(ch)

		for {
			if ctx.Err() != nil {
				return
			}

			streams, err := b.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   readBlock,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() == nil {
					log.Printf("[Redis/EventBus] subscription error task=%s: %v", taskID, err)
				}
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					raw, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var event eventbus.TaskEvent
					if err := json.Unmarshal([]byte(raw), &event); err != nil {
						continue
					}
					select {
					case ch <- &event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// lastID 当前最后一条消息的 ID，Stream 为空时从头读取
func (b *Bus) lastID(ctx context.Context, key string) (string, error) {
	msgs, err := b.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read stream position: %w", err)
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

// Close 客户端由存储层持有，这里不关闭
func (b *Bus) Close() error {
	return nil
}
