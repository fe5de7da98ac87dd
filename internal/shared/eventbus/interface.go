// Package eventbus 任务事件总线抽象接口
//
// 编排器在每次状态迁移时发布事件，WebSocket 网关按任务订阅。
// 单机部署使用内存实现，多实例部署使用 Redis Streams 实现。
package eventbus

import (
	"context"
)

// TaskEventBus 任务事件总线接口
type TaskEventBus interface {
	// Publish 发布事件，不阻塞发布方
	Publish(ctx context.Context, event *TaskEvent) error

	// Subscribe 订阅某个任务的后续事件，ctx 取消后通道关闭
	Subscribe(ctx context.Context, taskID string) (<-chan *TaskEvent, error)

	Close() error
}
