// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"
)

// NoOpEventBus 是一个不做任何操作的 TaskEventBus 实现（用于测试）
type NoOpEventBus struct{}

var _ TaskEventBus = (*NoOpEventBus)(nil)

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

func (e *NoOpEventBus) Publish(ctx context.Context, event *TaskEvent) error {
	return nil
}

func (e *NoOpEventBus) Subscribe(ctx context.Context, taskID string) (<-chan *TaskEvent, error) {
	ch := make(chan *TaskEvent)
	close(ch)
	return ch, nil
}

func (e *NoOpEventBus) Close() error {
	return nil
}
