package eventbus

import (
	"context"
	"sync"
)

// MemoryBus 进程内事件总线
//
// 发送为非阻塞：订阅者缓冲区满时丢弃事件，不影响编排器推进。
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan *TaskEvent]struct{}
	closed bool
}

var _ TaskEventBus = (*MemoryBus)(nil)

// NewMemoryBus 创建内存事件总线
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan *TaskEvent]struct{})}
}

// Publish 发布事件
func (b *MemoryBus) Publish(ctx context.Context, event *TaskEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.TaskID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe 订阅任务事件
func (b *MemoryBus) Subscribe(ctx context.Context, taskID string) (<-chan *TaskEvent, error) {
	ch := make(chan *TaskEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	set := b.subs[taskID]
	if set == nil {
		set = make(map[chan *TaskEvent]struct{})
		b.subs[taskID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(taskID, ch)
	}()
	return ch, nil
}

func (b *MemoryBus) unsubscribe(taskID string, ch chan *TaskEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[taskID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(b.subs, taskID)
	}
	close(ch)
}

// Subscribers 某任务当前的订阅者数量
func (b *MemoryBus) Subscribers(taskID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[taskID])
}

// Close 关闭所有订阅
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for taskID, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, taskID)
	}
	b.closed = true
	return nil
}
