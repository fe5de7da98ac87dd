// Package eventbus 事件总线类型定义
package eventbus

import (
	"time"

	"trip-planner/internal/shared/model"
)

// ============================================================================
// 事件类型
// ============================================================================

const (
	// EventTaskStatus 任务状态变化
	EventTaskStatus = "task.status"
	// EventAgentCompleted 某个 Agent 返回结果
	EventAgentCompleted = "task.agent_completed"
)

// TaskEvent 任务事件
type TaskEvent struct {
	Type      string           `json:"type"`
	TaskID    string           `json:"task_id"`
	Status    model.TaskStatus `json:"status"`
	Progress  int              `json:"progress"`
	Stage     string           `json:"stage,omitempty"`
	Agent     model.AgentKind  `json:"agent,omitempty"`
	Source    model.Source     `json:"source,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Terminal 事件是否表示任务结束
func (e *TaskEvent) Terminal() bool {
	return e.Type == EventTaskStatus && e.Status.IsTerminal()
}

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// KeyTaskEvents Redis Stream key 前缀
	KeyTaskEvents = "trip:events:"

	// subscriberBuffer 每个订阅者的缓冲区大小
	subscriberBuffer = 32
)
