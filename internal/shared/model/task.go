// task.go 包含规划任务的数据模型定义：
//   - TaskStatus：任务状态枚举及单调迁移规则
//   - TaskRecord：任务记录（请求、阶段结果、最终方案、错误）
package model

import (
	"fmt"
	"time"
)

// ============================================================================
// TaskStatus - 任务状态
// ============================================================================

// TaskStatus 任务状态
//
// 状态机：pending → running → partially_complete(k) → aggregating → completed
// 任何非终态都可以直接进入 failed。状态只能前进。
type TaskStatus string

const (
	// TaskStatusPending 已创建，等待空闲槽位
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning 已派发，第一阶段执行中
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusPartiallyComplete 第一阶段部分返回，Progress 记录返回数
	TaskStatusPartiallyComplete TaskStatus = "partially_complete"
	// TaskStatusAggregating 第一阶段已汇合，执行行程与预算阶段
	TaskStatusAggregating TaskStatus = "aggregating"
	// TaskStatusCompleted 成功结束
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed 失败结束
	TaskStatusFailed TaskStatus = "failed"
)

// Stage1Size 第一阶段 Agent 数
const Stage1Size = 3

// Rank 状态序号，终态序号相同
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusRunning:
		return 1
	case TaskStatusPartiallyComplete:
		return 2
	case TaskStatusAggregating:
		return 3
	case TaskStatusCompleted, TaskStatusFailed:
		return 4
	}
	return -1
}

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Public 对外暴露的状态：pending|running|completed|failed
func (s TaskStatus) Public() TaskStatus {
	switch s {
	case TaskStatusPartiallyComplete, TaskStatusAggregating:
		return TaskStatusRunning
	}
	return s
}

// CanTransition 判断状态迁移是否合法
//
// 规则：终态不可再迁移；failed 可由任何非终态进入；
// partially_complete 自迁移要求 progress 增加；其余要求序号严格增加。
func CanTransition(from TaskStatus, fromProgress int, to TaskStatus, toProgress int) bool {
	if from.IsTerminal() || to.Rank() < 0 {
		return false
	}
	if to == TaskStatusFailed {
		return true
	}
	if toProgress < fromProgress || toProgress > Stage1Size {
		return false
	}
	if from == TaskStatusPartiallyComplete && to == TaskStatusPartiallyComplete {
		return toProgress > fromProgress
	}
	if to == TaskStatusAggregating && toProgress != Stage1Size {
		return false
	}
	return to.Rank() > from.Rank()
}

// ============================================================================
// TaskRecord - 任务记录
// ============================================================================

// TaskRecord 规划任务记录
//
// 只有编排器会修改 TaskRecord；调用方拿到的始终是存储层返回的快照副本。
type TaskRecord struct {
	// ID 任务唯一标识
	ID string `json:"id"`

	// Status 当前状态
	Status TaskStatus `json:"status"`

	// Progress 第一阶段已返回的 Agent 数（0..3）
	Progress int `json:"progress"`

	// Stage 当前执行的步骤（search、itinerary、budget、aggregate）
	Stage string `json:"stage,omitempty"`

	// Request 所属请求
	Request *TripRequest `json:"request"`

	// Results 各阶段的中间结果
	Results StageResults `json:"results"`

	// Result 最终方案，仅在 completed 时存在
	Result *TripPlan `json:"result,omitempty"`

	// Error 失败原因，仅在 failed 时存在
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// ExpiresAt 保留期截止时间，到期后记录被清理
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewTaskRecord 创建 pending 状态的任务记录
func NewTaskRecord(id string, req *TripRequest, now time.Time) *TaskRecord {
	now = now.UTC()
	return &TaskRecord{
		ID:        id,
		Status:    TaskStatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance 迁移到新状态
func (t *TaskRecord) Advance(to TaskStatus, progress int, now time.Time) error {
	if !CanTransition(t.Status, t.Progress, to, progress) {
		return fmt.Errorf("%w: %s(%d) -> %s(%d)", ErrInvalidTransition, t.Status, t.Progress, to, progress)
	}
	now = now.UTC()
	t.Status = to
	t.Progress = progress
	t.UpdatedAt = now
	if to == TaskStatusRunning && t.StartedAt == nil {
		t.StartedAt = &now
	}
	return nil
}

// RecordStage1 写入一个第一阶段结果并推进 progress
func (t *TaskRecord) RecordStage1(kind AgentKind, from *StageResults, now time.Time) error {
	if t.Results.Has(kind) {
		return fmt.Errorf("%w: %s result already recorded", ErrInvalidTransition, kind)
	}
	t.Results.Set(kind, from)
	if !t.Results.Has(kind) {
		return fmt.Errorf("agent %s returned no result", kind)
	}
	return t.Advance(TaskStatusPartiallyComplete, t.Results.Stage1Count(), now)
}

// Complete 设置最终方案并进入 completed
func (t *TaskRecord) Complete(plan *TripPlan, now time.Time, retention time.Duration) error {
	if err := t.Advance(TaskStatusCompleted, t.Progress, now); err != nil {
		return err
	}
	t.Result = plan
	t.Stage = ""
	t.finish(retention)
	return nil
}

// Fail 记录错误并进入 failed
func (t *TaskRecord) Fail(reason string, now time.Time, retention time.Duration) error {
	if err := t.Advance(TaskStatusFailed, t.Progress, now); err != nil {
		return err
	}
	t.Error = reason
	t.finish(retention)
	return nil
}

func (t *TaskRecord) finish(retention time.Duration) {
	finished := t.UpdatedAt
	expires := finished.Add(retention)
	t.FinishedAt = &finished
	t.ExpiresAt = &expires
}

// Expired 保留期是否已过
func (t *TaskRecord) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
