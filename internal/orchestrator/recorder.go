package orchestrator

import (
	"time"

	"trip-planner/internal/shared/model"
)

// Recorder 编排器指标
type Recorder interface {
	TaskSubmitted()
	TaskFinished(status model.TaskStatus, degraded bool, d time.Duration)
	AgentCompleted(kind model.AgentKind, source model.Source, d time.Duration)
	WorkersBusy(n int)
}

// NoopRecorder 不记录任何指标
type NoopRecorder struct{}

func (NoopRecorder) TaskSubmitted() {}
func (NoopRecorder) TaskFinished(model.TaskStatus, bool, time.Duration) {}
func (NoopRecorder) AgentCompleted(model.AgentKind, model.Source, time.Duration) {}
func (NoopRecorder) WorkersBusy(int) {}
