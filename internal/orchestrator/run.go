package orchestrator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"trip-planner/internal/agent"
	"trip-planner/internal/shared/eventbus"
	"trip-planner/internal/shared/model"
)

const (
	stageSearch    = "search"
	stageAggregate = "aggregate"
)

// run 执行一个任务的全部阶段
//
// 阶段结果都先写入存储，后续阶段从存储快照中读取前序结果。
func (o *Orchestrator) run(ctx context.Context, id string, start time.Time) error {
	wctx := context.WithoutCancel(ctx)
	log := o.log.WithTaskID(id)

	task, err := o.update(wctx, id, func(t *model.TaskRecord) error {
		t.Stage = stageSearch
		return t.Advance(model.TaskStatusRunning, 0, o.now())
	})
	if err != nil {
		return err
	}
	o.publish(wctx, task, eventbus.EventTaskStatus, "", "")
	req := task.Request

	// 第一阶段：并行执行，各自写入自己的槽位
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range agent.Stages[0] {
		g.Go(func() error {
			out, err := o.runAgent(gctx, kind, &agent.Input{Request: req})
			if err != nil {
				return err
			}
			snap, err := o.update(wctx, id, func(t *model.TaskRecord) error {
				return t.RecordStage1(kind, out, o.now())
			})
			if err != nil {
				return err
			}
			prov, _ := out.ProvenanceOf(kind)
			o.publish(wctx, snap, eventbus.EventAgentCompleted, kind, prov.Source)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 汇合
	task, err = o.update(wctx, id, func(t *model.TaskRecord) error {
		if t.Results.Stage1Count() != model.Stage1Size {
			return model.NewAggregationFault(stageSearch, "stage 1 joined with missing results", nil)
		}
		t.Stage = string(agent.Stages[1][0])
		return t.Advance(model.TaskStatusAggregating, model.Stage1Size, o.now())
	})
	if err != nil {
		return err
	}
	o.publish(wctx, task, eventbus.EventTaskStatus, "", "")
	log.Debug("Stage 1 joined")

	// 后续阶段：依次执行，读取之前全部结果
	for i, stage := range agent.Stages[1:] {
		prior := task.Results
		g, gctx := errgroup.WithContext(ctx)
		outs := make([]*model.StageResults, len(stage))
		for j, kind := range stage {
			g.Go(func() error {
				out, err := o.runAgent(gctx, kind, &agent.Input{Request: req, Prior: prior})
				outs[j] = out
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		next := stageAggregate
		if i+2 < len(agent.Stages) {
			next = string(agent.Stages[i+2][0])
		}
		task, err = o.update(wctx, id, func(t *model.TaskRecord) error {
			for j, kind := range stage {
				t.Results.Set(kind, outs[j])
				if !t.Results.Has(kind) {
					return model.NewAggregationFault(string(kind), "agent returned no result", nil)
				}
			}
			t.Stage = next
			t.UpdatedAt = o.now().UTC()
			return nil
		})
		if err != nil {
			return err
		}
		for j, kind := range stage {
			prov, _ := outs[j].ProvenanceOf(kind)
			o.publish(wctx, task, eventbus.EventAgentCompleted, kind, prov.Source)
		}
	}

	plan, err := model.NewTripPlan(id, req, task.Results, o.now())
	if err != nil {
		return err
	}

	task, err = o.update(wctx, id, func(t *model.TaskRecord) error {
		return t.Complete(plan, o.now(), o.cfg.Retention)
	})
	if err != nil {
		return err
	}
	o.publish(wctx, task, eventbus.EventTaskStatus, "", "")

	dur := o.now().Sub(start)
	o.rec.TaskFinished(model.TaskStatusCompleted, plan.Degraded.Degraded, dur)
	log.WithDuration(dur).Info("Task completed",
		"degraded", plan.Degraded.Degraded,
		"budget_status", string(plan.BudgetAnalysis.Summary.Status))
	return nil
}

// runAgent 运行单个 Agent，panic 转换为 AggregationFault
func (o *Orchestrator) runAgent(ctx context.Context, kind model.AgentKind, in *agent.Input) (*model.StageResults, error) {
	a, ok := o.registry.Get(kind)
	if !ok {
		return nil, model.NewAggregationFault(string(kind), "agent not registered", nil)
	}

	start := time.Now()
	var out *model.StageResults
	err := safely(string(kind), func() error {
		var runErr error
		out, runErr = a.Run(ctx, in)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	if out == nil || !out.Has(kind) {
		return nil, model.NewAggregationFault(string(kind), "agent returned no result", nil)
	}

	prov, _ := out.ProvenanceOf(kind)
	o.rec.AgentCompleted(kind, prov.Source, time.Since(start))
	return out, nil
}

// update 包装存储的原子更新
func (o *Orchestrator) update(ctx context.Context, id string, fn func(*model.TaskRecord) error) (*model.TaskRecord, error) {
	return o.store.Update(ctx, id, fn)
}

// fail 将任务写入 failed，已是终态时不做任何事
func (o *Orchestrator) fail(ctx context.Context, id string, cause error, start time.Time) {
	wctx := context.WithoutCancel(ctx)
	log := o.log.WithTaskID(id).WithError(cause)

	task, err := o.update(wctx, id, func(t *model.TaskRecord) error {
		return t.Fail(cause.Error(), o.now(), o.cfg.Retention)
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			log.Warn("Task already finished, failure ignored")
			return
		}
		log.Error("Failed to record task failure", "store_error", err.Error())
		return
	}
	o.publish(wctx, task, eventbus.EventTaskStatus, "", "")

	dur := o.now().Sub(start)
	o.rec.TaskFinished(model.TaskStatusFailed, false, dur)
	log.WithDuration(dur).Error("Task failed")
}

// publish 发布事件，失败只记录日志
func (o *Orchestrator) publish(ctx context.Context, task *model.TaskRecord, typ string, kind model.AgentKind, source model.Source) {
	event := &eventbus.TaskEvent{
		Type:      typ,
		TaskID:    task.ID,
		Status:    task.Status,
		Progress:  task.Progress,
		Stage:     task.Stage,
		Agent:     kind,
		Source:    source,
		Error:     task.Error,
		Timestamp: o.now().UTC(),
	}
	if err := o.bus.Publish(ctx, event); err != nil {
		o.log.WithTaskID(task.ID).WithError(err).Warn("Publish task event failed")
	}
}
