// Package orchestrator 行程规划任务编排
//
// 编排器负责：
//   - 校验请求并创建任务记录
//   - 在有界的工作池中执行任务（semaphore 限制并发）
//   - 第一阶段 Agent 并行执行并显式汇合，之后依次执行行程与预算阶段
//   - 在同步窗口内完成的任务直接返回结果，否则返回任务 ID 供轮询
//   - 定期清理保留期已过的任务
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"trip-planner/internal/agent"
	"trip-planner/internal/shared/eventbus"
	"trip-planner/internal/shared/model"
	"trip-planner/internal/shared/storage"
	"trip-planner/pkg/logging"
)

// SubmitStatus 提交接口的返回状态
type SubmitStatus string

const (
	// SubmitCompleted 同步窗口内完成
	SubmitCompleted SubmitStatus = "completed"
	// SubmitProcessing 仍在执行，需轮询
	SubmitProcessing SubmitStatus = "processing"
	// SubmitFailed 同步窗口内失败
	SubmitFailed SubmitStatus = "failed"
)

// SubmitResult 提交结果
type SubmitResult struct {
	Status SubmitStatus    `json:"status"`
	TaskID string          `json:"task_id"`
	Result *model.TripPlan `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ErrPoolSaturated 直接调用 Agent 时等待空闲槽位超时
var ErrPoolSaturated = errors.New("worker pool saturated")

// Orchestrator 任务编排器
type Orchestrator struct {
	cfg      Config
	store    storage.TaskStore
	registry *agent.Registry
	bus      eventbus.TaskEventBus
	rec      Recorder
	log      *logging.Logger

	sem  *semaphore.Weighted
	busy atomic.Int64
	now  func() time.Time

	mu      sync.Mutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc

	tasks   sync.WaitGroup
	janitor sync.WaitGroup
}

// New 创建编排器
//
// bus、rec、logger 可以为 nil。
func New(cfg Config, store storage.TaskStore, registry *agent.Registry, bus eventbus.TaskEventBus, rec Recorder, logger *logging.Logger) *Orchestrator {
	cfg.normalize()
	if bus == nil {
		bus = eventbus.NewNoOpEventBus()
	}
	if rec == nil {
		rec = NoopRecorder{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		registry: registry,
		bus:      bus,
		rec:      rec,
		log:      logger.Named("orchestrator"),
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// SetClock 替换时钟，测试使用
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Config 当前配置
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Start 绑定基础上下文并启动过期清理
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true
	o.cancel()
	o.baseCtx, o.cancel = context.WithCancel(ctx)

	o.log.Info("Orchestrator started",
		"workers", o.cfg.Workers,
		"sync_window", o.cfg.SyncWindow.String(),
		"retention", o.cfg.Retention.String())

	if o.cfg.SweepInterval > 0 {
		o.janitor.Add(1)
		go o.sweepLoop(o.baseCtx)
	}
}

// Stop 取消所有执行中的任务并等待其结束
//
// 取消后 Agent 的外部调用立即超时并使用兜底数据，任务仍会写入终态。
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.running = false
	o.cancel()
	o.mu.Unlock()

	o.janitor.Wait()
	o.tasks.Wait()
}

// Shutdown 在 ctx 期限内停止
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.Stop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) base() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.baseCtx
}

// ============================================================================
// 提交与查询
// ============================================================================

// Submit 校验请求、创建任务并在同步窗口内等待结果
//
// 校验失败返回 *model.ValidationError，不创建任务。
func (o *Orchestrator) Submit(ctx context.Context, payload model.TripRequestPayload) (*SubmitResult, error) {
	req, err := o.parse(ctx, payload)
	if err != nil {
		return nil, err
	}

	task := model.NewTaskRecord(uuid.NewString(), req, o.now())
	if err := o.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	o.rec.TaskSubmitted()
	o.log.TaskLog("submitted", task.ID, "destination", req.Destination, "budget", req.Budget.String())
	o.publish(ctx, task, eventbus.EventTaskStatus, "", "")

	done := o.dispatch(task.ID)

	result := &SubmitResult{Status: SubmitProcessing, TaskID: task.ID}
	if o.cfg.SyncWindow <= 0 {
		return result, nil
	}

	timer := time.NewTimer(o.cfg.SyncWindow)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		return result, nil
	case <-ctx.Done():
		return result, nil
	}

	final, err := o.store.Get(ctx, task.ID)
	if err != nil {
		return result, nil
	}
	switch final.Status {
	case model.TaskStatusCompleted:
		result.Status = SubmitCompleted
		result.Result = final.Result
	case model.TaskStatusFailed:
		result.Status = SubmitFailed
		result.Error = final.Error
	}
	return result, nil
}

// parse 校验请求，记录被忽略的偏好
func (o *Orchestrator) parse(ctx context.Context, payload model.TripRequestPayload) (*model.TripRequest, error) {
	req, err := model.ParseTripRequest(payload, o.cfg.DefaultOrigin)
	if err != nil {
		return nil, err
	}
	if len(req.Ignored) > 0 {
		o.log.WithContext(ctx).Debug("Unknown preferences ignored", "ignored", req.Ignored)
	}
	return req, nil
}

// Status 返回任务快照，未知或已过期返回 model.ErrTaskNotFound
func (o *Orchestrator) Status(ctx context.Context, id string) (*model.TaskRecord, error) {
	task, err := o.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if task.Expired(o.now()) {
		return nil, model.ErrTaskNotFound
	}
	return task, nil
}

// Subscribe 订阅任务事件
func (o *Orchestrator) Subscribe(ctx context.Context, id string) (<-chan *eventbus.TaskEvent, error) {
	return o.bus.Subscribe(ctx, id)
}

// RunAgent 同步运行单个 Agent 及其依赖，不创建任务
//
// 同样占用工作池槽位。
func (o *Orchestrator) RunAgent(ctx context.Context, kind model.AgentKind, payload model.TripRequestPayload) (*model.StageResults, error) {
	if !kind.Valid() {
		return nil, model.NewValidationError("agent", "unknown agent "+string(kind))
	}
	req, err := o.parse(ctx, payload)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var results *model.StageResults
	err = safely(string(kind), func() error {
		var runErr error
		results, runErr = o.registry.RunChain(ctx, req, kind)
		return runErr
	})
	if err != nil {
		o.log.WithAgent(string(kind)).WithError(err).Error("Direct agent run failed")
		return nil, err
	}
	return results, nil
}

// ============================================================================
// 工作池
// ============================================================================

// dispatch 启动任务协程，返回任务结束时关闭的通道
func (o *Orchestrator) dispatch(id string) <-chan struct{} {
	done := make(chan struct{})
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		defer close(done)
		o.execute(id)
	}()
	return done
}

// acquire 在 QueueTimeout 内获取一个槽位，用于同步的直接调用
func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.QueueTimeout)
	defer cancel()
	release, err := o.acquireSlot(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrPoolSaturated, err)
	}
	return release, nil
}

// acquireSlot 等待槽位直到 ctx 结束
func (o *Orchestrator) acquireSlot(ctx context.Context) (func(), error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	o.rec.WorkersBusy(int(o.busy.Add(1)))
	return func() {
		o.sem.Release(1)
		o.rec.WorkersBusy(int(o.busy.Add(-1)))
	}, nil
}

// InFlight 当前占用的槽位数
func (o *Orchestrator) InFlight() int {
	return int(o.busy.Load())
}

// execute 获取槽位并执行任务，任何错误都写入 failed
//
// 等待槽位期间任务保持 pending，只有停机才会中断等待。
func (o *Orchestrator) execute(id string) {
	ctx := logging.ContextWithTaskID(o.base(), id)
	start := o.now()

	release, err := o.acquireSlot(ctx)
	if err != nil {
		o.fail(ctx, id, fmt.Errorf("orchestrator shutting down: %w", err), start)
		return
	}
	defer release()

	err = safely("task", func() error {
		return o.run(ctx, id, start)
	})
	if err != nil {
		o.fail(ctx, id, err, start)
	}
}

// safely 执行 fn，panic 转换为 AggregationFault
func safely(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewAggregationFault(stage, fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return fn()
}

// ============================================================================
// 过期清理
// ============================================================================

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	defer o.janitor.Done()
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Sweep(ctx)
		}
	}
}

// Sweep 删除保留期已过的任务
func (o *Orchestrator) Sweep(ctx context.Context) int {
	n, err := o.store.DeleteExpired(ctx, o.now())
	if err != nil {
		if ctx.Err() == nil {
			o.log.WithError(err).Warn("Sweep expired tasks failed")
		}
		return 0
	}
	if n > 0 {
		o.log.Info("Expired tasks removed", "count", n)
	}
	return n
}
