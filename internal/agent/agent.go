// Package agent 行程规划的各个 Agent
//
// 每个 Agent 只读取 TripRequest 与已完成阶段的结果，只写自己的结果槽位。
// 搜索类 Agent 在数据源失败时切换到确定性兜底生成器，不向上返回数据源错误；
// 返回的 error 一律视为聚合故障，由编排器终止任务。
package agent

import (
	"context"
	"fmt"
	"time"

	"trip-planner/internal/provider"
	"trip-planner/internal/provider/fallback"
	"trip-planner/internal/shared/model"
	"trip-planner/pkg/logging"
)

// Input Agent 输入
type Input struct {
	Request *model.TripRequest
	// Prior 之前阶段的结果（只读）
	Prior model.StageResults
}

// Agent 行程规划单元
type Agent interface {
	Kind() model.AgentKind
	// Run 返回只填充自身槽位的结果
	Run(ctx context.Context, in *Input) (*model.StageResults, error)
}

// Stages 执行顺序：同一阶段内并行，阶段之间串行
var Stages = [][]model.AgentKind{
	{model.AgentFlight, model.AgentHotel, model.AgentRecommendation},
	{model.AgentItinerary},
	{model.AgentBudget},
}

// Observer 数据源调用观测
type Observer interface {
	ProviderCall(provider string, agent model.AgentKind, d time.Duration, err error)
}

// DefaultProviderTimeout 单次数据源调用超时
const DefaultProviderTimeout = 8 * time.Second

// Deps Agent 依赖
//
// 在线数据源可以为 nil，此时直接使用兜底数据。
type Deps struct {
	Flights  provider.FlightSearcher
	Hotels   provider.HotelSearcher
	Places   provider.PlaceSearcher
	Fallback *fallback.Generator

	ProviderTimeout time.Duration
	Observer        Observer
	Logger          *logging.Logger
}

func (d *Deps) normalize() {
	if d.Fallback == nil {
		d.Fallback = fallback.New()
	}
	if d.ProviderTimeout <= 0 {
		d.ProviderTimeout = DefaultProviderTimeout
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
}

// Registry Agent 静态分发表
type Registry struct {
	agents map[model.AgentKind]Agent
}

// NewRegistry 按依赖构造全部 Agent
func NewRegistry(d Deps) *Registry {
	d.normalize()
	return NewRegistryWith(
		&FlightAgent{deps: d},
		&HotelAgent{deps: d},
		&RecommendationAgent{deps: d},
		&ItineraryAgent{},
		&BudgetAgent{},
	)
}

// NewRegistryWith 使用给定 Agent 构造分发表，同类后者覆盖前者
func NewRegistryWith(agents ...Agent) *Registry {
	r := &Registry{agents: make(map[model.AgentKind]Agent, len(agents))}
	for _, a := range agents {
		r.agents[a.Kind()] = a
	}
	return r
}

// Get 按类型查找 Agent
func (r *Registry) Get(kind model.AgentKind) (Agent, bool) {
	a, ok := r.agents[kind]
	return a, ok
}

// Replace 替换某类 Agent，返回新的分发表
func (r *Registry) Replace(a Agent) *Registry {
	agents := make(map[model.AgentKind]Agent, len(r.agents))
	for k, v := range r.agents {
		agents[k] = v
	}
	agents[a.Kind()] = a
	return &Registry{agents: agents}
}

// Dependencies kind 运行前必须完成的 Agent
func Dependencies(kind model.AgentKind) []model.AgentKind {
	var deps []model.AgentKind
	for _, stage := range Stages {
		for _, k := range stage {
			if k == kind {
				return deps
			}
		}
		deps = append(deps, stage...)
	}
	return deps
}

// RunChain 依次运行 kind 及其全部依赖，不经过任务存储
func (r *Registry) RunChain(ctx context.Context, req *model.TripRequest, kind model.AgentKind) (*model.StageResults, error) {
	var results model.StageResults
	for _, k := range append(Dependencies(kind), kind) {
		a, ok := r.Get(k)
		if !ok {
			return nil, model.NewAggregationFault(string(k), "agent not registered", nil)
		}
		out, err := a.Run(ctx, &Input{Request: req, Prior: results})
		if err != nil {
			return nil, err
		}
		results.Set(k, out)
	}
	return &results, nil
}

// ============================================================================
// 数据源调用与兜底
// ============================================================================

// searchWithFallback 在超时内调用在线数据源，失败或无结果时使用兜底生成器
//
// 兜底生成器本身失败属于聚合故障。
func searchWithFallback[T any](
	ctx context.Context,
	d *Deps,
	kind model.AgentKind,
	name string,
	live func(context.Context) ([]T, error),
	fb func(context.Context) ([]T, error),
) ([]T, model.Provenance, error) {
	log := d.Logger.WithAgent(string(kind))

	reason := "provider not configured"
	if live != nil {
		callCtx, cancel := context.WithTimeout(ctx, d.ProviderTimeout)
		start := time.Now()
		items, err := live(callCtx)
		cancel()
		dur := time.Since(start)

		if err == nil && len(items) == 0 {
			err = provider.NewError(name, string(kind), provider.KindUpstream, fmt.Errorf("empty result"))
		}
		if d.Observer != nil {
			d.Observer.ProviderCall(name, kind, dur, err)
		}
		log.ProviderLog(name, string(kind), dur, err)
		if err == nil {
			return items, model.Live(name), nil
		}
		reason = fallbackReason(err)
	}

	items, err := fb(ctx)
	if err != nil {
		return nil, model.Provenance{}, model.NewAggregationFault(string(kind), "fallback generator failed", err)
	}
	if len(items) == 0 {
		return nil, model.Provenance{}, model.NewAggregationFault(string(kind), "fallback generator returned no options", nil)
	}
	return items, model.Fallback(reason), nil
}

func fallbackReason(err error) string {
	if k := provider.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
