package agent

import (
	"context"
	"sort"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

// FlightAgent 航班搜索
type FlightAgent struct {
	deps Deps
}

// Kind Agent 类型
func (a *FlightAgent) Kind() model.AgentKind {
	return model.AgentFlight
}

// Run 搜索往返航班，按总价升序，超出航班预算份额的方案被剔除（保留最便宜的一个）
func (a *FlightAgent) Run(ctx context.Context, in *Input) (*model.StageResults, error) {
	req := in.Request
	c := provider.FlightCriteria{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: req.StartDate,
		ReturnDate:    req.EndDate,
		Travelers:     req.Travelers,
		MaxPrice:      req.Budget.MulRatio(ShareFlights),
	}

	var live func(context.Context) ([]model.FlightOption, error)
	name := ""
	if a.deps.Flights != nil {
		name = a.deps.Flights.Name()
		live = func(ctx context.Context) ([]model.FlightOption, error) {
			return a.deps.Flights.SearchFlights(ctx, c)
		}
	}
	options, prov, err := searchWithFallback(ctx, &a.deps, a.Kind(), name, live,
		func(ctx context.Context) ([]model.FlightOption, error) {
			return a.deps.Fallback.SearchFlights(ctx, c)
		})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].TotalPrice < options[j].TotalPrice
	})
	options = capByPrice(options, c.MaxPrice, func(o model.FlightOption) model.Money { return o.TotalPrice })
	if len(options) > maxFlightOptions {
		options = options[:maxFlightOptions]
	}

	return &model.StageResults{
		Flights: &model.FlightResult{Provenance: prov, Options: options},
	}, nil
}

// capByPrice 过滤超出上限的项，若全部超出则保留最便宜的一项
//
// 保持输入顺序。limit 为 0 表示不限。
func capByPrice[T any](items []T, limit model.Money, price func(T) model.Money) []T {
	if limit <= 0 || len(items) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	cheapest := 0
	for i, it := range items {
		if price(it) <= limit {
			out = append(out, it)
		}
		if price(it) < price(items[cheapest]) {
			cheapest = i
		}
	}
	if len(out) == 0 {
		out = append(out, items[cheapest])
	}
	return out
}
