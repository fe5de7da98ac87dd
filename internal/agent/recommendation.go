package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

// RecommendationAgent 活动推荐
type RecommendationAgent struct {
	deps Deps
}

// Kind Agent 类型
func (a *RecommendationAgent) Kind() model.AgentKind {
	return model.AgentRecommendation
}

// categoriesFor 请求的活动类别，未指定时使用默认组合
func categoriesFor(req *model.TripRequest) []model.ActivityCategory {
	if len(req.Preferences.Activities) == 0 {
		return DefaultActivityMix
	}
	return req.Preferences.Activities
}

// Run 各类别并行查询，每类最多 5 项，按评分降序
//
// 任一类别使用了兜底数据，整个结果标记为 fallback。
func (a *RecommendationAgent) Run(ctx context.Context, in *Input) (*model.StageResults, error) {
	req := in.Request
	categories := categoriesFor(req)

	type categoryResult struct {
		items []model.Suggestion
		prov  model.Provenance
	}
	results := make([]categoryResult, len(categories))

	name := ""
	if a.deps.Places != nil {
		name = a.deps.Places.Name()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range categories {
		c := provider.PlaceCriteria{
			Destination: req.Destination,
			Category:    cat,
			Dining:      req.Preferences.DiningPreference,
			MaxCost:     req.Budget.MulRatio(shareActivityItem),
			Limit:       maxSuggestions,
		}
		var live func(context.Context) ([]model.Suggestion, error)
		if a.deps.Places != nil {
			live = func(ctx context.Context) ([]model.Suggestion, error) {
				return a.deps.Places.SearchPlaces(ctx, c)
			}
		}
		g.Go(func() error {
			items, prov, err := searchWithFallback(gctx, &a.deps, a.Kind(), name, live,
				func(ctx context.Context) ([]model.Suggestion, error) {
					return a.deps.Fallback.SearchPlaces(ctx, c)
				})
			if err != nil {
				return err
			}
			results[i] = categoryResult{items: items, prov: prov}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &model.RecommendationResult{
		Categories: make(map[model.ActivityCategory][]model.Suggestion, len(categories)),
		Tips:       TravelTips(req.Destination, req.StartDate, req.Budget),
	}
	var fallbackReasons []string
	for i, cat := range categories {
		items := results[i].items
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].Rating > items[b].Rating
		})
		if len(items) > maxSuggestions {
			items = items[:maxSuggestions]
		}
		out.Categories[cat] = items
		if results[i].prov.IsFallback() {
			fallbackReasons = append(fallbackReasons, fmt.Sprintf("%s: %s", cat, results[i].prov.Reason))
		}
	}

	switch {
	case len(fallbackReasons) == 0:
		out.Provenance = model.Live(name)
	default:
		out.Provenance = model.Fallback(strings.Join(fallbackReasons, "; "))
	}
	return &model.StageResults{Recommendations: out}, nil
}

// ============================================================================
// 出行提示
// ============================================================================

// seasonFor 按北半球月份划分季节
func seasonFor(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

var seasonalTips = map[string]string{
	"winter": "Winter visits to %s can mean shorter opening hours; check holiday schedules and local festive markets",
	"spring": "Spring in %s brings mild weather and seasonal festivals; check the local events calendar",
	"summer": "Summer is peak season in %s; book popular attractions early and plan outdoor activities for the morning",
	"autumn": "Autumn in %s is quieter with harvest festivals and shoulder-season prices",
}

// TravelTips 通用、季节与预算提示
func TravelTips(destination string, start model.Date, budget model.Money) []string {
	return []string{
		fmt.Sprintf("Best time to visit %s: spring and fall usually offer good weather and fewer crowds", destination),
		fmt.Sprintf("Getting around %s: public transportation is usually the most affordable option", destination),
		fmt.Sprintf("Local customs in %s: learn a few basic phrases in the local language", destination),
		fmt.Sprintf(seasonalTips[seasonFor(start.Month())], destination),
		fmt.Sprintf("With a budget of $%s, consider mixing free and paid activities", budget),
	}
}
