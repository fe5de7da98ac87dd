package agent

import (
	"context"
	"fmt"
	"sort"

	"trip-planner/internal/shared/model"
)

// BudgetAgent 预算核算，纯计算，不使用随机数
type BudgetAgent struct{}

// Kind Agent 类型
func (a *BudgetAgent) Kind() model.AgentKind {
	return model.AgentBudget
}

// Run 汇总五类费用并在超支时给出节省建议
func (a *BudgetAgent) Run(_ context.Context, in *Input) (*model.StageResults, error) {
	req := in.Request
	prior := in.Prior

	flight := prior.Flights.Cheapest()
	hotel := prior.Hotels.First()
	if flight == nil || hotel == nil || prior.Itinerary == nil {
		return nil, model.NewAggregationFault(string(a.Kind()), "flights, hotels and itinerary are required", nil)
	}

	duration := req.DurationDays()
	breakdown := model.CostBreakdown{
		Flights:   flight.TotalPrice,
		Hotels:    hotel.NightlyPrice.MulInt(req.Nights()),
		Transport: dailyTransport(req.Preferences.TransportationPreference).MulInt(duration * req.Travelers),
	}
	for i := range prior.Itinerary.Days {
		day := &prior.Itinerary.Days[i]
		breakdown.Activities += day.ActivitiesCost()
		breakdown.Food += day.MealsCost()
	}

	total := breakdown.Total()
	remaining := req.Budget - total
	summary := model.BudgetSummary{
		TotalBudget: req.Budget,
		TotalCost:   total,
		Remaining:   remaining,
		Status:      model.BudgetWithin,
		PercentUsed: model.PercentOf(total, req.Budget),
	}

	var recs []model.BudgetRecommendation
	if remaining < 0 {
		summary.Status = model.BudgetOver
		recs = savingsRecommendations(req, breakdown, prior.Itinerary, -remaining)
	} else {
		recs = []model.BudgetRecommendation{{
			Category: "overall",
			Message:  fmt.Sprintf("You have $%s remaining. Consider upgrading your accommodation or adding activities.", remaining),
		}}
	}

	allocation := Allocate(req.Budget)
	return &model.StageResults{
		Budget: &model.BudgetResult{
			Provenance:      plannerProvenance,
			Breakdown:       breakdown,
			Summary:         summary,
			Allocation:      allocation,
			Analysis:        model.AnalyzeCategories(breakdown, allocation),
			Recommendations: recs,
		},
	}, nil
}

// Allocate 按比例分配预算，余数计入交通，保证合计等于预算
func Allocate(budget model.Money) model.CostBreakdown {
	a := model.CostBreakdown{
		Flights:    budget.MulRatio(ShareFlights),
		Hotels:     budget.MulRatio(ShareHotels),
		Activities: budget.MulRatio(ShareActivities),
		Food:       budget.MulRatio(ShareFood),
	}
	a.Transport = budget - a.Flights - a.Hotels - a.Activities - a.Food
	return a
}

// savingsRecommendations 超支时的节省建议，按节省金额降序
//
// 候选顺序为 住宿 → 活动 → 餐饮，金额相同时保持该顺序；节省为 0 的建议不输出。
// 若全部为 0，输出缩短行程的建议，金额为一天的平均花费。
func savingsRecommendations(req *model.TripRequest, b model.CostBreakdown, it *model.ItineraryResult, over model.Money) []model.BudgetRecommendation {
	var recs []model.BudgetRecommendation

	style := req.Preferences.AccommodationStyle
	if lower, ok := lowerAccommodation(style); ok {
		savings := b.Hotels - b.Hotels.MulRatio(downgradeRatio)
		recs = append(recs, model.BudgetRecommendation{
			Category:         "accommodation",
			Message:          fmt.Sprintf("Switch from %s to %s accommodation", style, lower),
			EstimatedSavings: savings,
		})
	}

	var activitySavings model.Money
	dropped := 0
	for _, day := range it.Days {
		if len(day.Activities) <= 1 {
			continue
		}
		var top model.Money
		for _, a := range day.Activities {
			top = max(top, a.EstimatedCost)
		}
		activitySavings += top
		dropped++
	}
	if dropped > 0 {
		recs = append(recs, model.BudgetRecommendation{
			Category:         "activities",
			Message:          fmt.Sprintf("Drop the most expensive activity on %d day(s)", dropped),
			EstimatedSavings: activitySavings,
		})
	}

	dining := req.Preferences.DiningPreference
	if cheaper, ok := cheaperDining(dining); ok {
		cheaperFood := dailyMealCost(cheaper).MulInt(req.Travelers * it.Duration)
		recs = append(recs, model.BudgetRecommendation{
			Category:         "dining",
			Message:          fmt.Sprintf("Choose %s instead of %s dining", cheaper, dining),
			EstimatedSavings: max(b.Food-cheaperFood, 0),
		})
	}

	out := recs[:0]
	for _, r := range recs {
		if r.EstimatedSavings > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EstimatedSavings > out[j].EstimatedSavings
	})

	if len(out) == 0 {
		var perDay model.Money
		if it.Duration > 0 {
			perDay = b.Total() / model.Money(it.Duration)
		}
		out = append(out, model.BudgetRecommendation{
			Category:         "duration",
			Message:          fmt.Sprintf("Shorten the trip; you are $%s over budget", over),
			EstimatedSavings: perDay,
		})
	}
	return out
}
