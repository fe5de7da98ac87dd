package agent

import (
	"context"
	"fmt"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

// ItineraryAgent 逐日行程编排，纯计算，相同输入得到相同结果
type ItineraryAgent struct{}

// Kind Agent 类型
func (a *ItineraryAgent) Kind() model.AgentKind {
	return model.AgentItinerary
}

// plannerProvenance 本地计算结果的来源
var plannerProvenance = model.Live("planner")

// Run 按节奏安排每日活动，活动按类别轮转取自推荐结果
func (a *ItineraryAgent) Run(_ context.Context, in *Input) (*model.StageResults, error) {
	req := in.Request
	rec := in.Prior.Recommendations
	if rec == nil {
		return nil, model.NewAggregationFault(string(a.Kind()), "recommendations not available", nil)
	}

	categories := rec.OrderedCategories()
	if len(categories) == 0 {
		return nil, model.NewAggregationFault(string(a.Kind()), "recommendations have no categories", nil)
	}

	duration := req.DurationDays()
	sched := scheduleFor(req.Preferences.Pace)
	dining := req.Preferences.DiningPreference
	transport := dailyTransport(req.Preferences.TransportationPreference).MulInt(req.Travelers)

	// 每个类别下一个待用的推荐序号
	next := make(map[model.ActivityCategory]int, len(categories))

	days := make([]model.DayPlan, 0, duration)
	for d := range duration {
		day := model.DayPlan{
			Day:        d + 1,
			Date:       req.StartDate.AddDays(d),
			Activities: make([]model.ScheduledActivity, 0, sched.perDay),
			Meals:      make(map[model.MealType]model.Meal, len(model.MealTypes)),
			Transport:  transport,
		}

		for s := range sched.perDay {
			cat := categories[(d+s)%len(categories)]
			act := model.ScheduledActivity{
				Time:     fmt.Sprintf("%02d:00", sched.firstHour+s*slotGapHours),
				Category: cat,
				Duration: sched.duration,
			}
			items := rec.Categories[cat]
			if i := next[cat]; i < len(items) {
				act.Description = items[i].Name
				act.EstimatedCost = items[i].EstimatedCost.MulInt(req.Travelers)
				next[cat] = i + 1
			} else {
				act.Description = fmt.Sprintf("Explore more %s spots in %s", cat, req.Destination)
				act.EstimatedCost = provider.CategoryCost(cat, dining).Min.MulInt(req.Travelers)
			}
			day.Activities = append(day.Activities, act)
		}

		for i, mt := range model.MealTypes {
			day.Meals[mt] = model.Meal{
				Time:          mealTimes[mt],
				Suggestion:    mealSuggestion(dining, mt),
				EstimatedCost: mealCost(dining, i).MulInt(req.Travelers),
			}
		}

		day.Total = day.ActivitiesCost() + day.MealsCost() + day.Transport
		days = append(days, day)
	}

	return &model.StageResults{
		Itinerary: &model.ItineraryResult{
			Provenance: plannerProvenance,
			Duration:   duration,
			Days:       days,
		},
	}, nil
}

func mealSuggestion(p model.DiningPreference, mt model.MealType) string {
	if s, ok := mealSuggestions[p][mt]; ok {
		return s
	}
	return "Local dining option"
}
