package model

import (
	"fmt"
	"time"
)

// DegradedSummary 汇总使用了兜底数据的结果段
type DegradedSummary struct {
	Degraded bool     `json:"degraded"`
	Sections []string `json:"sections"`
}

// TripPlan 最终行程方案
//
// TripPlan 在任务聚合阶段构造一次，之后不再修改。
type TripPlan struct {
	TaskID      string `json:"task_id"`
	Destination string `json:"destination"`
	Origin      string `json:"origin"`
	StartDate   Date   `json:"start_date"`
	EndDate     Date   `json:"end_date"`
	Travelers   int    `json:"travelers"`

	Flights         *FlightResult         `json:"flights"`
	Hotels          *HotelResult          `json:"hotels"`
	Recommendations *RecommendationResult `json:"recommendations"`
	Itinerary       *ItineraryResult      `json:"itinerary"`
	BudgetAnalysis  *BudgetResult         `json:"budget_analysis"`

	Degraded  DegradedSummary `json:"degraded"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewTripPlan 由各阶段结果组装方案并校验
//
// 任何一段缺失或不满足结构约束都返回 *AggregationFault。
func NewTripPlan(taskID string, req *TripRequest, results StageResults, now time.Time) (*TripPlan, error) {
	plan := &TripPlan{
		TaskID:          taskID,
		Destination:     req.Destination,
		Origin:          req.Origin,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Travelers:       req.Travelers,
		Flights:         results.Flights,
		Hotels:          results.Hotels,
		Recommendations: results.Recommendations,
		Itinerary:       results.Itinerary,
		BudgetAnalysis:  results.Budget,
		Degraded:        DegradedSummary{Sections: []string{}},
		CreatedAt:       now.UTC(),
	}

	for _, kind := range []AgentKind{AgentFlight, AgentHotel, AgentRecommendation, AgentItinerary, AgentBudget} {
		if p, ok := results.ProvenanceOf(kind); ok && p.IsFallback() {
			plan.Degraded.Degraded = true
			plan.Degraded.Sections = append(plan.Degraded.Sections, kind.Section())
		}
	}

	if err := plan.Validate(req); err != nil {
		return nil, NewAggregationFault("aggregate", "trip plan failed validation", err)
	}
	return plan, nil
}

// Validate 校验方案完整性与预算算术
func (p *TripPlan) Validate(req *TripRequest) error {
	if err := p.Flights.Validate(); err != nil {
		return err
	}
	if err := p.Hotels.Validate(); err != nil {
		return err
	}
	if err := p.Recommendations.Validate(); err != nil {
		return err
	}
	if err := p.Itinerary.Validate(); err != nil {
		return err
	}
	if p.Itinerary.Duration != req.DurationDays() {
		return fmt.Errorf("itinerary duration %d, trip has %d days", p.Itinerary.Duration, req.DurationDays())
	}
	if err := p.BudgetAnalysis.Validate(); err != nil {
		return err
	}
	if p.BudgetAnalysis.Summary.TotalBudget != req.Budget {
		return fmt.Errorf("budget analysis uses %s, request budget %s", p.BudgetAnalysis.Summary.TotalBudget, req.Budget)
	}
	return nil
}
