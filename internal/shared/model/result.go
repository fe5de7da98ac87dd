package model

import (
	"errors"
	"fmt"
)

// ============================================================================
// 结果来源
// ============================================================================

// Source 结果数据来源
type Source string

const (
	// SourceLive 来自在线数据源
	SourceLive Source = "live"
	// SourceFallback 由确定性生成器产生（数据源失败或超时）
	SourceFallback Source = "fallback"
)

// Provenance 每个结果段都携带的来源信息
type Provenance struct {
	Source   Source `json:"source"`
	Provider string `json:"provider,omitempty"`
	// Reason 使用兜底数据的原因（如 timeout、not configured）
	Reason string `json:"fallback_reason,omitempty"`
}

// IsFallback 是否为兜底数据
func (p Provenance) IsFallback() bool {
	return p.Source == SourceFallback
}

// Live 构造在线来源
func Live(provider string) Provenance {
	return Provenance{Source: SourceLive, Provider: provider}
}

// Fallback 构造兜底来源
func Fallback(reason string) Provenance {
	return Provenance{Source: SourceFallback, Provider: "generator", Reason: reason}
}

// ============================================================================
// FlightResult
// ============================================================================

// FlightLeg 单程航段
type FlightLeg struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Departure    string `json:"departure"` // RFC3339 本地时间，如 2024-06-01T08:00:00
	Arrival      string `json:"arrival"`
	Duration     string `json:"duration"` // ISO 8601，如 PT2H30M
	FlightNumber string `json:"flight_number"`
}

// FlightOption 往返航班方案
type FlightOption struct {
	ID         string    `json:"id"`
	Airline    string    `json:"airline"`
	Outbound   FlightLeg `json:"outbound"`
	Return     FlightLeg `json:"return"`
	TotalPrice Money     `json:"total_price"`
	Currency   string    `json:"currency"`
}

// FlightResult 航班搜索结果，Options 按总价升序
type FlightResult struct {
	Provenance
	Options []FlightOption `json:"options"`
}

// Validate 结构校验
func (r *FlightResult) Validate() error {
	if r == nil {
		return errors.New("flight result missing")
	}
	if len(r.Options) == 0 {
		return errors.New("no flight options")
	}
	for i, o := range r.Options {
		if o.TotalPrice <= 0 {
			return fmt.Errorf("flight option %d has non-positive price", i)
		}
	}
	return nil
}

// Cheapest 排序后的首选方案
func (r *FlightResult) Cheapest() *FlightOption {
	if r == nil || len(r.Options) == 0 {
		return nil
	}
	return &r.Options[0]
}

// ============================================================================
// HotelResult
// ============================================================================

// HotelOption 住宿方案
type HotelOption struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Rating         float64  `json:"rating"`
	PriceLevel     int      `json:"price_level"`
	NightlyPrice   Money    `json:"nightly_price"`
	EstimatedTotal Money    `json:"estimated_total"`
	Amenities      []string `json:"amenities"`
}

// HotelResult 住宿搜索结果
type HotelResult struct {
	Provenance
	Nights  int           `json:"nights"`
	Options []HotelOption `json:"options"`
}

// Validate 结构校验
func (r *HotelResult) Validate() error {
	if r == nil {
		return errors.New("hotel result missing")
	}
	if len(r.Options) == 0 {
		return errors.New("no hotel options")
	}
	for i, o := range r.Options {
		if o.NightlyPrice <= 0 {
			return fmt.Errorf("hotel option %d has non-positive nightly price", i)
		}
	}
	return nil
}

// First 排序后的首选方案
func (r *HotelResult) First() *HotelOption {
	if r == nil || len(r.Options) == 0 {
		return nil
	}
	return &r.Options[0]
}

// ============================================================================
// RecommendationResult
// ============================================================================

// Suggestion 活动推荐
type Suggestion struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Category      ActivityCategory `json:"category"`
	EstimatedCost Money            `json:"estimated_cost"`
	Duration      string           `json:"duration"`
	Rating        float64          `json:"rating"`
}

// RecommendationResult 按类别分组的推荐
type RecommendationResult struct {
	Provenance
	Categories map[ActivityCategory][]Suggestion `json:"categories"`
	Tips       []string                          `json:"tips"`
}

// Validate 结构校验
func (r *RecommendationResult) Validate() error {
	if r == nil {
		return errors.New("recommendation result missing")
	}
	if len(r.Categories) == 0 {
		return errors.New("no recommendation categories")
	}
	return nil
}

// OrderedCategories 按固定顺序返回结果中的类别
func (r *RecommendationResult) OrderedCategories() []ActivityCategory {
	var out []ActivityCategory
	for _, c := range AllActivityCategories {
		if _, ok := r.Categories[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ============================================================================
// ItineraryResult
// ============================================================================

// MealType 餐次
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

// MealTypes 餐次固定顺序
var MealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

// ScheduledActivity 日程中的一项活动
type ScheduledActivity struct {
	Time          string           `json:"time"` // HH:MM
	Description   string           `json:"description"`
	Category      ActivityCategory `json:"category"`
	Duration      string           `json:"duration"`
	EstimatedCost Money            `json:"estimated_cost"`
}

// Meal 一餐建议
type Meal struct {
	Time          string `json:"time"`
	Suggestion    string `json:"suggestion"`
	EstimatedCost Money  `json:"estimated_cost"`
}

// DayPlan 单日计划
type DayPlan struct {
	Day        int                 `json:"day"`
	Date       Date                `json:"date"`
	Activities []ScheduledActivity `json:"activities"`
	Meals      map[MealType]Meal   `json:"meals"`
	// Transport 当日当地交通估算
	Transport Money `json:"transport"`
	// Total 活动 + 餐饮 + 交通
	Total Money `json:"total"`
}

// ActivitiesCost 当日活动合计
func (d *DayPlan) ActivitiesCost() Money {
	var sum Money
	for _, a := range d.Activities {
		sum += a.EstimatedCost
	}
	return sum
}

// MealsCost 当日餐饮合计
func (d *DayPlan) MealsCost() Money {
	var sum Money
	for _, m := range d.Meals {
		sum += m.EstimatedCost
	}
	return sum
}

// ItineraryResult 逐日行程
type ItineraryResult struct {
	Provenance
	Duration int       `json:"duration"`
	Days     []DayPlan `json:"days"`
}

// Validate 结构校验，duration 必须与天数一致
func (r *ItineraryResult) Validate() error {
	if r == nil {
		return errors.New("itinerary result missing")
	}
	if r.Duration <= 0 {
		return errors.New("itinerary duration must be positive")
	}
	if len(r.Days) != r.Duration {
		return fmt.Errorf("itinerary has %d days, duration %d", len(r.Days), r.Duration)
	}
	for _, d := range r.Days {
		if d.Total != d.ActivitiesCost()+d.MealsCost()+d.Transport {
			return fmt.Errorf("day %d total does not match its items", d.Day)
		}
	}
	return nil
}

// ============================================================================
// BudgetResult
// ============================================================================

// BudgetStatus 预算状态
type BudgetStatus string

const (
	BudgetWithin BudgetStatus = "within_budget"
	BudgetOver   BudgetStatus = "over_budget"
)

// CostBreakdown 五个固定费用类别
type CostBreakdown struct {
	Flights    Money `json:"flights"`
	Hotels     Money `json:"hotels"`
	Activities Money `json:"activities"`
	Food       Money `json:"food"`
	Transport  Money `json:"transport"`
}

// Total 五类合计
func (b CostBreakdown) Total() Money {
	return b.Flights + b.Hotels + b.Activities + b.Food + b.Transport
}

// Categories 按固定顺序列出五类金额
func (b CostBreakdown) Categories() []CategoryAmount {
	return []CategoryAmount{
		{"flights", b.Flights},
		{"hotels", b.Hotels},
		{"activities", b.Activities},
		{"food", b.Food},
		{"transport", b.Transport},
	}
}

// CategoryAmount 单个类别的金额
type CategoryAmount struct {
	Category string
	Amount   Money
}

// CategoryStatus 单类别相对建议分配的使用状态
type CategoryStatus string

const (
	CategoryUnder             CategoryStatus = "under_budget"
	CategoryWithin            CategoryStatus = "within_budget"
	CategoryOver              CategoryStatus = "over_budget"
	CategorySignificantlyOver CategoryStatus = "significantly_over_budget"
	CategoryNoBudget          CategoryStatus = "no_budget"
)

// ClassifyCategory 按实际与建议金额判定状态
//
// 低于 80% 为 under，不超过 100% 为 within，不超过 120% 为 over，其余为 significantly over。
func ClassifyCategory(actual, recommended Money) CategoryStatus {
	switch {
	case recommended <= 0:
		return CategoryNoBudget
	case actual*100 < recommended*80:
		return CategoryUnder
	case actual <= recommended:
		return CategoryWithin
	case actual*100 <= recommended*120:
		return CategoryOver
	default:
		return CategorySignificantlyOver
	}
}

// CategoryPerformance 单类别实际花费与建议分配的对比
type CategoryPerformance struct {
	Category    string         `json:"category"`
	Actual      Money          `json:"actual"`
	Recommended Money          `json:"recommended"`
	Difference  Money          `json:"difference"`
	PercentUsed float64        `json:"percent_used"`
	Status      CategoryStatus `json:"status"`
}

// AnalyzeCategories 逐类对比实际花费与建议分配，顺序与 Categories 一致
func AnalyzeCategories(actual, recommended CostBreakdown) []CategoryPerformance {
	acts := actual.Categories()
	recs := recommended.Categories()
	out := make([]CategoryPerformance, len(acts))
	for i := range acts {
		a, r := acts[i].Amount, recs[i].Amount
		out[i] = CategoryPerformance{
			Category:    acts[i].Category,
			Actual:      a,
			Recommended: r,
			Difference:  a - r,
			PercentUsed: PercentOf(a, r),
			Status:      ClassifyCategory(a, r),
		}
	}
	return out
}

// PercentOf part 占 whole 的百分比，保留一位小数；whole 非正时为 0
func PercentOf(part, whole Money) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(int64(float64(part)*1000/float64(whole)+0.5)) / 10
}

// BudgetSummary 预算汇总
type BudgetSummary struct {
	TotalBudget Money        `json:"total_budget"`
	TotalCost   Money        `json:"total_cost"`
	Remaining   Money        `json:"budget_remaining"`
	Status      BudgetStatus `json:"status"`
	PercentUsed float64      `json:"percent_used"`
}

// BudgetRecommendation 节省建议
type BudgetRecommendation struct {
	Category         string `json:"category"`
	Message          string `json:"message"`
	EstimatedSavings Money  `json:"estimated_savings"`
}

// BudgetResult 预算核算结果
type BudgetResult struct {
	Provenance
	Breakdown       CostBreakdown          `json:"breakdown"`
	Summary         BudgetSummary          `json:"summary"`
	Allocation      CostBreakdown          `json:"suggested_allocation"`
	Analysis        []CategoryPerformance  `json:"category_analysis"`
	Recommendations []BudgetRecommendation `json:"recommendations"`
}

// validateAnalysis 分类分析须覆盖五类且与明细、建议分配一致
func (r *BudgetResult) validateAnalysis() error {
	want := AnalyzeCategories(r.Breakdown, r.Allocation)
	if len(r.Analysis) != len(want) {
		return fmt.Errorf("category analysis has %d entries, want %d", len(r.Analysis), len(want))
	}
	for i, c := range r.Analysis {
		w := want[i]
		if c.Category != w.Category || c.Actual != w.Actual || c.Recommended != w.Recommended {
			return fmt.Errorf("category analysis for %s does not match breakdown", w.Category)
		}
		if c.Status != w.Status {
			return fmt.Errorf("category %s status %s, want %s", w.Category, c.Status, w.Status)
		}
	}
	return nil
}

// Validate 结构与算术校验
func (r *BudgetResult) Validate() error {
	if r == nil {
		return errors.New("budget result missing")
	}
	if r.Summary.TotalCost != r.Breakdown.Total() {
		return fmt.Errorf("total cost %s does not equal category sum %s", r.Summary.TotalCost, r.Breakdown.Total())
	}
	if r.Summary.Remaining != r.Summary.TotalBudget-r.Summary.TotalCost {
		return errors.New("budget remaining does not equal budget minus total cost")
	}
	want := BudgetWithin
	if r.Summary.Remaining < 0 {
		want = BudgetOver
	}
	if r.Summary.Status != want {
		return fmt.Errorf("budget status %s inconsistent with remaining %s", r.Summary.Status, r.Summary.Remaining)
	}
	if err := r.validateAnalysis(); err != nil {
		return err
	}
	if r.Summary.Status == BudgetOver && len(r.Recommendations) == 0 {
		return errors.New("over budget without recommendations")
	}
	for i := 1; i < len(r.Recommendations); i++ {
		if r.Recommendations[i].EstimatedSavings > r.Recommendations[i-1].EstimatedSavings {
			return errors.New("recommendations not ordered by savings")
		}
	}
	return nil
}
