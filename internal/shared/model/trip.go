// Package model 定义核心数据模型
//
// trip.go 包含行程请求相关定义：
//   - TripRequest：已校验、不可变的行程请求
//   - TripRequestPayload：提交接口收到的原始请求
//   - Preferences：出行偏好及其枚举
package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DefaultOrigin 未指定出发地时使用的城市代码
const DefaultOrigin = "NYC"

// 请求上限
const (
	// MaxTravelers 单个请求的出行人数上限
	MaxTravelers = 20
	// MaxTripDays 行程天数上限
	MaxTripDays = 30
	// MaxBudget 预算上限（1000 万美元）
	MaxBudget Money = 10_000_000 * 100
)

// ============================================================================
// 偏好枚举
// ============================================================================

// AccommodationStyle 住宿档次
type AccommodationStyle string

const (
	AccommodationBudget   AccommodationStyle = "budget"
	AccommodationModerate AccommodationStyle = "moderate"
	AccommodationLuxury   AccommodationStyle = "luxury"
)

// Valid 是否为已知取值
func (s AccommodationStyle) Valid() bool {
	switch s {
	case AccommodationBudget, AccommodationModerate, AccommodationLuxury:
		return true
	}
	return false
}

// TransportPreference 当地交通偏好
type TransportPreference string

const (
	TransportPublic  TransportPreference = "public"
	TransportPrivate TransportPreference = "private"
	TransportMixed   TransportPreference = "mixed"
)

// Valid 是否为已知取值
func (p TransportPreference) Valid() bool {
	switch p {
	case TransportPublic, TransportPrivate, TransportMixed:
		return true
	}
	return false
}

// DiningPreference 餐饮偏好
type DiningPreference string

const (
	DiningFine   DiningPreference = "fine_dining"
	DiningCasual DiningPreference = "casual"
	DiningStreet DiningPreference = "street_food"
	DiningMixed  DiningPreference = "mixed"
)

// Valid 是否为已知取值
func (p DiningPreference) Valid() bool {
	switch p {
	case DiningFine, DiningCasual, DiningStreet, DiningMixed:
		return true
	}
	return false
}

// Pace 行程节奏
type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

// Valid 是否为已知取值
func (p Pace) Valid() bool {
	switch p {
	case PaceRelaxed, PaceModerate, PaceFast:
		return true
	}
	return false
}

// ActivityCategory 活动类别
type ActivityCategory string

const (
	CategoryCulture    ActivityCategory = "culture"
	CategoryAdventure  ActivityCategory = "adventure"
	CategoryRelaxation ActivityCategory = "relaxation"
	CategoryFood       ActivityCategory = "food"
	CategoryShopping   ActivityCategory = "shopping"
	CategoryNature     ActivityCategory = "nature"
)

// AllActivityCategories 全部活动类别（固定顺序）
var AllActivityCategories = []ActivityCategory{
	CategoryCulture,
	CategoryAdventure,
	CategoryRelaxation,
	CategoryFood,
	CategoryShopping,
	CategoryNature,
}

// Valid 是否为已知取值
func (c ActivityCategory) Valid() bool {
	return slices.Contains(AllActivityCategories, c)
}

// ============================================================================
// TripRequest
// ============================================================================

// Preferences 出行偏好
type Preferences struct {
	Activities               []ActivityCategory  `json:"activities"`
	AccommodationStyle       AccommodationStyle  `json:"accommodation_style"`
	TransportationPreference TransportPreference `json:"transportation_preference"`
	DiningPreference         DiningPreference    `json:"dining_preference"`
	Pace                     Pace                `json:"pace"`
}

// TripRequest 已通过校验的行程请求
//
// TripRequest 由提交入口构造，之后只读。
type TripRequest struct {
	// Destination 目的地（城市名或 IATA 代码）
	Destination string `json:"destination"`

	// Origin 出发地
	Origin string `json:"origin"`

	StartDate Date `json:"start_date"`
	EndDate   Date `json:"end_date"`

	// Budget 总预算（USD）
	Budget Money `json:"budget"`

	// Travelers 出行人数（≥1）
	Travelers int `json:"travelers"`

	Preferences Preferences `json:"preferences"`

	// Ignored 规范化时丢弃的偏好取值，如 "activities=museums"
	Ignored []string `json:"ignored_preferences,omitempty"`
}

// Nights 住宿晚数
func (r *TripRequest) Nights() int {
	return r.StartDate.DaysUntil(r.EndDate)
}

// DurationDays 行程天数（与晚数相同）
func (r *TripRequest) DurationDays() int {
	return r.Nights()
}

// HasActivity 是否偏好该类别
func (r *TripRequest) HasActivity(c ActivityCategory) bool {
	return slices.Contains(r.Preferences.Activities, c)
}

// ============================================================================
// TripRequestPayload - 原始提交数据
// ============================================================================

// PreferencesPayload 原始偏好
type PreferencesPayload struct {
	Activities               []string `json:"activities,omitempty"`
	AccommodationStyle       string   `json:"accommodation_style,omitempty"`
	TransportationPreference string   `json:"transportation_preference,omitempty"`
	DiningPreference         string   `json:"dining_preference,omitempty"`
	Pace                     string   `json:"pace,omitempty"`
}

// Amount 原始金额
//
// 同时接受 1500 与 "1500"；其他 JSON 值原样保留，由 ParseTripRequest 报告字段错误。
type Amount string

// UnmarshalJSON 解码任意 JSON 值
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Amount(s)
		return nil
	}
	if string(data) == "null" {
		*a = ""
		return nil
	}
	*a = Amount(data)
	return nil
}

// MarshalJSON 合法金额编码为数字，其余编码为字符串
func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	if _, err := ParseMoney(string(a)); err == nil && json.Valid([]byte(a)) {
		return []byte(a), nil
	}
	return json.Marshal(string(a))
}

func (a Amount) String() string {
	return string(a)
}

// TripRequestPayload 提交接口收到的原始请求
type TripRequestPayload struct {
	Destination string             `json:"destination"`
	Origin      string             `json:"origin,omitempty"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	Budget      Amount             `json:"budget"`
	Travelers   *int               `json:"travelers,omitempty"`
	Preferences PreferencesPayload `json:"preferences"`
}

// ParseTripRequest 校验原始请求并构造 TripRequest
//
// 校验失败返回 *ValidationError，按字段顺序报告第一个错误。
// 偏好不参与校验：未知的活动类别被丢弃，未知或未指定的枚举使用默认值
// （moderate 住宿、mixed 交通、mixed 餐饮、moderate 节奏），丢弃的取值记录在 Ignored。
func ParseTripRequest(p TripRequestPayload, defaultOrigin string) (*TripRequest, error) {
	destination := strings.TrimSpace(p.Destination)
	if destination == "" {
		return nil, NewValidationError("destination", "is required")
	}

	if strings.TrimSpace(p.StartDate) == "" {
		return nil, NewValidationError("start_date", "is required")
	}
	start, err := ParseDate(strings.TrimSpace(p.StartDate))
	if err != nil {
		return nil, NewValidationError("start_date", err.Error())
	}
	if strings.TrimSpace(p.EndDate) == "" {
		return nil, NewValidationError("end_date", "is required")
	}
	end, err := ParseDate(strings.TrimSpace(p.EndDate))
	if err != nil {
		return nil, NewValidationError("end_date", err.Error())
	}
	if !start.Before(end.Time) {
		return nil, NewValidationError("end_date", "must be after start_date")
	}
	if start.DaysUntil(end) > MaxTripDays {
		return nil, NewValidationError("end_date", fmt.Sprintf("trip longer than %d days", MaxTripDays))
	}

	if p.Budget == "" {
		return nil, NewValidationError("budget", "is required")
	}
	budget, err := ParseMoney(p.Budget.String())
	if err != nil {
		return nil, NewValidationError("budget", err.Error())
	}
	if budget <= 0 {
		return nil, NewValidationError("budget", "must be greater than 0")
	}
	if budget > MaxBudget {
		return nil, NewValidationError("budget", "must not exceed "+MaxBudget.String())
	}

	travelers := 1
	if p.Travelers != nil {
		if *p.Travelers < 1 {
			return nil, NewValidationError("travelers", "must be at least 1")
		}
		if *p.Travelers > MaxTravelers {
			return nil, NewValidationError("travelers", fmt.Sprintf("must not exceed %d", MaxTravelers))
		}
		travelers = *p.Travelers
	}

	prefs, ignored := parsePreferences(p.Preferences)

	origin := strings.TrimSpace(p.Origin)
	if origin == "" {
		origin = defaultOrigin
	}
	if origin == "" {
		origin = DefaultOrigin
	}

	return &TripRequest{
		Destination: destination,
		Origin:      origin,
		StartDate:   start,
		EndDate:     end,
		Budget:      budget,
		Travelers:   travelers,
		Preferences: prefs,
		Ignored:     ignored,
	}, nil
}

// parsePreferences 规范化偏好，返回被丢弃的取值
func parsePreferences(p PreferencesPayload) (Preferences, []string) {
	prefs := Preferences{
		Activities:               []ActivityCategory{},
		AccommodationStyle:       AccommodationModerate,
		TransportationPreference: TransportMixed,
		DiningPreference:         DiningMixed,
		Pace:                     PaceModerate,
	}
	var ignored []string

	for _, raw := range p.Activities {
		c := ActivityCategory(strings.ToLower(strings.TrimSpace(raw)))
		if c == "" {
			continue
		}
		if !c.Valid() {
			ignored = append(ignored, "activities="+raw)
			continue
		}
		if !slices.Contains(prefs.Activities, c) {
			prefs.Activities = append(prefs.Activities, c)
		}
	}

	if v := AccommodationStyle(normalizeEnum(p.AccommodationStyle)); v.Valid() {
		prefs.AccommodationStyle = v
	} else if v != "" {
		ignored = append(ignored, "accommodation_style="+p.AccommodationStyle)
	}
	if v := TransportPreference(normalizeEnum(p.TransportationPreference)); v.Valid() {
		prefs.TransportationPreference = v
	} else if v != "" {
		ignored = append(ignored, "transportation_preference="+p.TransportationPreference)
	}
	if v := DiningPreference(normalizeEnum(p.DiningPreference)); v.Valid() {
		prefs.DiningPreference = v
	} else if v != "" {
		ignored = append(ignored, "dining_preference="+p.DiningPreference)
	}
	if v := Pace(normalizeEnum(p.Pace)); v.Valid() {
		prefs.Pace = v
	} else if v != "" {
		ignored = append(ignored, "pace="+p.Pace)
	}
	return prefs, ignored
}

func normalizeEnum(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
