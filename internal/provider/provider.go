// Package provider 外部数据源适配层
//
// 每种能力（航班、住宿、地点）一个接口，实现负责把数据源的响应转换为
// model 中的统一结构。任何失败都以 *Error 返回，由调用方切换到兜底生成器。
package provider

import (
	"context"

	"trip-planner/internal/shared/model"
)

// FlightCriteria 航班查询条件
type FlightCriteria struct {
	Origin        string
	Destination   string
	DepartureDate model.Date
	ReturnDate    model.Date
	Travelers     int
	// MaxPrice 航班预算份额，0 表示不限
	MaxPrice model.Money
}

// HotelCriteria 住宿查询条件
type HotelCriteria struct {
	Destination string
	CheckIn     model.Date
	CheckOut    model.Date
	Travelers   int
	Style       model.AccommodationStyle
	// MaxTotal 住宿预算份额，0 表示不限
	MaxTotal model.Money
}

// Nights 入住晚数
func (c HotelCriteria) Nights() int {
	return c.CheckIn.DaysUntil(c.CheckOut)
}

// PlaceCriteria 地点/活动查询条件
type PlaceCriteria struct {
	Destination string
	Category    model.ActivityCategory
	Dining      model.DiningPreference
	// MaxCost 单项活动预算上限，0 表示不限
	MaxCost model.Money
	Limit   int
}

// FlightSearcher 航班搜索能力
type FlightSearcher interface {
	Name() string
	SearchFlights(ctx context.Context, c FlightCriteria) ([]model.FlightOption, error)
}

// HotelSearcher 住宿搜索能力
type HotelSearcher interface {
	Name() string
	SearchHotels(ctx context.Context, c HotelCriteria) ([]model.HotelOption, error)
}

// PlaceSearcher 地点/活动查询能力
type PlaceSearcher interface {
	Name() string
	SearchPlaces(ctx context.Context, c PlaceCriteria) ([]model.Suggestion, error)
}

// nightlyRates 价格等级对应的每晚参考价
var nightlyRates = map[int]model.Money{
	1: model.Dollars(50),
	2: model.Dollars(100),
	3: model.Dollars(200),
	4: model.Dollars(400),
}

// NightlyRate 按价格等级估算每晚房价，未知等级按 100 美元
func NightlyRate(priceLevel int) model.Money {
	if r, ok := nightlyRates[priceLevel]; ok {
		return r
	}
	return model.Dollars(100)
}

// CostRange 活动单人费用区间
type CostRange struct {
	Min model.Money
	Max model.Money
}

var categoryCosts = map[model.ActivityCategory]CostRange{
	model.CategoryCulture:    {model.Dollars(10), model.Dollars(30)},
	model.CategoryAdventure:  {model.Dollars(50), model.Dollars(150)},
	model.CategoryRelaxation: {model.Dollars(20), model.Dollars(100)},
	model.CategoryFood:       {model.Dollars(30), model.Dollars(80)},
	model.CategoryShopping:   {model.Dollars(20), model.Dollars(100)},
	model.CategoryNature:     {model.Dollars(10), model.Dollars(40)},
}

// CategoryCost 按类别与餐饮偏好返回费用区间
//
// 美食类在 fine_dining 下上浮 50%，street_food 下按 70% 计。
func CategoryCost(c model.ActivityCategory, dining model.DiningPreference) CostRange {
	r, ok := categoryCosts[c]
	if !ok {
		r = CostRange{model.Dollars(10), model.Dollars(50)}
	}
	if c == model.CategoryFood {
		switch dining {
		case model.DiningFine:
			r = CostRange{r.Min.MulRatio(1.5), r.Max.MulRatio(1.5)}
		case model.DiningStreet:
			r = CostRange{r.Min.MulRatio(0.7), r.Max.MulRatio(0.7)}
		}
	}
	return r
}
