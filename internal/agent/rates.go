package agent

import "trip-planner/internal/shared/model"

// 预算分配比例
const (
	ShareFlights    = 0.40
	ShareHotels     = 0.30
	ShareActivities = 0.15
	ShareFood       = 0.10
	ShareTransport  = 0.05

	// shareActivityItem 单项活动的预算上限
	shareActivityItem = 0.10
)

// 结果数量上限
const (
	maxFlightOptions = 10
	maxHotelOptions  = 10
	maxSuggestions   = 5
)

// DefaultActivityMix 未指定活动偏好时的默认类别
var DefaultActivityMix = []model.ActivityCategory{
	model.CategoryCulture,
	model.CategoryFood,
	model.CategoryNature,
	model.CategoryRelaxation,
}

// paceSchedule 节奏对应的每日安排
type paceSchedule struct {
	perDay    int
	firstHour int
	duration  string
}

var paceSchedules = map[model.Pace]paceSchedule{
	model.PaceRelaxed:  {perDay: 2, firstHour: 10, duration: "2h"},
	model.PaceModerate: {perDay: 3, firstHour: 9, duration: "1.5h"},
	model.PaceFast:     {perDay: 4, firstHour: 8, duration: "1h"},
}

// slotGapHours 相邻活动间隔
const slotGapHours = 2

func scheduleFor(p model.Pace) paceSchedule {
	if s, ok := paceSchedules[p]; ok {
		return s
	}
	return paceSchedules[model.PaceModerate]
}

// mealCosts 每人每餐费用（美元）：早餐、午餐、晚餐
var mealCosts = map[model.DiningPreference][3]int64{
	model.DiningFine:   {30, 55, 95},
	model.DiningCasual: {15, 25, 40},
	model.DiningStreet: {8, 12, 18},
	model.DiningMixed:  {18, 30, 50},
}

var mealTimes = map[model.MealType]string{
	model.MealBreakfast: "08:00",
	model.MealLunch:     "13:00",
	model.MealDinner:    "19:00",
}

var mealSuggestions = map[model.DiningPreference]map[model.MealType]string{
	model.DiningFine: {
		model.MealBreakfast: "Upscale breakfast at the hotel restaurant",
		model.MealLunch:     "Lunch at a well-reviewed bistro",
		model.MealDinner:    "Tasting menu at a fine dining restaurant",
	},
	model.DiningCasual: {
		model.MealBreakfast: "Local café or bakery",
		model.MealLunch:     "Casual lunch at a neighborhood restaurant",
		model.MealDinner:    "Casual dinner restaurant",
	},
	model.DiningStreet: {
		model.MealBreakfast: "Street food breakfast market",
		model.MealLunch:     "Street food stalls",
		model.MealDinner:    "Night market food crawl",
	},
	model.DiningMixed: {
		model.MealBreakfast: "Hotel breakfast or local café",
		model.MealLunch:     "Local lunch spot",
		model.MealDinner:    "Dinner at a popular local restaurant",
	},
}

func mealCost(p model.DiningPreference, i int) model.Money {
	costs, ok := mealCosts[p]
	if !ok {
		costs = mealCosts[model.DiningMixed]
	}
	return model.Dollars(costs[i])
}

// dailyMealCost 每人每日餐饮费用
func dailyMealCost(p model.DiningPreference) model.Money {
	var sum model.Money
	for i := range model.MealTypes {
		sum += mealCost(p, i)
	}
	return sum
}

// cheaperDining 下一档更便宜的餐饮偏好，street_food 没有更便宜的档位
func cheaperDining(p model.DiningPreference) (model.DiningPreference, bool) {
	switch p {
	case model.DiningFine:
		return model.DiningMixed, true
	case model.DiningMixed:
		return model.DiningCasual, true
	case model.DiningCasual:
		return model.DiningStreet, true
	}
	return "", false
}

// transportRates 每人每日当地交通费用
var transportRates = map[model.TransportPreference]model.Money{
	model.TransportPublic:  model.Dollars(12),
	model.TransportMixed:   model.Dollars(20),
	model.TransportPrivate: model.Dollars(45),
}

func dailyTransport(p model.TransportPreference) model.Money {
	if r, ok := transportRates[p]; ok {
		return r
	}
	return transportRates[model.TransportMixed]
}

// lowerAccommodation 下一档住宿
func lowerAccommodation(s model.AccommodationStyle) (model.AccommodationStyle, bool) {
	switch s {
	case model.AccommodationLuxury:
		return model.AccommodationModerate, true
	case model.AccommodationModerate:
		return model.AccommodationBudget, true
	}
	return "", false
}

// downgradeRatio 降一档住宿后的价格比例
const downgradeRatio = 0.5
