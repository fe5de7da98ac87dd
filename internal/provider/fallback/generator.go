// Package fallback 确定性兜底数据生成器
//
// 数据源失败或超时时使用。相同的查询条件总是生成相同的结果：
// 随机数种子由条件的 FNV-64a 哈希派生，不依赖时间或全局状态。
package fallback

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"strings"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

// Name 数据源名称
const Name = "generator"

const (
	flightCount = 5
	hotelCount  = 8
)

// ErrNoDestination 目的地为空，无法生成
var ErrNoDestination = errors.New("fallback: destination is empty")

var airlines = []string{"AA", "UA", "DL", "BA", "LH", "AF"}

var hotelTemplates = []string{
	"Grand %s Hotel",
	"%s Plaza Hotel",
	"Comfort Inn %s",
	"%s Boutique Hotel",
	"Travelodge %s",
	"%s Resort & Spa",
	"Best Western %s",
	"%s City Hotel",
}

var amenityPool = []string{"WiFi", "Pool", "Gym", "Restaurant", "Spa", "Parking"}

// Generator 兜底生成器，实现三种查询能力
type Generator struct{}

// New 创建生成器
func New() *Generator {
	return &Generator{}
}

// Name 数据源名称
func (g *Generator) Name() string {
	return Name
}

func newRand(parts ...any) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// between 返回 [min, max] 内的整数
func between(r *rand.Rand, min, max int) int {
	return min + r.IntN(max-min+1)
}

// moneyBetween 返回区间内的金额（整美元）
func moneyBetween(r *rand.Rand, cr provider.CostRange) model.Money {
	lo, hi := int(cr.Min.Cents()/100), int(cr.Max.Cents()/100)
	if hi <= lo {
		return cr.Min
	}
	return model.Dollars(int64(between(r, lo, hi)))
}

// rating 返回 [lo, lo+span] 内保留一位小数的评分
func rating(r *rand.Rand, lo float64, tenths int) float64 {
	return lo + float64(r.IntN(tenths+1))/10
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}

// ============================================================================
// 航班
// ============================================================================

// SearchFlights 生成 5 个往返方案，按总价升序
func (g *Generator) SearchFlights(_ context.Context, c provider.FlightCriteria) ([]model.FlightOption, error) {
	dest := normalize(c.Destination)
	if dest == "" {
		return nil, ErrNoDestination
	}
	origin := normalize(c.Origin)
	if origin == "" {
		origin = model.DefaultOrigin
	}
	travelers := max(c.Travelers, 1)

	r := newRand("flights", strings.ToLower(origin), strings.ToLower(dest), c.DepartureDate, c.ReturnDate, travelers)
	options := make([]model.FlightOption, 0, flightCount)
	for i := range flightCount {
		outAirline := airlines[r.IntN(len(airlines))]
		retAirline := airlines[r.IntN(len(airlines))]
		outPrice := model.Dollars(int64(between(r, 200, 400)))
		retPrice := model.Dollars(int64(between(r, 200, 400)))

		options = append(options, model.FlightOption{
			ID:      fmt.Sprintf("fallback-flight-%d", i+1),
			Airline: outAirline,
			Outbound: model.FlightLeg{
				From:         origin,
				To:           dest,
				Departure:    c.DepartureDate.String() + "T08:00:00",
				Arrival:      c.DepartureDate.String() + "T10:30:00",
				Duration:     "PT2H30M",
				FlightNumber: fmt.Sprintf("%s%d", outAirline, between(r, 100, 999)),
			},
			Return: model.FlightLeg{
				From:         dest,
				To:           origin,
				Departure:    c.ReturnDate.String() + "T18:00:00",
				Arrival:      c.ReturnDate.String() + "T20:30:00",
				Duration:     "PT2H30M",
				FlightNumber: fmt.Sprintf("%s%d", retAirline, between(r, 100, 999)),
			},
			TotalPrice: (outPrice + retPrice).MulInt(travelers),
			Currency:   "USD",
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].TotalPrice < options[j].TotalPrice
	})
	return options, nil
}

// ============================================================================
// 住宿
// ============================================================================

// priceLevelRange 住宿档次对应的价格等级区间
func priceLevelRange(style model.AccommodationStyle) (int, int) {
	switch style {
	case model.AccommodationBudget:
		return 1, 2
	case model.AccommodationLuxury:
		return 3, 4
	default:
		return 1, 3
	}
}

// SearchHotels 生成 8 家酒店，保持模板顺序
func (g *Generator) SearchHotels(_ context.Context, c provider.HotelCriteria) ([]model.HotelOption, error) {
	dest := normalize(c.Destination)
	if dest == "" {
		return nil, ErrNoDestination
	}
	nights := max(c.Nights(), 1)
	lo, hi := priceLevelRange(c.Style)

	r := newRand("hotels", strings.ToLower(dest), c.CheckIn, c.CheckOut, c.Style)
	options := make([]model.HotelOption, 0, hotelCount)
	for i, tmpl := range hotelTemplates {
		level := between(r, lo, hi)
		// 基准价上浮 0-25%
		nightly := provider.NightlyRate(level).MulRatio(1 + float64(r.IntN(26))/100)

		amenities := make([]string, len(amenityPool))
		copy(amenities, amenityPool)
		r.Shuffle(len(amenities), func(a, b int) { amenities[a], amenities[b] = amenities[b], amenities[a] })
		amenities = amenities[:between(r, 2, 4)]

		options = append(options, model.HotelOption{
			ID:             fmt.Sprintf("fallback-hotel-%d", i+1),
			Name:           fmt.Sprintf(tmpl, dest),
			Address:        fmt.Sprintf("%d Main St, %s", between(r, 100, 999), dest),
			Rating:         rating(r, 3.5, 15),
			PriceLevel:     level,
			NightlyPrice:   nightly,
			EstimatedTotal: nightly.MulInt(nights),
			Amenities:      amenities,
		})
	}
	return options, nil
}

// ============================================================================
// 活动
// ============================================================================

var activityTemplates = map[model.ActivityCategory][]string{
	model.CategoryCulture: {
		"Visit the %s Museum of Art",
		"Explore the %s Historical District",
		"Tour the %s Cathedral",
		"Visit the %s Cultural Center",
		"Explore the %s Archaeological Museum",
		"Attend a performance at the %s Opera House",
		"Visit the %s National Gallery",
		"Explore the %s Palace",
	},
	model.CategoryAdventure: {
		"Go hiking in %s National Park",
		"Try rock climbing near %s",
		"Go kayaking on the %s river",
		"Take a zip-lining tour in %s",
		"Go mountain biking around %s",
		"Try paragliding over %s",
		"Go scuba diving near %s",
		"Take a white-water rafting trip from %s",
	},
	model.CategoryRelaxation: {
		"Stroll through the %s Botanical Gardens",
		"Unwind at a %s spa",
		"Spend an afternoon on a %s beach",
		"Visit the %s Zen Garden",
		"Join a yoga class in %s",
		"Soak in the %s hot springs",
		"Take a sunset cruise from %s",
		"Take a quiet walk in %s Park",
	},
	model.CategoryFood: {
		"Take a food tour of %s",
		"Visit the %s Food Market",
		"Try traditional %s cuisine",
		"Take a cooking class in %s",
		"Go wine tasting in %s",
		"Visit a %s brewery",
		"Try street food in %s",
		"Have dinner at a rooftop restaurant in %s",
	},
	model.CategoryShopping: {
		"Visit the %s Central Market",
		"Explore the %s Shopping District",
		"Browse the %s Craft Market",
		"Visit the %s Mall",
		"Explore the %s Boutique District",
		"Shop for souvenirs in %s",
		"Visit the %s Artisan Market",
		"Explore the %s Fashion District",
	},
	model.CategoryNature: {
		"Visit %s National Park",
		"Explore the %s Wildlife Reserve",
		"Take a nature walk in %s",
		"Go bird watching in %s",
		"Take a scenic drive around %s",
		"Visit the %s Nature Center",
		"Explore the forests outside %s",
		"Watch the sunrise from a %s viewpoint",
	},
}

var activityDescriptions = map[model.ActivityCategory]string{
	model.CategoryCulture:    "Immerse yourself in the cultural heritage of %s",
	model.CategoryAdventure:  "Experience the thrill of adventure in %s",
	model.CategoryRelaxation: "Find peace and quiet in %s",
	model.CategoryFood:       "Experience the culinary delights of %s",
	model.CategoryShopping:   "Discover unique shopping in %s",
	model.CategoryNature:     "Connect with nature in %s",
}

// SearchPlaces 生成指定类别的活动，按评分降序
//
// 超出 MaxCost 的项被过滤；若全部超出，保留最便宜的一项，保证结果非空。
func (g *Generator) SearchPlaces(_ context.Context, c provider.PlaceCriteria) ([]model.Suggestion, error) {
	dest := normalize(c.Destination)
	if dest == "" {
		return nil, ErrNoDestination
	}
	templates, ok := activityTemplates[c.Category]
	if !ok {
		return nil, fmt.Errorf("fallback: unknown category %q", c.Category)
	}

	cost := provider.CategoryCost(c.Category, c.Dining)
	r := newRand("places", strings.ToLower(dest), c.Category, c.Dining)

	all := make([]model.Suggestion, 0, len(templates))
	for _, tmpl := range templates {
		all = append(all, model.Suggestion{
			Name:          fmt.Sprintf(tmpl, dest),
			Description:   fmt.Sprintf(activityDescriptions[c.Category], dest),
			Category:      c.Category,
			EstimatedCost: moneyBetween(r, cost),
			Duration:      fmt.Sprintf("%dh", between(r, 1, 3)),
			Rating:        rating(r, 4.0, 10),
		})
	}

	out := make([]model.Suggestion, 0, len(all))
	for _, s := range all {
		if c.MaxCost <= 0 || s.EstimatedCost <= c.MaxCost {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		cheapest := all[0]
		for _, s := range all[1:] {
			if s.EstimatedCost < cheapest.EstimatedCost {
				cheapest = s
			}
		}
		out = append(out, cheapest)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating > out[j].Rating
	})
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}
