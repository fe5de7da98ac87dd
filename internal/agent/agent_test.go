package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

// ============================================================================
// 测试数据源
// ============================================================================

type stubFlights struct {
	options []model.FlightOption
	err     error
	delay   time.Duration
}

func (s *stubFlights) Name() string { return "stub" }

func (s *stubFlights) SearchFlights(ctx context.Context, _ provider.FlightCriteria) ([]model.FlightOption, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, provider.Classify("stub", "flights", ctx.Err())
		}
	}
	return s.options, s.err
}

type stubHotels struct {
	options []model.HotelOption
	err     error
}

func (s *stubHotels) Name() string { return "stub" }

func (s *stubHotels) SearchHotels(context.Context, provider.HotelCriteria) ([]model.HotelOption, error) {
	return s.options, s.err
}

type stubPlaces struct {
	mu      sync.Mutex
	calls   []model.ActivityCategory
	failFor model.ActivityCategory
}

func (s *stubPlaces) Name() string { return "stub" }

func (s *stubPlaces) SearchPlaces(_ context.Context, c provider.PlaceCriteria) ([]model.Suggestion, error) {
	s.mu.Lock()
	s.calls = append(s.calls, c.Category)
	s.mu.Unlock()
	if c.Category == s.failFor {
		return nil, provider.NewError("stub", "places", provider.KindUpstream, errors.New("boom"))
	}
	return []model.Suggestion{
		{Name: string(c.Category) + " one", Category: c.Category, EstimatedCost: model.Dollars(10), Rating: 4.1},
		{Name: string(c.Category) + " two", Category: c.Category, EstimatedCost: model.Dollars(20), Rating: 4.9},
	}, nil
}

type recordingObserver struct {
	mu    sync.Mutex
	calls int
}

func (o *recordingObserver) ProviderCall(string, model.AgentKind, time.Duration, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
}

func rome() *model.TripRequest {
	return &model.TripRequest{
		Destination: "Rome",
		Origin:      "NYC",
		StartDate:   model.NewDate(2024, 6, 1),
		EndDate:     model.NewDate(2024, 6, 5),
		Budget:      model.Dollars(1500),
		Travelers:   1,
		Preferences: model.Preferences{
			Activities:               []model.ActivityCategory{},
			AccommodationStyle:       model.AccommodationModerate,
			TransportationPreference: model.TransportMixed,
			DiningPreference:         model.DiningMixed,
			Pace:                     model.PaceModerate,
		},
	}
}

// ============================================================================
// 航班与住宿
// ============================================================================

func TestFlightAgent(t *testing.T) {
	ctx := context.Background()
	live := []model.FlightOption{
		{ID: "b", TotalPrice: model.Dollars(700)},
		{ID: "a", TotalPrice: model.Dollars(500)},
		{ID: "c", TotalPrice: model.Dollars(500)},
		{ID: "d", TotalPrice: model.Dollars(900)},
	}

	t.Run("在线数据按价格排序并按预算截断", func(t *testing.T) {
		obs := &recordingObserver{}
		reg := NewRegistry(Deps{Flights: &stubFlights{options: live}, Observer: obs})
		a, _ := reg.Get(model.AgentFlight)
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)

		r := out.Flights
		assert.Equal(t, model.SourceLive, r.Source)
		// 航班份额 600
		require.Len(t, r.Options, 2)
		assert.Equal(t, "a", r.Options[0].ID)
		assert.Equal(t, "c", r.Options[1].ID, "同价保持原始顺序")
		assert.Equal(t, 1, obs.calls)
		assert.Nil(t, out.Hotels, "只写自己的槽位")
	})

	t.Run("全部超预算保留最便宜", func(t *testing.T) {
		req := rome()
		req.Budget = model.Dollars(100)
		a := &FlightAgent{deps: Deps{Flights: &stubFlights{options: live}}}
		a.deps.normalize()
		out, err := a.Run(ctx, &Input{Request: req})
		require.NoError(t, err)
		require.Len(t, out.Flights.Options, 1)
		assert.Equal(t, "a", out.Flights.Options[0].ID)
	})

	t.Run("数据源失败使用兜底", func(t *testing.T) {
		reg := NewRegistry(Deps{Flights: &stubFlights{err: provider.NewError("stub", "flights", provider.KindAuth, nil)}})
		a, _ := reg.Get(model.AgentFlight)
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)
		assert.Equal(t, model.SourceFallback, out.Flights.Source)
		assert.Equal(t, "auth", out.Flights.Reason)
		assert.NoError(t, out.Flights.Validate())
	})

	t.Run("超时使用兜底", func(t *testing.T) {
		reg := NewRegistry(Deps{
			Flights:         &stubFlights{options: live, delay: time.Second},
			ProviderTimeout: 20 * time.Millisecond,
		})
		a, _ := reg.Get(model.AgentFlight)
		start := time.Now()
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, model.SourceFallback, out.Flights.Source)
		assert.Equal(t, "timeout", out.Flights.Reason)
	})

	t.Run("未配置数据源", func(t *testing.T) {
		a, _ := NewRegistry(Deps{}).Get(model.AgentFlight)
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)
		assert.Equal(t, "provider not configured", out.Flights.Reason)
	})

	t.Run("空结果使用兜底", func(t *testing.T) {
		a, _ := NewRegistry(Deps{Flights: &stubFlights{}}).Get(model.AgentFlight)
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)
		assert.Equal(t, model.SourceFallback, out.Flights.Source)
	})

	t.Run("兜底失败是聚合故障", func(t *testing.T) {
		req := rome()
		req.Destination = " "
		a, _ := NewRegistry(Deps{}).Get(model.AgentFlight)
		_, err := a.Run(ctx, &Input{Request: req})
		assert.True(t, model.IsAggregationFault(err))
	})
}

func TestRankHotels(t *testing.T) {
	hotels := func() []model.HotelOption {
		return []model.HotelOption{
			{ID: "a", Rating: 4.0, PriceLevel: 4, EstimatedTotal: model.Dollars(1600)},
			{ID: "b", Rating: 5.0, PriceLevel: 2, EstimatedTotal: model.Dollars(400)},
			{ID: "c", Rating: 4.5, PriceLevel: 3, EstimatedTotal: model.Dollars(800)},
			{ID: "d", Rating: 4.0, PriceLevel: 4, EstimatedTotal: model.Dollars(1600)},
		}
	}
	ids := func(hs []model.HotelOption) []string {
		var out []string
		for _, h := range hs {
			out = append(out, h.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		style model.AccommodationStyle
		want  []string
	}{
		// 评分: a=120, b=120, c=120, d=120 -> 全部同分保持原序
		{"豪华同分保持原序", model.AccommodationLuxury, []string{"a", "b", "c", "d"}},
		{"舒适按价格", model.AccommodationModerate, []string{"b", "c", "a", "d"}},
		{"经济按价格", model.AccommodationBudget, []string{"b", "c", "a", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := hotels()
			RankHotels(hs, tt.style)
			assert.Equal(t, tt.want, ids(hs))
		})
	}

	hs := []model.HotelOption{
		{ID: "x", Rating: 3.5, PriceLevel: 2},
		{ID: "y", Rating: 4.8, PriceLevel: 4},
	}
	RankHotels(hs, model.AccommodationLuxury)
	assert.Equal(t, []string{"y", "x"}, ids(hs))
}

func TestHotelAgent(t *testing.T) {
	live := []model.HotelOption{
		{ID: "pricey", Rating: 4.9, PriceLevel: 4, NightlyPrice: model.Dollars(400), EstimatedTotal: model.Dollars(1600)},
		{ID: "cheap", Rating: 3.9, PriceLevel: 1, NightlyPrice: model.Dollars(50), EstimatedTotal: model.Dollars(200)},
	}
	a, _ := NewRegistry(Deps{Hotels: &stubHotels{options: live}}).Get(model.AgentHotel)
	out, err := a.Run(context.Background(), &Input{Request: rome()})
	require.NoError(t, err)

	r := out.Hotels
	assert.Equal(t, model.SourceLive, r.Source)
	assert.Equal(t, 4, r.Nights)
	// 住宿份额 450
	require.Len(t, r.Options, 1)
	assert.Equal(t, "cheap", r.Options[0].ID)
}

// ============================================================================
// 推荐
// ============================================================================

func TestRecommendationAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("默认类别组合", func(t *testing.T) {
		places := &stubPlaces{}
		a, _ := NewRegistry(Deps{Places: places}).Get(model.AgentRecommendation)
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)

		r := out.Recommendations
		assert.Equal(t, model.SourceLive, r.Source)
		assert.Len(t, r.Categories, 4)
		assert.ElementsMatch(t, DefaultActivityMix, places.calls)
		assert.Equal(t, "culture two", r.Categories[model.CategoryCulture][0].Name, "按评分降序")
		assert.Len(t, r.Tips, 5)
	})

	t.Run("按偏好过滤", func(t *testing.T) {
		req := rome()
		req.Preferences.Activities = []model.ActivityCategory{model.CategoryAdventure}
		a, _ := NewRegistry(Deps{Places: &stubPlaces{}}).Get(model.AgentRecommendation)
		out, err := a.Run(ctx, &Input{Request: req})
		require.NoError(t, err)
		assert.Equal(t, []model.ActivityCategory{model.CategoryAdventure}, out.Recommendations.OrderedCategories())
	})

	t.Run("单个类别失败标记兜底", func(t *testing.T) {
		a, _ := NewRegistry(Deps{Places: &stubPlaces{failFor: model.CategoryFood}}).Get(model.AgentRecommendation)
		out, err := a.Run(ctx, &Input{Request: rome()})
		require.NoError(t, err)

		r := out.Recommendations
		assert.Equal(t, model.SourceFallback, r.Source)
		assert.Equal(t, "food: upstream", r.Reason)
		assert.NotEmpty(t, r.Categories[model.CategoryFood])
		assert.LessOrEqual(t, len(r.Categories[model.CategoryFood]), 5)
	})
}

func TestTravelTips(t *testing.T) {
	summer := TravelTips("Rome", model.NewDate(2024, 7, 1), model.Dollars(1500))
	winter := TravelTips("Rome", model.NewDate(2024, 1, 1), model.Dollars(1500))
	assert.Contains(t, summer[3], "Summer")
	assert.Contains(t, winter[3], "Winter")
	assert.Equal(t, "With a budget of $1500.00, consider mixing free and paid activities", summer[4])
}

// ============================================================================
// 依赖链
// ============================================================================

func TestDependencies(t *testing.T) {
	assert.Empty(t, Dependencies(model.AgentFlight))
	assert.Equal(t, Stages[0], Dependencies(model.AgentItinerary))
	assert.Len(t, Dependencies(model.AgentBudget), 4)
}

func TestRunChain(t *testing.T) {
	reg := NewRegistry(Deps{})
	results, err := reg.RunChain(context.Background(), rome(), model.AgentBudget)
	require.NoError(t, err)
	for _, stage := range Stages {
		for _, k := range stage {
			assert.True(t, results.Has(k), k)
		}
	}
	assert.NoError(t, results.Budget.Validate())
}
