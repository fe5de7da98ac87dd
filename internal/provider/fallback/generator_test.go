package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

var (
	_ provider.FlightSearcher = (*Generator)(nil)
	_ provider.HotelSearcher  = (*Generator)(nil)
	_ provider.PlaceSearcher  = (*Generator)(nil)
)

func flightCriteria() provider.FlightCriteria {
	return provider.FlightCriteria{
		Origin:        "NYC",
		Destination:   "Rome",
		DepartureDate: model.NewDate(2024, 6, 1),
		ReturnDate:    model.NewDate(2024, 6, 5),
		Travelers:     2,
	}
}

func TestSearchFlights(t *testing.T) {
	g := New()
	ctx := context.Background()

	a, err := g.SearchFlights(ctx, flightCriteria())
	require.NoError(t, err)
	b, err := g.SearchFlights(ctx, flightCriteria())
	require.NoError(t, err)
	assert.Equal(t, a, b, "相同条件结果一致")

	require.Len(t, a, 5)
	for i, o := range a {
		assert.GreaterOrEqual(t, o.TotalPrice, model.Dollars(800))
		assert.LessOrEqual(t, o.TotalPrice, model.Dollars(1600))
		assert.Equal(t, "2024-06-01T08:00:00", o.Outbound.Departure)
		assert.Equal(t, "2024-06-05T18:00:00", o.Return.Departure)
		assert.Equal(t, "PT2H30M", o.Outbound.Duration)
		assert.Contains(t, airlines, o.Airline)
		if i > 0 {
			assert.LessOrEqual(t, a[i-1].TotalPrice, o.TotalPrice)
		}
	}

	other := flightCriteria()
	other.Destination = "Paris"
	c, err := g.SearchFlights(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = g.SearchFlights(ctx, provider.FlightCriteria{})
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestSearchHotels(t *testing.T) {
	tests := []struct {
		name   string
		style  model.AccommodationStyle
		lo, hi int
	}{
		{"经济型", model.AccommodationBudget, 1, 2},
		{"舒适型", model.AccommodationModerate, 1, 3},
		{"豪华型", model.AccommodationLuxury, 3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hotels, err := New().SearchHotels(context.Background(), provider.HotelCriteria{
				Destination: "Rome",
				CheckIn:     model.NewDate(2024, 6, 1),
				CheckOut:    model.NewDate(2024, 6, 5),
				Style:       tt.style,
			})
			require.NoError(t, err)
			require.Len(t, hotels, 8)
			assert.Equal(t, "Grand Rome Hotel", hotels[0].Name)
			for _, h := range hotels {
				assert.GreaterOrEqual(t, h.PriceLevel, tt.lo)
				assert.LessOrEqual(t, h.PriceLevel, tt.hi)
				base := provider.NightlyRate(h.PriceLevel)
				assert.GreaterOrEqual(t, h.NightlyPrice, base)
				assert.LessOrEqual(t, h.NightlyPrice, base.MulRatio(1.25))
				assert.Equal(t, h.NightlyPrice.MulInt(4), h.EstimatedTotal)
				assert.GreaterOrEqual(t, h.Rating, 3.5)
				assert.LessOrEqual(t, h.Rating, 5.0)
				assert.GreaterOrEqual(t, len(h.Amenities), 2)
				assert.LessOrEqual(t, len(h.Amenities), 4)
			}
		})
	}
}

func TestSearchPlaces(t *testing.T) {
	g := New()
	ctx := context.Background()

	for _, c := range model.AllActivityCategories {
		got, err := g.SearchPlaces(ctx, provider.PlaceCriteria{Destination: "Rome", Category: c, Limit: 5})
		require.NoError(t, err, c)
		require.Len(t, got, 5, c)
		cr := provider.CategoryCost(c, "")
		for i, s := range got {
			assert.Equal(t, c, s.Category)
			assert.GreaterOrEqual(t, s.EstimatedCost, cr.Min)
			assert.LessOrEqual(t, s.EstimatedCost, cr.Max)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Rating, s.Rating)
			}
		}
	}

	t.Run("预算过低保留最便宜一项", func(t *testing.T) {
		got, err := g.SearchPlaces(ctx, provider.PlaceCriteria{
			Destination: "Rome",
			Category:    model.CategoryAdventure,
			MaxCost:     model.Dollars(1),
			Limit:       5,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("高级餐饮上浮", func(t *testing.T) {
		got, err := g.SearchPlaces(ctx, provider.PlaceCriteria{
			Destination: "Rome",
			Category:    model.CategoryFood,
			Dining:      model.DiningFine,
		})
		require.NoError(t, err)
		for _, s := range got {
			assert.GreaterOrEqual(t, s.EstimatedCost, model.Dollars(45))
		}
	})

	_, err := g.SearchPlaces(ctx, provider.PlaceCriteria{Destination: "Rome", Category: "karaoke"})
	assert.Error(t, err)
}
