package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, textSearchPath, r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchHotels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "hotels in Paris", r.URL.Query().Get("query"))
		assert.Equal(t, "lodging", r.URL.Query().Get("type"))
		w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"a","name":"Hotel A","formatted_address":"1 Rue","rating":4.5,"price_level":3,"types":["lodging","spa"]},
			{"place_id":"b","name":"Hotel B","rating":3.9}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	hotels, err := c.SearchHotels(context.Background(), provider.HotelCriteria{
		Destination: "Paris",
		CheckIn:     model.NewDate(2024, 6, 1),
		CheckOut:    model.NewDate(2024, 6, 4),
	})
	require.NoError(t, err)
	require.Len(t, hotels, 2)

	assert.Equal(t, model.Dollars(200), hotels[0].NightlyPrice)
	assert.Equal(t, model.Dollars(600), hotels[0].EstimatedTotal)
	assert.Equal(t, []string{"Spa"}, hotels[0].Amenities)
	assert.Equal(t, 2, hotels[1].PriceLevel, "缺省价格等级")
	assert.Equal(t, model.Dollars(100), hotels[1].NightlyPrice)
}

func TestSearchPlaces(t *testing.T) {
	srv := newServer(t, `{"status":"OK","results":[
		{"name":"Louvre","formatted_address":"Paris","rating":4.8,"price_level":0},
		{"name":"Orsay","rating":4.7,"price_level":4},
		{"name":"Rodin","rating":4.6}
	]}`)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})

	got, err := c.SearchPlaces(context.Background(), provider.PlaceCriteria{
		Destination: "Paris",
		Category:    model.CategoryCulture,
		MaxCost:     model.Dollars(25),
		Limit:       5,
	})
	require.NoError(t, err)
	require.Len(t, got, 2, "超出单项上限的被过滤")
	assert.Equal(t, "Louvre", got[0].Name)
	assert.Equal(t, model.Dollars(10), got[0].EstimatedCost)
	assert.Equal(t, model.Dollars(20), got[1].EstimatedCost)
	assert.Equal(t, model.CategoryCulture, got[1].Category)
}

func TestTextSearchStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want provider.ErrorKind
	}{
		{"密钥被拒", `{"status":"REQUEST_DENIED","error_message":"bad key"}`, provider.KindAuth},
		{"无结果", `{"status":"ZERO_RESULTS","results":[]}`, provider.KindUpstream},
		{"配额耗尽", `{"status":"OVER_QUERY_LIMIT"}`, provider.KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.body)
			c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
			_, err := c.SearchHotels(context.Background(), provider.HotelCriteria{Destination: "Rome"})
			require.Error(t, err)
			assert.Equal(t, tt.want, provider.KindOf(err))
			assert.False(t, strings.Contains(err.Error(), "k&"), "不泄露密钥")
		})
	}
}
