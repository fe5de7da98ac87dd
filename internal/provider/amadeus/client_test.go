package amadeus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/agent"
	"trip-planner/internal/provider"
	"trip-planner/internal/shared/model"
)

const offersJSON = `{
  "data": [
    {
      "id": "1",
      "validatingAirlineCodes": ["AF"],
      "price": {"currency": "USD", "total": "812.40", "grandTotal": "812.40"},
      "itineraries": [
        {"duration": "PT8H", "segments": [{"departure": {"iataCode": "JFK", "at": "2024-06-01T18:00:00"}, "arrival": {"iataCode": "CDG", "at": "2024-06-02T08:00:00"}, "carrierCode": "AF", "number": "7"}]},
        {"duration": "PT9H", "segments": [{"departure": {"iataCode": "CDG", "at": "2024-06-05T10:00:00"}, "arrival": {"iataCode": "JFK", "at": "2024-06-05T13:00:00"}, "carrierCode": "AF", "number": "8"}]}
      ]
    },
    {
      "id": "2",
      "price": {"currency": "USD", "total": "640.00"},
      "itineraries": [
        {"duration": "PT10H", "segments": [
          {"departure": {"iataCode": "JFK", "at": "2024-06-01T07:00:00"}, "arrival": {"iataCode": "LHR", "at": "2024-06-01T19:00:00"}, "carrierCode": "BA", "number": "112"},
          {"departure": {"iataCode": "LHR", "at": "2024-06-01T21:00:00"}, "arrival": {"iataCode": "CDG", "at": "2024-06-01T23:00:00"}, "carrierCode": "BA", "number": "304"}
        ]},
        {"duration": "PT9H", "segments": [{"departure": {"iataCode": "CDG", "at": "2024-06-05T10:00:00"}, "arrival": {"iataCode": "JFK", "at": "2024-06-05T13:00:00"}, "carrierCode": "BA", "number": "305"}]}
      ]
    },
    {"id": "3", "price": {"total": "100.00"}, "itineraries": []}
  ]
}`

func newTestServer(t *testing.T, tokenCalls *atomic.Int32, offers http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":1799}`))
	})
	mux.HandleFunc("/v2/shopping/flight-offers", offers)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func criteria() provider.FlightCriteria {
	return provider.FlightCriteria{
		Origin:        "JFK",
		Destination:   "cdg",
		DepartureDate: model.NewDate(2024, 6, 1),
		ReturnDate:    model.NewDate(2024, 6, 5),
		Travelers:     2,
	}
}

func TestSearchFlights(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := newTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "JFK", q.Get("originLocationCode"))
		assert.Equal(t, "CDG", q.Get("destinationLocationCode"))
		assert.Equal(t, "2024-06-01", q.Get("departureDate"))
		assert.Equal(t, "2024-06-05", q.Get("returnDate"))
		assert.Equal(t, "2", q.Get("adults"))
		w.Write([]byte(offersJSON))
	})

	c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", HTTPClient: srv.Client()})
	opts, err := c.SearchFlights(context.Background(), criteria())
	require.NoError(t, err)
	require.Len(t, opts, 2)

	assert.Equal(t, "amadeus-2", opts[0].ID)
	assert.Equal(t, model.FromFloat(640), opts[0].TotalPrice)
	assert.Equal(t, "BA", opts[0].Airline)
	assert.Equal(t, "CDG", opts[0].Outbound.To)
	assert.Equal(t, "BA112", opts[0].Outbound.FlightNumber)
	assert.Equal(t, "AF", opts[1].Airline)

	_, err = c.SearchFlights(context.Background(), criteria())
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load(), "token reused")
}

func TestSearchFlights_Errors(t *testing.T) {
	t.Run("城市名无法解析", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://127.0.0.1:0", ClientID: "id", ClientSecret: "secret"})
		cr := criteria()
		cr.Destination = "Paris"
		_, err := c.SearchFlights(context.Background(), cr)
		assert.Equal(t, provider.KindUnresolvable, provider.KindOf(err))
	})

	t.Run("上游错误", func(t *testing.T) {
		var tokenCalls atomic.Int32
		srv := newTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", HTTPClient: srv.Client()})
		_, err := c.SearchFlights(context.Background(), criteria())
		assert.Equal(t, provider.KindUpstream, provider.KindOf(err))
	})

	t.Run("无可用报价", func(t *testing.T) {
		var tokenCalls atomic.Int32
		srv := newTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": []}`))
		})
		c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", HTTPClient: srv.Client()})
		_, err := c.SearchFlights(context.Background(), criteria())
		assert.Error(t, err)
	})

	t.Run("超时", func(t *testing.T) {
		var tokenCalls atomic.Int32
		srv := newTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(offersJSON))
		})
		c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", HTTPClient: srv.Client()})
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := c.SearchFlights(ctx, criteria())
		assert.Error(t, err)
	})
}

func TestSearchFlights_TokenEndpoint(t *testing.T) {
	t.Run("令牌获取受调用超时约束", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
			w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":1799}`))
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", HTTPClient: srv.Client()})
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := c.SearchFlights(ctx, criteria())
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, provider.KindTimeout, provider.KindOf(err))
	})

	t.Run("Agent 在超时内使用兜底数据", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret", HTTPClient: srv.Client()})
		reg := agent.NewRegistry(agent.Deps{Flights: c, ProviderTimeout: 200 * time.Millisecond})
		a, ok := reg.Get(model.AgentFlight)
		require.True(t, ok)

		travelers := 1
		req, err := model.ParseTripRequest(model.TripRequestPayload{
			Destination: "CDG",
			Origin:      "JFK",
			StartDate:   "2024-06-01",
			EndDate:     "2024-06-05",
			Budget:      "2000",
			Travelers:   &travelers,
		}, "JFK")
		require.NoError(t, err)

		start := time.Now()
		out, err := a.Run(context.Background(), &agent.Input{Request: req})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, model.SourceFallback, out.Flights.Source)
		assert.Equal(t, string(provider.KindTimeout), out.Flights.Reason)
	})

	t.Run("凭据无效", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client"}`))
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)

		c := NewClient(Config{BaseURL: srv.URL, ClientID: "id", ClientSecret: "bad", HTTPClient: srv.Client()})
		_, err := c.SearchFlights(context.Background(), criteria())
		assert.Equal(t, provider.KindAuth, provider.KindOf(err))
	})
}
