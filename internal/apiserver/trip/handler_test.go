package trip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/agent"
	"trip-planner/internal/client"
	"trip-planner/internal/orchestrator"
	"trip-planner/internal/shared/eventbus"
	"trip-planner/internal/shared/model"
	"trip-planner/internal/shared/storage"
)

// stubPlanner 返回预设结果
type stubPlanner struct {
	submit    *orchestrator.SubmitResult
	submitErr error
	task      *model.TaskRecord
	statusErr error
	results   *model.StageResults
	runErr    error
	lastKind  model.AgentKind
}

func (s *stubPlanner) Submit(context.Context, model.TripRequestPayload) (*orchestrator.SubmitResult, error) {
	return s.submit, s.submitErr
}

func (s *stubPlanner) Status(context.Context, string) (*model.TaskRecord, error) {
	return s.task, s.statusErr
}

func (s *stubPlanner) RunAgent(_ context.Context, kind model.AgentKind, _ model.TripRequestPayload) (*model.StageResults, error) {
	s.lastKind = kind
	return s.results, s.runErr
}

func newMux(p Planner) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(p, nil).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const romeBody = `{"destination":"Rome","start_date":"2024-06-01","end_date":"2024-06-05","budget":1500}`

func TestCreate_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		planner    *stubPlanner
		body       string
		wantStatus int
		wantField  string
	}{
		{
			name:       "同步完成",
			planner:    &stubPlanner{submit: &orchestrator.SubmitResult{Status: orchestrator.SubmitCompleted, TaskID: "t1"}},
			body:       romeBody,
			wantStatus: http.StatusOK,
		},
		{
			name:       "仍在执行",
			planner:    &stubPlanner{submit: &orchestrator.SubmitResult{Status: orchestrator.SubmitProcessing, TaskID: "t1"}},
			body:       romeBody,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "窗口内失败",
			planner:    &stubPlanner{submit: &orchestrator.SubmitResult{Status: orchestrator.SubmitFailed, TaskID: "t1", Error: "boom"}},
			body:       romeBody,
			wantStatus: http.StatusOK,
		},
		{
			name:       "校验失败",
			planner:    &stubPlanner{submitErr: model.NewValidationError("destination", "is required")},
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantField:  "destination",
		},
		{
			name:       "无效 JSON",
			planner:    &stubPlanner{},
			body:       `{invalid json}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "内部错误",
			planner:    &stubPlanner{submitErr: errors.New("store down")},
			body:       romeBody,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newMux(tt.planner), http.MethodPost, "/api/v1/trips", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantField != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantField, body["field"])
				assert.Contains(t, body["error"], "invalid destination")
			}
		})
	}
}

func TestGet(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("内部状态映射为对外状态", func(t *testing.T) {
		p := &stubPlanner{task: &model.TaskRecord{
			ID:        "t1",
			Status:    model.TaskStatusPartiallyComplete,
			Progress:  2,
			Stage:     "search",
			CreatedAt: now,
			UpdatedAt: now,
		}}
		rec := do(t, newMux(p), http.MethodGet, "/api/v1/trips/t1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "t1", resp.TaskID)
		assert.Equal(t, model.TaskStatusRunning, resp.Status)
		assert.Equal(t, 2, resp.Progress)
		assert.Nil(t, resp.Result)
	})

	t.Run("未知任务", func(t *testing.T) {
		p := &stubPlanner{statusErr: model.ErrTaskNotFound}
		rec := do(t, newMux(p), http.MethodGet, "/api/v1/trips/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"task not found"}`, rec.Body.String())
	})
}

func TestDirectAgentRoutes(t *testing.T) {
	results := &model.StageResults{
		Flights: &model.FlightResult{Provenance: model.Fallback("provider not configured")},
		Budget:  &model.BudgetResult{Provenance: model.Live("planner")},
	}

	tests := []struct {
		name     string
		path     string
		wantKind model.AgentKind
	}{
		{"航班搜索", "/api/v1/flights/search", model.AgentFlight},
		{"酒店搜索", "/api/v1/hotels/search", model.AgentHotel},
		{"活动推荐", "/api/v1/recommendations", model.AgentRecommendation},
		{"逐日行程", "/api/v1/itinerary", model.AgentItinerary},
		{"预算分析", "/api/v1/budget/analyze", model.AgentBudget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubPlanner{results: results}
			rec := do(t, newMux(p), http.MethodPost, tt.path, romeBody)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantKind, p.lastKind)
		})
	}

	t.Run("工作池已满", func(t *testing.T) {
		p := &stubPlanner{runErr: fmt.Errorf("%w: context deadline exceeded", orchestrator.ErrPoolSaturated)}
		rec := do(t, newMux(p), http.MethodPost, "/api/v1/flights/search", romeBody)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

// TestEndToEnd 使用真实编排器，无在线数据源时全部走兜底数据
func TestEndToEnd(t *testing.T) {
	mux := newEndToEndMux(t)

	rec := do(t, mux, http.MethodPost, "/api/v1/trips", romeBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var submit orchestrator.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submit))
	assert.Equal(t, orchestrator.SubmitCompleted, submit.Status)
	require.NotNil(t, submit.Result)
	assert.True(t, submit.Result.Degraded.Degraded)
	assert.Equal(t, model.SourceFallback, submit.Result.Flights.Source)

	rec = do(t, mux, http.MethodGet, "/api/v1/trips/"+submit.TaskID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.TaskStatusCompleted, status.Status)
	require.NotNil(t, status.Result)
	assert.Equal(t, submit.Result.BudgetAnalysis.Summary.TotalCost, status.Result.BudgetAnalysis.Summary.TotalCost)

	rec = do(t, mux, http.MethodPost, "/api/v1/budget/analyze", romeBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var budget model.BudgetResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &budget))
	assert.Equal(t, budget.Breakdown.Total(), budget.Summary.TotalCost)

	rec = do(t, mux, http.MethodPost, "/api/v1/itinerary", romeBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var itinerary model.ItineraryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &itinerary))
	assert.Len(t, itinerary.Days, 4)
	assert.Equal(t, itinerary.Duration, len(itinerary.Days))
}

func newEndToEndMux(t *testing.T) *http.ServeMux {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	cfg.SyncWindow = 5 * time.Second
	cfg.SweepInterval = 0
	o := orchestrator.New(cfg, storage.NewMemoryStore(), agent.NewRegistry(agent.Deps{}), eventbus.NewMemoryBus(), nil, nil)
	o.Start(context.Background())
	t.Cleanup(o.Stop)
	return newMux(o)
}

func TestCreate_FieldErrors(t *testing.T) {
	mux := newEndToEndMux(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"预算非数字字符串", `{"destination":"Rome","start_date":"2024-06-01","end_date":"2024-06-05","budget":"abc"}`, "budget"},
		{"预算为布尔值", `{"destination":"Rome","start_date":"2024-06-01","end_date":"2024-06-05","budget":true}`, "budget"},
		{"人数过多", `{"destination":"Rome","start_date":"2024-06-01","end_date":"2024-06-05","budget":1500,"travelers":20000000000000000}`, "travelers"},
		{"行程过长", `{"destination":"Rome","start_date":"1900-01-01","end_date":"2100-01-01","budget":1500}`, "end_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/v1/trips", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.field, body["field"])
		})
	}

	t.Run("未知偏好使用默认值", func(t *testing.T) {
		body := `{"destination":"Rome","start_date":"2024-06-01","end_date":"2024-06-05","budget":1500,
			"preferences":{"accommodation_style":"boutique","activities":["culture","museums"]}}`
		rec := do(t, mux, http.MethodPost, "/api/v1/trips", body)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

// TestClientRoundTrip 客户端与服务端的响应结构保持一致
func TestClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newEndToEndMux(t))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL)
	res, err := c.Submit(context.Background(), model.TripRequestPayload{
		Destination: "Rome",
		StartDate:   "2024-06-01",
		EndDate:     "2024-06-05",
		Budget:      "1500",
	})
	require.NoError(t, err)
	assert.Equal(t, client.SubmitCompleted, res.Status)
	require.NotNil(t, res.Result)

	st, err := c.Status(context.Background(), res.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, st.Status)
	assert.Equal(t, res.Result.BudgetAnalysis.Summary.TotalCost, st.Result.BudgetAnalysis.Summary.TotalCost)
}
