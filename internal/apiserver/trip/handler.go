// Package trip 行程规划领域 - HTTP 处理
package trip

import (
	"context"
	"net/http"
	"time"

	"trip-planner/internal/orchestrator"
	"trip-planner/internal/shared/model"
	"trip-planner/pkg/logging"
)

// Planner 处理器依赖的编排能力
type Planner interface {
	Submit(ctx context.Context, payload model.TripRequestPayload) (*orchestrator.SubmitResult, error)
	Status(ctx context.Context, id string) (*model.TaskRecord, error)
	RunAgent(ctx context.Context, kind model.AgentKind, payload model.TripRequestPayload) (*model.StageResults, error)
}

// Handler 行程规划 HTTP 处理器
type Handler struct {
	planner Planner
	log     *logging.Logger
}

// NewHandler 创建行程规划处理器
func NewHandler(planner Planner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{planner: planner, log: logger.Named("trip-api")}
}

// RegisterRoutes 注册行程相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/trips", h.Create)
	mux.HandleFunc("GET /api/v1/trips/{id}", h.Get)

	mux.HandleFunc("POST /api/v1/flights/search", h.SearchFlights)
	mux.HandleFunc("POST /api/v1/hotels/search", h.SearchHotels)
	mux.HandleFunc("POST /api/v1/recommendations", h.Recommend)
	mux.HandleFunc("POST /api/v1/itinerary", h.BuildItinerary)
	mux.HandleFunc("POST /api/v1/budget/analyze", h.AnalyzeBudget)
}

// ============================================================================
// 响应类型
// ============================================================================

// StatusResponse 任务状态查询响应
//
// Status 只暴露 pending、running、completed、failed 四种对外状态。
type StatusResponse struct {
	TaskID    string           `json:"task_id"`
	Status    model.TaskStatus `json:"status"`
	Stage     string           `json:"stage,omitempty"`
	Progress  int              `json:"progress"`
	Result    *model.TripPlan  `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewStatusResponse 由任务快照构造状态响应
func NewStatusResponse(task *model.TaskRecord) *StatusResponse {
	return &StatusResponse{
		TaskID:    task.ID,
		Status:    task.Status.Public(),
		Stage:     task.Stage,
		Progress:  task.Progress,
		Result:    task.Result,
		Error:     task.Error,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
}

// ============================================================================
// 任务接口
// ============================================================================

// Create 提交规划请求
// POST /api/v1/trips
//
// 同步窗口内完成返回 200 completed，失败返回 200 failed，仍在执行返回 202 processing。
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	res, err := h.planner.Submit(r.Context(), payload)
	if err != nil {
		if !model.IsValidationError(err) {
			h.log.WithContext(r.Context()).WithError(err).Error("Submit trip failed")
		}
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status == orchestrator.SubmitProcessing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

// Get 查询任务状态
// GET /api/v1/trips/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := h.planner.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStatusResponse(task))
}

// ============================================================================
// 单 Agent 接口（不创建任务）
// ============================================================================

// SearchFlights 航班搜索
// POST /api/v1/flights/search
func (h *Handler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	h.runAgent(w, r, model.AgentFlight, func(s *model.StageResults) any { return s.Flights })
}

// SearchHotels 酒店搜索
// POST /api/v1/hotels/search
func (h *Handler) SearchHotels(w http.ResponseWriter, r *http.Request) {
	h.runAgent(w, r, model.AgentHotel, func(s *model.StageResults) any { return s.Hotels })
}

// Recommend 活动推荐
// POST /api/v1/recommendations
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	h.runAgent(w, r, model.AgentRecommendation, func(s *model.StageResults) any { return s.Recommendations })
}

// BuildItinerary 生成逐日行程，同步执行航班、酒店、活动三个上游
// POST /api/v1/itinerary
func (h *Handler) BuildItinerary(w http.ResponseWriter, r *http.Request) {
	h.runAgent(w, r, model.AgentItinerary, func(s *model.StageResults) any { return s.Itinerary })
}

// AnalyzeBudget 预算分析，同步执行完整依赖链
// POST /api/v1/budget/analyze
func (h *Handler) AnalyzeBudget(w http.ResponseWriter, r *http.Request) {
	h.runAgent(w, r, model.AgentBudget, func(s *model.StageResults) any { return s.Budget })
}

func (h *Handler) runAgent(w http.ResponseWriter, r *http.Request, kind model.AgentKind, pick func(*model.StageResults) any) {
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}
	results, err := h.planner.RunAgent(r.Context(), kind, payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pick(results))
}
