// Package server 提供 HTTP API 入口
//
// 本包负责路由装配与横切关注点：
//   - 健康检查与 Prometheus 指标
//   - 请求日志、CORS
//   - WebSocket 任务事件网关
//
// 行程领域接口在 trip 包中实现。
//
// 文件组织：
//   - common.go: Handler 定义与通用工具函数
//   - handler.go: 路由与中间件
//   - metrics.go: Prometheus 指标
//   - websocket.go: WebSocket 事件网关
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"trip-planner/internal/apiserver/trip"
	"trip-planner/internal/orchestrator"
	"trip-planner/internal/shared/eventbus"
	"trip-planner/internal/shared/model"
	"trip-planner/pkg/logging"
)

// ServiceName 健康检查返回的服务名
const ServiceName = "trip-planner"

// Service API 依赖的编排能力
type Service interface {
	trip.Planner
	Subscribe(ctx context.Context, id string) (<-chan *eventbus.TaskEvent, error)
}

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到 trip 包的处理函数
//   - 为提交接口记录同步/异步返回指标
//   - 持有 WebSocket 事件网关
type Handler struct {
	service      Service
	eventGateway *EventGateway
	metrics      *Metrics
	log          *logging.Logger
}

// NewHandler 创建 Handler 实例
//
// metrics 为 nil 时使用独立注册表，logger 为 nil 时丢弃日志。
func NewHandler(service Service, metrics *Metrics, logger *logging.Logger) *Handler {
	if metrics == nil {
		metrics = NewMetrics("trip", nil)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		service:      service,
		eventGateway: NewEventGateway(service, metrics, logger),
		metrics:      metrics,
		log:          logger.Named("api"),
	}
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
}

// instrumentedPlanner 记录提交接口的返回模式
type instrumentedPlanner struct {
	Service
	metrics *Metrics
}

func (p instrumentedPlanner) Submit(ctx context.Context, payload model.TripRequestPayload) (*orchestrator.SubmitResult, error) {
	res, err := p.Service.Submit(ctx, payload)
	if err != nil {
		if model.IsValidationError(err) {
			p.metrics.RecordSyncResponse("rejected")
		}
		return nil, err
	}
	p.metrics.RecordSyncResponse(string(res.Status))
	return res, nil
}
