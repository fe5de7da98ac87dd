package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"trip-planner/internal/apiserver/trip"
	"trip-planner/pkg/logging"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//   - GET /metrics - Prometheus 指标
//
// 行程规划 (Trip):
//   - POST /api/v1/trips          - 提交规划请求
//   - GET  /api/v1/trips/{id}     - 查询任务状态
//
// 单 Agent 调用:
//   - POST /api/v1/flights/search - 航班搜索
//   - POST /api/v1/hotels/search  - 酒店搜索
//   - POST /api/v1/recommendations - 活动推荐
//   - POST /api/v1/itinerary     - 逐日行程
//   - POST /api/v1/budget/analyze - 预算分析
//
// WebSocket:
//   - GET  /ws/trips/{id}         - 任务事件推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	tripHandler := trip.NewHandler(instrumentedPlanner{Service: h.service, metrics: h.metrics}, h.log)
	tripHandler.RegisterRoutes(mux)

	// 指标 → 请求日志 → CORS
	apiHandler := h.metrics.MetricsMiddleware(mux)
	loggedHandler := requestLogger(h.log, apiHandler)
	corsHandler := corsMiddleware(loggedHandler)

	// 顶层路由，WebSocket 绕过中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/trips/{id}", h.eventGateway.HandleWebSocket)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger 为每个请求分配 request_id 并记录访问日志
func requestLogger(log *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), logging.RequestIDKey, requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		log.WithContext(ctx).HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), clientIP(r))
	})
}

// clientIP 优先取 X-Forwarded-For 的第一个地址
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
