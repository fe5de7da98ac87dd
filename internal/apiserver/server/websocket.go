package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trip-planner/internal/apiserver/trip"
	"trip-planner/internal/shared/eventbus"
	"trip-planner/internal/shared/model"
	"trip-planner/pkg/logging"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	pollInterval = 500 * time.Millisecond
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 允许所有来源，与 REST 接口的 CORS 策略一致。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// taskSource 网关依赖的任务查询与订阅
type taskSource interface {
	Status(ctx context.Context, id string) (*model.TaskRecord, error)
	Subscribe(ctx context.Context, id string) (<-chan *eventbus.TaskEvent, error)
}

// Message 推送给客户端的消息
//
//	快照：{"type": "snapshot", "data": StatusResponse}
//	事件：{"type": "event", "data": TaskEvent}
//	终态：{"type": "status", "data": StatusResponse}
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

const (
	msgSnapshot = "snapshot"
	msgEvent    = "event"
	msgStatus   = "status"
	msgPong     = "pong"
)

// EventGateway WebSocket 事件网关
//
// 事件网关负责：
//   - 管理 WebSocket 连接
//   - 连接建立后先推送任务快照，再转发事件总线上的任务事件
//   - 订阅失败时降级为轮询任务状态
//   - 任务进入终态后推送最终状态并关闭连接
type EventGateway struct {
	source  taskSource
	metrics *Metrics
	log     *logging.Logger
	clients map[string]map[*websocket.Conn]bool // 按任务 ID 索引的客户端连接
	mu      sync.RWMutex
}

// NewEventGateway 创建事件网关实例
func NewEventGateway(source taskSource, metrics *Metrics, logger *logging.Logger) *EventGateway {
	if logger == nil {
		logger = logging.Nop()
	}
	return &EventGateway{
		source:  source,
		metrics: metrics,
		log:     logger.Named("ws"),
		clients: make(map[string]map[*websocket.Conn]bool),
	}
}

// HandleWebSocket 处理 WebSocket 连接请求
//
// 路由: GET /ws/trips/{id}
//
// 未知或已过期的任务在升级前返回 404。
//
// 客户端消息：
//
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
func (g *EventGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}

	if _, err := g.source.Status(r.Context(), taskID); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	conn := &clientConn{Conn: ws, metrics: g.metrics}
	defer ws.Close()

	g.addClient(taskID, ws)
	defer g.removeClient(taskID, ws)

	log := g.log.WithTaskID(taskID)
	log.Debug("WebSocket client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go g.readPump(conn, cancel)

	// 先订阅再取快照，快照之后的事件不会丢失
	events, err := g.source.Subscribe(ctx, taskID)
	if err != nil {
		log.WithError(err).Warn("Subscribe task events failed, falling back to polling")
		events = nil
	}

	task, err := g.source.Status(ctx, taskID)
	if err != nil {
		return
	}
	if err := conn.send(msgSnapshot, trip.NewStatusResponse(task)); err != nil {
		return
	}
	if task.Status.IsTerminal() {
		conn.close()
		return
	}

	if events == nil {
		g.pollPump(ctx, conn, taskID)
		return
	}
	g.writePump(ctx, conn, taskID, events)
}

// addClient 添加客户端连接
func (g *EventGateway) addClient(taskID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.clients[taskID] == nil {
		g.clients[taskID] = make(map[*websocket.Conn]bool)
	}
	g.clients[taskID][conn] = true
	if g.metrics != nil {
		g.metrics.WSConnectionOpened()
	}
}

// removeClient 移除客户端连接，任务没有其他连接时清理整个条目
func (g *EventGateway) removeClient(taskID string, conn *websocket.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if clients, ok := g.clients[taskID]; ok {
		if !clients[conn] {
			return
		}
		delete(clients, conn)
		if len(clients) == 0 {
			delete(g.clients, taskID)
		}
		if g.metrics != nil {
			g.metrics.WSConnectionClosed()
		}
	}
}

// ClientCount 某个任务当前的连接数
func (g *EventGateway) ClientCount(taskID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients[taskID])
}

// readPump 读取客户端消息，连接断开时取消上下文
func (g *EventGateway) readPump(conn *clientConn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				g.log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
		if g.metrics != nil {
			g.metrics.RecordWSMessage("in", "text")
		}

		var req Message
		if json.Unmarshal(msg, &req) == nil && req.Type == "ping" {
			conn.send(msgPong, nil)
		}
	}
}

// writePump 转发事件总线上的任务事件，收到终态事件后推送最终状态并关闭
func (g *EventGateway) writePump(ctx context.Context, conn *clientConn, taskID string, events <-chan *eventbus.TaskEvent) {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				// 订阅结束，补发一次最终状态
				g.sendFinal(ctx, conn, taskID)
				return
			}
			if err := conn.send(msgEvent, event); err != nil {
				return
			}
			if event.Terminal() {
				g.sendFinal(ctx, conn, taskID)
				return
			}
		}
	}
}

// pollPump 轮询任务状态，进度变化时推送快照
func (g *EventGateway) pollPump(ctx context.Context, conn *clientConn, taskID string) {
	ticker := time.NewTicker(pollInterval)
	pingTicker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer pingTicker.Stop()

	var lastStatus model.TaskStatus
	lastProgress := -1

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-ticker.C:
			task, err := g.source.Status(ctx, taskID)
			if err != nil {
				return
			}
			if task.Status.IsTerminal() {
				conn.send(msgStatus, trip.NewStatusResponse(task))
				conn.close()
				return
			}
			if task.Status != lastStatus || task.Progress != lastProgress {
				lastStatus, lastProgress = task.Status, task.Progress
				if err := conn.send(msgSnapshot, trip.NewStatusResponse(task)); err != nil {
					return
				}
			}
		}
	}
}

// sendFinal 推送最终状态并发送关闭帧
func (g *EventGateway) sendFinal(ctx context.Context, conn *clientConn, taskID string) {
	task, err := g.source.Status(context.WithoutCancel(ctx), taskID)
	if err == nil {
		conn.send(msgStatus, trip.NewStatusResponse(task))
	}
	conn.close()
}

// clientConn 串行化同一连接上的写操作
type clientConn struct {
	*websocket.Conn
	metrics *Metrics
	mu      sync.Mutex
}

func (c *clientConn) send(typ string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.WriteJSON(Message{Type: typ, Data: data}); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordWSMessage("out", typ)
	}
	return nil
}

func (c *clientConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.PingMessage, nil)
}

func (c *clientConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"),
		time.Now().Add(writeWait))
}
