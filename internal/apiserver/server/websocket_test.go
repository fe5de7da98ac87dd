package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-planner/internal/apiserver/trip"
	"trip-planner/internal/shared/eventbus"
	"trip-planner/internal/shared/model"
)

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, taskID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/trips/" + taskID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg rawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func decodeStatus(t *testing.T, msg rawMessage) trip.StatusResponse {
	t.Helper()
	var resp trip.StatusResponse
	require.NoError(t, json.Unmarshal(msg.Data, &resp))
	return resp
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "应收到正常关闭帧: %v", err)
}

// TestHandleWebSocket_EventStream 快照 → 事件 → 最终状态 → 关闭
func TestHandleWebSocket_EventStream(t *testing.T) {
	svc := &fakeService{task: runningTask("t1"), events: make(chan *eventbus.TaskEvent, 4)}
	h := newTestHandler(svc)
	srv := startServer(t, h)
	conn := dial(t, srv, "t1")

	snap := readMessage(t, conn)
	assert.Equal(t, msgSnapshot, snap.Type)
	assert.Equal(t, model.TaskStatusRunning, decodeStatus(t, snap).Status)

	svc.events <- &eventbus.TaskEvent{
		Type:   eventbus.EventAgentCompleted,
		TaskID: "t1",
		Status: model.TaskStatusPartiallyComplete,
		Agent:  model.AgentFlight,
		Source: model.SourceLive,
	}
	ev := readMessage(t, conn)
	assert.Equal(t, msgEvent, ev.Type)
	var event eventbus.TaskEvent
	require.NoError(t, json.Unmarshal(ev.Data, &event))
	assert.Equal(t, model.AgentFlight, event.Agent)

	done := runningTask("t1")
	done.Status = model.TaskStatusCompleted
	done.Progress = model.Stage1Size
	svc.setTask(done)
	svc.events <- &eventbus.TaskEvent{Type: eventbus.EventTaskStatus, TaskID: "t1", Status: model.TaskStatusCompleted}

	assert.Equal(t, msgEvent, readMessage(t, conn).Type)
	final := readMessage(t, conn)
	assert.Equal(t, msgStatus, final.Type)
	assert.Equal(t, model.TaskStatusCompleted, decodeStatus(t, final).Status)
	expectClosed(t, conn)

	assert.Eventually(t, func() bool { return h.eventGateway.ClientCount("t1") == 0 }, time.Second, 10*time.Millisecond)
}

// TestHandleWebSocket_TerminalSnapshot 已结束的任务只推送快照
func TestHandleWebSocket_TerminalSnapshot(t *testing.T) {
	task := runningTask("t2")
	task.Status = model.TaskStatusFailed
	task.Error = "aggregation fault in hotel: panic"
	svc := &fakeService{task: task, events: make(chan *eventbus.TaskEvent)}
	conn := dial(t, startServer(t, newTestHandler(svc)), "t2")

	snap := readMessage(t, conn)
	assert.Equal(t, msgSnapshot, snap.Type)
	resp := decodeStatus(t, snap)
	assert.Equal(t, model.TaskStatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "panic")
	expectClosed(t, conn)
}

// TestHandleWebSocket_UnknownTask 未知任务在升级前返回 404
func TestHandleWebSocket_UnknownTask(t *testing.T) {
	srv := startServer(t, newTestHandler(&fakeService{}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/trips/missing"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestHandleWebSocket_PingPong 心跳消息处理
func TestHandleWebSocket_PingPong(t *testing.T) {
	svc := &fakeService{task: runningTask("t3"), events: make(chan *eventbus.TaskEvent)}
	conn := dial(t, startServer(t, newTestHandler(svc)), "t3")

	assert.Equal(t, msgSnapshot, readMessage(t, conn).Type)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, msgPong, readMessage(t, conn).Type)
}

// TestHandleWebSocket_PollingFallback 订阅失败时轮询任务状态
func TestHandleWebSocket_PollingFallback(t *testing.T) {
	svc := &fakeService{task: runningTask("t4"), subErr: errors.New("redis unavailable")}
	conn := dial(t, startServer(t, newTestHandler(svc)), "t4")

	assert.Equal(t, msgSnapshot, readMessage(t, conn).Type)

	done := runningTask("t4")
	done.Status = model.TaskStatusCompleted
	svc.setTask(done)

	for {
		msg := readMessage(t, conn)
		if msg.Type == msgStatus {
			assert.Equal(t, model.TaskStatusCompleted, decodeStatus(t, msg).Status)
			break
		}
	}
	expectClosed(t, conn)
}

func TestAddRemoveClient(t *testing.T) {
	gw := NewEventGateway(&fakeService{}, NewMetrics("trip", nil), nil)
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	gw.addClient("t1", conn1)
	gw.addClient("t1", conn2)
	gw.addClient("t2", conn1)
	assert.Equal(t, 2, gw.ClientCount("t1"))
	assert.Equal(t, 1, gw.ClientCount("t2"))

	gw.removeClient("t1", conn1)
	assert.Equal(t, 1, gw.ClientCount("t1"))

	gw.removeClient("t1", conn2)
	gw.removeClient("t1", conn2)
	gw.mu.RLock()
	_, ok := gw.clients["t1"]
	gw.mu.RUnlock()
	assert.False(t, ok, "最后一个连接移除后应清理条目")

	// 不存在的任务不应 panic
	gw.removeClient("missing", conn1)
}
