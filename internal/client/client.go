// Package client 行程规划服务的 HTTP 客户端
//
// 提交请求后，服务端在同步窗口内完成则直接返回方案，否则返回任务 ID，
// 由 WaitForPlan 按固定间隔轮询直到终态、超时或次数用尽。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trip-planner/internal/shared/model"
)

// ErrTaskNotFound 任务不存在或已过期
var ErrTaskNotFound = model.ErrTaskNotFound

// ErrPollExhausted 轮询次数用尽仍未结束
var ErrPollExhausted = errors.New("polling attempts exhausted")

// TaskFailedError 任务以 failed 结束
type TaskFailedError struct {
	TaskID string
	Reason string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}

// APIError 服务端返回的非成功响应
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api error %d: %s (field %s)", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// SubmitStatus 提交接口返回的状态
type SubmitStatus string

const (
	SubmitCompleted  SubmitStatus = "completed"
	SubmitProcessing SubmitStatus = "processing"
	SubmitFailed     SubmitStatus = "failed"
)

// SubmitResponse 提交接口响应
type SubmitResponse struct {
	Status SubmitStatus    `json:"status"`
	TaskID string          `json:"task_id"`
	Result *model.TripPlan `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusResponse 状态查询响应，Status 为 pending、running、completed、failed 之一
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

// Client 行程规划 HTTP 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// New 创建客户端
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ============================================================================
// 接口调用
// ============================================================================

// Submit 提交规划请求
func (c *Client) Submit(ctx context.Context, payload model.TripRequestPayload) (*SubmitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/trips", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status 查询任务状态，404 返回 ErrTaskNotFound
func (c *Client) Status(ctx context.Context, id string) (*StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/trips/"+url.PathEscape(id), nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Field = payload.Field
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ============================================================================
// 轮询
// ============================================================================

// PollOptions 轮询参数
type PollOptions struct {
	// Interval 两次查询的间隔，默认 2s
	Interval time.Duration
	// MaxAttempts 最多查询次数，默认 60
	MaxAttempts int
	// Deadline 整体超时，0 表示只受 ctx 约束
	Deadline time.Duration
	// OnPoll 每次查询成功后回调
	OnPoll func(attempt int, status *StatusResponse)
}

// DefaultPollOptions 默认轮询参数
func DefaultPollOptions() PollOptions {
	return PollOptions{Interval: 2 * time.Second, MaxAttempts: 60}
}

func (o *PollOptions) normalize() {
	d := DefaultPollOptions()
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
}

// WaitForPlan 轮询直到任务结束
//
// 结束条件：
//   - completed: 返回方案
//   - failed: 返回 *TaskFailedError
//   - 任务不存在: 返回 ErrTaskNotFound
//   - ctx 取消或 Deadline 到期: 返回 ctx 错误
//   - 次数用尽: 返回 ErrPollExhausted
//
// 查询失败（网络错误、5xx）和未知状态都继续轮询。
func (c *Client) WaitForPlan(ctx context.Context, id string, opts PollOptions) (*model.TripPlan, error) {
	opts.normalize()
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		st, err := c.Status(ctx, id)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, ErrTaskNotFound):
			return nil, err
		case err != nil:
			lastErr = err
		default:
			if opts.OnPoll != nil {
				opts.OnPoll(attempt, st)
			}
			switch st.Status {
			case model.TaskStatusCompleted:
				if st.Result == nil {
					return nil, fmt.Errorf("task %s completed without result", id)
				}
				return st.Result, nil
			case model.TaskStatusFailed:
				return nil, &TaskFailedError{TaskID: id, Reason: st.Error}
			}
		}

		if attempt == opts.MaxAttempts {
			break
		}
		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: last error: %v", ErrPollExhausted, opts.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrPollExhausted, opts.MaxAttempts)
}

// PlanTrip 提交请求，同步完成时直接返回，否则轮询
func (c *Client) PlanTrip(ctx context.Context, payload model.TripRequestPayload, opts PollOptions) (*model.TripPlan, error) {
	res, err := c.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case SubmitCompleted:
		if res.Result != nil {
			return res.Result, nil
		}
	case SubmitFailed:
		return nil, &TaskFailedError{TaskID: res.TaskID, Reason: res.Error}
	}
	return c.WaitForPlan(ctx, res.TaskID, opts)
}
