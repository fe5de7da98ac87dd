package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// maxResponseBytes 限制读取的响应体大小
const maxResponseBytes = 4 << 20

// NewLimiter 按每秒请求数与突发量创建限流器
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// GetJSON 限流后发起 GET 请求并解码 JSON 响应
//
// 等待令牌同样受 ctx 约束，超时按 KindTimeout 返回。
func GetJSON(ctx context.Context, hc *http.Client, limiter *rate.Limiter, provider, op, endpoint string, query url.Values, out any) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return NewError(provider, op, KindTimeout, fmt.Errorf("rate limiter: %w", err))
		}
	}

	u := endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewError(provider, op, KindUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return Classify(provider, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return StatusError(provider, op, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return Classify(provider, op, ctx.Err())
		}
		return NewError(provider, op, KindUpstream, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
