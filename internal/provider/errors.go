package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
)

// ErrorKind 数据源失败类型
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindAuth         ErrorKind = "auth"
	KindUpstream     ErrorKind = "upstream"
	KindUnresolvable ErrorKind = "unresolvable"
	KindDisabled     ErrorKind = "disabled"
)

// Error 数据源调用失败
type Error struct {
	Provider string
	Op       string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 构造数据源错误
func NewError(provider, op string, kind ErrorKind, err error) *Error {
	return &Error{Provider: provider, Op: op, Kind: kind, Err: err}
}

// Classify 将底层错误归类为 *Error
func Classify(provider, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= 500 {
			return NewError(provider, op, KindUpstream, err)
		}
		return NewError(provider, op, KindAuth, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(provider, op, KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(provider, op, KindTimeout, err)
	}
	if errors.As(err, &netErr) {
		return NewError(provider, op, KindNetwork, err)
	}
	return NewError(provider, op, KindUpstream, err)
}

// StatusError 按 HTTP 状态码归类
func StatusError(provider, op string, status int) *Error {
	err := fmt.Errorf("unexpected status %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(provider, op, KindAuth, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(provider, op, KindTimeout, err)
	default:
		return NewError(provider, op, KindUpstream, err)
	}
}

// KindOf 返回错误类型，非数据源错误返回空
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
