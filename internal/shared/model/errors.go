package model

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound 任务不存在或已过期
var ErrTaskNotFound = errors.New("task not found")

// ErrInvalidTransition 非法的状态迁移（状态只能前进）
var ErrInvalidTransition = errors.New("invalid task status transition")

// ValidationError 请求字段缺失或格式错误，在创建任务前返回
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NewValidationError 构造校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError 判断错误链中是否包含 ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AggregationFault 内部契约被破坏（如兜底数据本身不可用），唯一会使任务失败的错误
type AggregationFault struct {
	Stage  string
	Reason string
	Err    error
}

// NewAggregationFault 构造聚合错误
func NewAggregationFault(stage, reason string, err error) *AggregationFault {
	return &AggregationFault{Stage: stage, Reason: reason, Err: err}
}

func (e *AggregationFault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aggregation fault in %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("aggregation fault in %s: %s", e.Stage, e.Reason)
}

func (e *AggregationFault) Unwrap() error {
	return e.Err
}

// IsAggregationFault 判断错误链中是否包含 AggregationFault
func IsAggregationFault(err error) bool {
	var af *AggregationFault
	return errors.As(err, &af)
}
