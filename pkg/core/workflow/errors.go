package workflow

import (
	"errors"
	"fmt"
	"time"
)

// 错误分类常量，记录在Execution的error_category字段
const (
	ErrCategoryValidation = "validation"
	ErrCategoryDispatch   = "dispatch"
	ErrCategoryTimeout    = "timeout"
	ErrCategorySignature  = "signature"
	ErrCategoryFatal      = "fatal"
	ErrCategoryUnknown    = "unknown"
)

// ValidationError Workflow定义不合法（对外导出）
// 在CRUD边界同步拒绝，不落库
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("校验失败: %s: %s", e.Field, e.Reason)
}

// DispatchError 动作执行或转发的瞬时失败（对外导出）
// 按Workflow重试策略重试，不会立即暴露给所有者
type DispatchError struct {
	ActionType ActionType
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("动作分发失败: %s: %v", e.ActionType, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// TimeoutError 等待外部运行时回调超时（对外导出）
// 重试语义上等同于DispatchError
type TimeoutError struct {
	ActionType ActionType
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("等待回调超时: %s (%v)", e.ActionType, e.Timeout)
}

// SignatureError Webhook签名校验失败（对外导出）
// 在Gateway边界拒绝，不触达Engine和Store，不重试
type SignatureError struct {
	Source string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("签名校验失败: source=%s", e.Source)
}

// FatalActionError 动作配置本身不合法（对外导出）
// 重试只会复现同样的错误，Execution立即转为failed
type FatalActionError struct {
	ActionType ActionType
	Reason     string
}

func (e *FatalActionError) Error() string {
	return fmt.Sprintf("动作配置错误: %s: %s", e.ActionType, e.Reason)
}

// CategoryOf 返回错误的分类标签
func CategoryOf(err error) string {
	var ve *ValidationError
	var de *DispatchError
	var te *TimeoutError
	var se *SignatureError
	var fe *FatalActionError
	switch {
	case errors.As(err, &ve):
		return ErrCategoryValidation
	case errors.As(err, &te):
		return ErrCategoryTimeout
	case errors.As(err, &fe):
		return ErrCategoryFatal
	case errors.As(err, &se):
		return ErrCategorySignature
	case errors.As(err, &de):
		return ErrCategoryDispatch
	}
	return ErrCategoryUnknown
}

// IsRetryable 判断错误是否可按重试策略重试
// 仅瞬时的分发失败和回调超时可重试
func IsRetryable(err error) bool {
	switch CategoryOf(err) {
	case ErrCategoryDispatch, ErrCategoryTimeout:
		return true
	}
	return false
}
