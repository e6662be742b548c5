// Package events 提供执行事件与动作结果的事件驱动架构支持
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type 事件类型
type Type string

const (
	// 邮件事件
	EventEmailReceived Type = "email.received" // 入站邮件已分类落库

	// 执行状态事件
	EventExecutionStarted   Type = "execution.started"   // Execution进入running
	EventExecutionCompleted Type = "execution.completed" // 全部动作成功
	EventExecutionFailed    Type = "execution.failed"    // 重试耗尽或致命错误
	EventExecutionCancelled Type = "execution.cancelled" // 所有者取消

	// 动作事件
	EventActionCompleted Type = "action.completed" // 单个动作成功
	EventActionFailed    Type = "action.failed"    // 单次尝试失败
)

// Event 执行事件基础结构
type Event struct {
	ID          string                 `json:"id"`           // 事件ID（UUID）
	Type        Type                   `json:"type"`         // 事件类型
	ExecutionID string                 `json:"execution_id"` // 关联Execution ID
	WorkflowID  string                 `json:"workflow_id"`  // 关联Workflow ID
	Timestamp   time.Time              `json:"timestamp"`    // 事件时间
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// NewEvent 创建执行事件
func NewEvent(eventType Type, executionID, workflowID string) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Timestamp:   time.Now(),
	}
}

// WithPayload 附加事件负载
func (e *Event) WithPayload(key string, value interface{}) *Event {
	if e.Payload == nil {
		e.Payload = make(map[string]interface{})
	}
	e.Payload[key] = value
	return e
}

// 动作结果来源
const (
	OutcomeSourceLocal   = "local"   // 本地处理器同步产生
	OutcomeSourceRuntime = "runtime" // 外部自动化运行时回调产生
)

// ActionOutcome 统一的动作结果事件
// 本地执行和外部回调共用同一结果类型，由Engine统一消费，
// 使两条路径共享同一套重试/超时状态机
type ActionOutcome struct {
	ExecutionID  string                 `json:"execution_id"`
	ActionIndex  int                    `json:"action_index"`
	Success      bool                   `json:"success"`
	Result       map[string]interface{} `json:"result,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Source       string                 `json:"source"`             // local或runtime
	EventID      string                 `json:"event_id,omitempty"` // 外部回调的去重键
}
