package workflow

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus Execution状态（对外导出）
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"   // 已创建，等待执行
	StatusRunning   ExecutionStatus = "running"   // 执行中
	StatusCompleted ExecutionStatus = "completed" // 全部动作成功（终态）
	StatusFailed    ExecutionStatus = "failed"    // 重试耗尽或致命错误（终态）
	StatusCancelled ExecutionStatus = "cancelled" // 所有者取消（终态）
)

// IsTerminal 判断是否为终态
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition 校验状态机转换是否合法
// pending → running → completed/failed；取消可在pending或running时发生；
// 任何转换都不允许跳过running进入completed/failed
func CanTransition(from, to ExecutionStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// AttemptRecord 单次失败尝试记录
// 仅内部留痕，不作为独立的用户可见失败暴露
type AttemptRecord struct {
	ActionIndex int       `json:"action_index"`
	Attempt     int       `json:"attempt"`
	Error       string    `json:"error"`
	At          time.Time `json:"at"`
}

// Execution Workflow的一次执行（对外导出）
// 由Execution Engine独占写入，所有者只读
type Execution struct {
	ID             string                 `json:"id"`
	WorkflowID     string                 `json:"workflow_id"`
	OwnerID        string                 `json:"owner_id"`
	EmailID        string                 `json:"email_id,omitempty"` // 手动/定时触发时为空
	TriggerData    map[string]interface{} `json:"trigger_data,omitempty"`
	Status         ExecutionStatus        `json:"status"`
	ActionCursor   int                    `json:"action_cursor"` // 下一个待执行动作的下标
	AttemptCount   int                    `json:"attempt_count"` // 当前动作已失败的尝试次数
	Actions        []Action               `json:"actions"`       // 动作列表快照（触发时固定）
	RetryPolicy    RetryPolicy            `json:"retry_policy"`  // 重试策略快照
	Result         map[string]interface{} `json:"result,omitempty"`
	ErrorCategory  string                 `json:"error_category,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Attempts       []AttemptRecord        `json:"attempts,omitempty"`
	NextEligibleAt *time.Time             `json:"next_eligible_at,omitempty"` // 延迟/退避的最早恢复时间
	CreateTime     time.Time              `json:"created_at"`
	StartTime      *time.Time             `json:"started_at,omitempty"`
	EndTime        *time.Time             `json:"finished_at,omitempty"`
}

// NewExecution 创建Execution实例（对外导出的工厂方法）
// 在触发时生成，固定动作列表与重试策略快照
func NewExecution(wf *Workflow, emailID string, triggerData map[string]interface{}) *Execution {
	return &Execution{
		ID:          uuid.NewString(),
		WorkflowID:  wf.ID,
		OwnerID:     wf.OwnerID,
		EmailID:     emailID,
		TriggerData: triggerData,
		Status:      StatusPending,
		Actions:     wf.SnapshotActions(),
		RetryPolicy: wf.RetryPolicy,
		CreateTime:  time.Now(),
	}
}

// CurrentAction 返回当前待执行的动作
func (e *Execution) CurrentAction() (Action, bool) {
	if e.ActionCursor < 0 || e.ActionCursor >= len(e.Actions) {
		return Action{}, false
	}
	return e.Actions[e.ActionCursor], true
}

// Finished 判断动作列表是否全部执行完毕
func (e *Execution) Finished() bool {
	return e.ActionCursor >= len(e.Actions)
}
