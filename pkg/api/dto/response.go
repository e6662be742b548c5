package dto

import (
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total   int  `json:"total"`
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}

// WorkflowView Workflow视图
type WorkflowView struct {
	ID                string               `json:"id"`
	OwnerID           string               `json:"owner_id"`
	Name              string               `json:"name"`
	Description       string               `json:"description,omitempty"`
	TriggerType       string               `json:"trigger_type"`
	TriggerConditions []workflow.Condition `json:"trigger_conditions"`
	Actions           []workflow.Action    `json:"actions"`
	Schedule          string               `json:"schedule,omitempty"`
	Active            bool                 `json:"active"`
	RetryPolicy       workflow.RetryPolicy `json:"retry_policy"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// NewWorkflowView 从领域对象构建视图
func NewWorkflowView(wf *workflow.Workflow) WorkflowView {
	return WorkflowView{
		ID:                wf.ID,
		OwnerID:           wf.OwnerID,
		Name:              wf.Name,
		Description:       wf.Description,
		TriggerType:       string(wf.TriggerType),
		TriggerConditions: wf.TriggerConditions,
		Actions:           wf.Actions,
		Schedule:          wf.Schedule,
		Active:            wf.Active,
		RetryPolicy:       wf.RetryPolicy,
		CreatedAt:         wf.CreateTime,
		UpdatedAt:         wf.UpdateTime,
	}
}

// ExecutionView Execution视图
type ExecutionView struct {
	ID            string                   `json:"id"`
	WorkflowID    string                   `json:"workflow_id"`
	OwnerID       string                   `json:"owner_id"`
	EmailID       string                   `json:"email_id,omitempty"`
	Status        string                   `json:"status"`
	ActionCursor  int                      `json:"action_cursor"`
	ActionCount   int                      `json:"action_count"`
	AttemptCount  int                      `json:"attempt_count"`
	TriggerData   map[string]interface{}   `json:"trigger_data,omitempty"`
	Result        map[string]interface{}   `json:"result,omitempty"`
	ErrorCategory string                   `json:"error_category,omitempty"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	Attempts      []workflow.AttemptRecord `json:"attempts,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	StartedAt     *time.Time               `json:"started_at,omitempty"`
	FinishedAt    *time.Time               `json:"finished_at,omitempty"`
	Duration      string                   `json:"duration,omitempty"`
}

// NewExecutionView 从领域对象构建视图
func NewExecutionView(exec *workflow.Execution) ExecutionView {
	view := ExecutionView{
		ID:            exec.ID,
		WorkflowID:    exec.WorkflowID,
		OwnerID:       exec.OwnerID,
		EmailID:       exec.EmailID,
		Status:        string(exec.Status),
		ActionCursor:  exec.ActionCursor,
		ActionCount:   len(exec.Actions),
		AttemptCount:  exec.AttemptCount,
		TriggerData:   exec.TriggerData,
		Result:        exec.Result,
		ErrorCategory: exec.ErrorCategory,
		ErrorMessage:  exec.ErrorMessage,
		Attempts:      exec.Attempts,
		CreatedAt:     exec.CreateTime,
		StartedAt:     exec.StartTime,
		FinishedAt:    exec.EndTime,
	}
	if exec.StartTime != nil && exec.EndTime != nil {
		view.Duration = exec.EndTime.Sub(*exec.StartTime).Round(time.Millisecond).String()
	}
	return view
}

// EmailView Email视图
type EmailView struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	From            string    `json:"from"`
	Subject         string    `json:"subject"`
	Category        string    `json:"category"`
	Priority        string    `json:"priority"`
	ConfidenceScore float64   `json:"confidence_score"`
	ReceivedAt      time.Time `json:"received_at"`
}

// NewEmailView 从领域对象构建视图
func NewEmailView(email *workflow.Email) EmailView {
	return EmailView{
		ID:              email.ID,
		OwnerID:         email.OwnerID,
		From:            email.From,
		Subject:         email.Subject,
		Category:        email.Category,
		Priority:        email.Priority,
		ConfidenceScore: email.ConfidenceScore,
		ReceivedAt:      email.ReceivedAt,
	}
}

// InboundEmailResponse 入站邮件响应
type InboundEmailResponse struct {
	Email        EmailView `json:"email"`
	ExecutionIDs []string  `json:"execution_ids"`
}

// ExecuteResponse 手动执行响应
type ExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
	Message     string `json:"message"`
}

// WebhookAckResponse Webhook确认响应
type WebhookAckResponse struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}
