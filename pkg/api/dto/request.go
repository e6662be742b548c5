package dto

import (
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// CreateWorkflowRequest 创建Workflow请求
type CreateWorkflowRequest struct {
	OwnerID           string                `json:"owner_id" binding:"required"`
	Name              string                `json:"name" binding:"required"`
	Description       string                `json:"description" binding:"omitempty"`
	TriggerType       string                `json:"trigger_type" binding:"required"`
	TriggerConditions []workflow.Condition  `json:"trigger_conditions" binding:"omitempty"`
	Actions           []workflow.Action     `json:"actions" binding:"required"`
	Schedule          string                `json:"schedule" binding:"omitempty"`
	Active            *bool                 `json:"active" binding:"omitempty"`
	RetryPolicy       *workflow.RetryPolicy `json:"retry_policy" binding:"omitempty"`
}

// UpdateWorkflowRequest 更新Workflow请求
// 指针字段为nil表示保持原值
type UpdateWorkflowRequest struct {
	Name              *string               `json:"name" binding:"omitempty"`
	Description       *string               `json:"description" binding:"omitempty"`
	TriggerType       *string               `json:"trigger_type" binding:"omitempty"`
	TriggerConditions *[]workflow.Condition `json:"trigger_conditions" binding:"omitempty"`
	Actions           *[]workflow.Action    `json:"actions" binding:"omitempty"`
	Schedule          *string               `json:"schedule" binding:"omitempty"`
	Active            *bool                 `json:"active" binding:"omitempty"`
	RetryPolicy       *workflow.RetryPolicy `json:"retry_policy" binding:"omitempty"`
}

// ExecuteWorkflowRequest 手动执行Workflow请求
type ExecuteWorkflowRequest struct {
	TriggerData map[string]interface{} `json:"trigger_data" binding:"omitempty"`
}

// InboundEmailRequest 直接投递入站邮件请求
type InboundEmailRequest struct {
	OwnerID    string    `json:"owner_id" binding:"required"`
	From       string    `json:"from" binding:"required"`
	Subject    string    `json:"subject" binding:"omitempty"`
	Body       string    `json:"body" binding:"omitempty"`
	ReceivedAt time.Time `json:"received_at" binding:"omitempty"`
}

// ListQueryRequest 通用列表查询请求
type ListQueryRequest struct {
	OwnerID     string `form:"owner_id" binding:"omitempty"`
	Status      string `form:"status" binding:"omitempty"`
	TriggerType string `form:"trigger_type" binding:"omitempty"`
	Category    string `form:"category" binding:"omitempty"`
	WorkflowID  string `form:"workflow_id" binding:"omitempty"`
	Active      *bool  `form:"active" binding:"omitempty"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

// GetDefaultLimit 获取默认limit
func (r *ListQueryRequest) GetDefaultLimit() int {
	if r.Limit <= 0 {
		return 20
	}
	return r.Limit
}
