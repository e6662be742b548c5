package storage

import (
	"context"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// WorkflowFilter Workflow列表查询条件
type WorkflowFilter struct {
	OwnerID     string
	Active      *bool
	TriggerType string
	Category    string // 匹配触发条件中引用的分类
	Limit       int
	Offset      int
}

// WorkflowRepository Workflow定义存储接口（对外导出）
type WorkflowRepository interface {
	// Save 保存新Workflow
	Save(ctx context.Context, wf *workflow.Workflow) error
	// GetByID 根据ID查询Workflow，不存在返回nil
	GetByID(ctx context.Context, id string) (*workflow.Workflow, error)
	// Update 更新Workflow（name/description/actions/active等，不回溯历史Execution）
	Update(ctx context.Context, wf *workflow.Workflow) error
	// Delete 删除Workflow；存在非终态Execution时返回ErrWorkflowHasActiveExecutions
	Delete(ctx context.Context, id string) error
	// List 按条件分页查询，返回当前页和总数
	List(ctx context.Context, filter WorkflowFilter) ([]*workflow.Workflow, int, error)
	// ListActiveByOwner 查询某所有者的全部激活Workflow（供Trigger Matcher使用）
	ListActiveByOwner(ctx context.Context, ownerID string) ([]*workflow.Workflow, error)
}
