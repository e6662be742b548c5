package storage

import (
	"context"
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// ExecutionFilter Execution列表查询条件
type ExecutionFilter struct {
	WorkflowID  string
	OwnerID     string
	Status      workflow.ExecutionStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ExecutionRepository Execution存储接口（对外导出）
// 状态写入是追加式的单调转换：任何实现都不允许
// 用非终态覆盖终态（last-writer-wins在此明确禁止）
type ExecutionRepository interface {
	// Create 创建Execution（pending状态）
	// (email_id, workflow_id)对违反唯一约束时返回ErrDuplicateTrigger
	Create(ctx context.Context, exec *workflow.Execution) error
	// GetByID 根据ID查询Execution，不存在返回nil
	GetByID(ctx context.Context, id string) (*workflow.Execution, error)
	// MarkRunning pending → running，记录started_at
	// 当前状态不是pending时返回ErrTerminalState
	MarkRunning(ctx context.Context, id string) error
	// MarkTerminal 转入终态并记录结果
	// 已处于终态时返回ErrTerminalState
	MarkTerminal(ctx context.Context, id string, status workflow.ExecutionStatus, errCategory, errMessage string, result map[string]interface{}) error
	// UpdateProgress 持久化断点数据（action_cursor/attempt_count/尝试记录/下次可执行时间）
	// 进程重启后Engine完全依赖这些字段恢复执行
	UpdateProgress(ctx context.Context, id string, cursor, attemptCount int, attempts []workflow.AttemptRecord, nextEligibleAt *time.Time) error
	// RecordLateOutcome 补记已取消执行收到的迟到回调（result/尝试记录）
	// 只写cancelled行且不触碰status/attempt_count，单调性不受影响
	RecordLateOutcome(ctx context.Context, id string, result map[string]interface{}, attempts []workflow.AttemptRecord) error
	// List 按条件分页查询，返回当前页和总数
	List(ctx context.Context, filter ExecutionFilter) ([]*workflow.Execution, int, error)
	// ListResumable 查询所有pending/running状态的Execution（启动恢复用）
	ListResumable(ctx context.Context) ([]*workflow.Execution, error)
	// HasNonTerminal 判断Workflow是否存在未终态的Execution（删除守卫）
	HasNonTerminal(ctx context.Context, workflowID string) (bool, error)
}
