// Package storage 定义持久化Repository接口
package storage

import "errors"

// 存储层业务错误（对外导出）
var (
	// ErrDuplicateTrigger 同一(email, workflow)对已存在Execution
	// 保证一封邮件对同一Workflow只触发一次
	ErrDuplicateTrigger = errors.New("该邮件已触发过此Workflow")

	// ErrTerminalState 目标Execution已处于终态
	// 状态写入必须单调：不允许用pending/running覆盖completed/failed
	ErrTerminalState = errors.New("Execution已处于终态，拒绝状态回写")

	// ErrWorkflowHasActiveExecutions Workflow仍有未完成的Execution
	// 删除被拒绝，所有Execution终态化后方可删除
	ErrWorkflowHasActiveExecutions = errors.New("Workflow存在未完成的Execution，无法删除")

	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
)
