// Package action 定义动作处理器与注册中心
package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// Handler 动作处理器接口（对外导出）
// Execute返回结果负载；瞬时失败返回DispatchError，
// 配置本身不合法返回FatalActionError
type Handler interface {
	// Type 处理器对应的动作类型
	Type() workflow.ActionType
	// Execute 执行动作
	// email在手动/定时触发时为nil
	Execute(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error)
}

// Registry 动作处理器注册中心（对外导出）
type Registry struct {
	mu       sync.RWMutex
	handlers map[workflow.ActionType]Handler
}

// NewRegistry 创建注册中心（对外导出的工厂方法）
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[workflow.ActionType]Handler),
	}
}

// Register 注册动作处理器
// 同类型重复注册时后注册者覆盖前者
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get 查询动作处理器
func (r *Registry) Get(actionType workflow.ActionType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// Execute 分发动作到对应处理器
// 未注册的动作类型视为致命错误（重试不可能成功）
func (r *Registry) Execute(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error) {
	h, ok := r.Get(act.Type)
	if !ok {
		return nil, &workflow.FatalActionError{
			ActionType: act.Type,
			Reason:     fmt.Sprintf("未注册的动作类型: %s", act.Type),
		}
	}
	return h.Execute(ctx, act, exec, email)
}
