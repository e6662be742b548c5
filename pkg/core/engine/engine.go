// Package engine Execution Engine：触发、执行、重试、恢复的核心调度
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/action"
	"github.com/stevelan1995/mailpilot/pkg/core/events"
	"github.com/stevelan1995/mailpilot/pkg/core/trigger"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// 回调等待时间的默认值与上限
const (
	DefaultCallbackTimeout = 300 * time.Second
	MaxCallbackTimeout     = 3600 * time.Second
)

// Options Engine运行参数（对外导出）
type Options struct {
	// CallbackTimeout 外部动作等待运行时回调的超时
	CallbackTimeout time.Duration
	// DelayUnit delay_minutes的时间单位，默认time.Minute（测试可缩短）
	DelayUnit time.Duration
	// RetryUnit retry_delay_seconds的时间单位，默认time.Second（测试可缩短）
	RetryUnit time.Duration
}

func (o Options) normalized() Options {
	if o.CallbackTimeout <= 0 {
		o.CallbackTimeout = DefaultCallbackTimeout
	}
	if o.CallbackTimeout > MaxCallbackTimeout {
		o.CallbackTimeout = MaxCallbackTimeout
	}
	if o.DelayUnit <= 0 {
		o.DelayUnit = time.Minute
	}
	if o.RetryUnit <= 0 {
		o.RetryUnit = time.Second
	}
	return o
}

// Engine 工作流执行引擎（对外导出）
// Execution记录由Engine独占写入；每个进行中的Execution
// 对应一个executionManager goroutine
type Engine struct {
	workflows  storage.WorkflowRepository
	executions storage.ExecutionRepository
	emails     storage.EmailRepository
	registry   *action.Registry
	runtime    action.RuntimeDispatcher
	bus        *events.Bus
	opts       Options

	mu       sync.Mutex
	managers map[string]*executionManager
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New 创建执行引擎（对外导出的工厂方法）
func New(
	workflows storage.WorkflowRepository,
	executions storage.ExecutionRepository,
	emails storage.EmailRepository,
	registry *action.Registry,
	runtime action.RuntimeDispatcher,
	bus *events.Bus,
	opts Options,
) *Engine {
	return &Engine{
		workflows:  workflows,
		executions: executions,
		emails:     emails,
		registry:   registry,
		runtime:    runtime,
		bus:        bus,
		opts:       opts.normalized(),
		managers:   make(map[string]*executionManager),
	}
}

// Start 启动引擎并从断点恢复未完成的Execution（对外导出）
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("引擎已在运行")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	e.mu.Unlock()

	log.Printf("🚀 执行引擎启动")

	if err := e.restore(e.ctx); err != nil {
		return fmt.Errorf("恢复未完成执行失败: %w", err)
	}
	return nil
}

// restore 重启后恢复所有pending/running状态的Execution
// 断点数据（action_cursor/attempt_count/next_eligible_at）已落库，
// 管理器从持久化的游标处继续
func (e *Engine) restore(ctx context.Context) error {
	resumable, err := e.executions.ListResumable(ctx)
	if err != nil {
		return err
	}
	for _, exec := range resumable {
		log.Printf("🔄 恢复执行: id=%s workflow=%s cursor=%d", exec.ID, exec.WorkflowID, exec.ActionCursor)
		e.startManager(exec.ID)
	}
	if len(resumable) > 0 {
		log.Printf("✅ 已恢复 %d 个未完成执行", len(resumable))
	}
	return nil
}

// Stop 优雅停止引擎（对外导出）
// 等待进行中的管理器退出，最多等待30秒
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("✅ 执行引擎已停止")
	case <-time.After(30 * time.Second):
		log.Printf("⚠️ 执行引擎停止超时，仍有执行未退出")
	}
}

// TriggerFromEmail 用一封已分类邮件触发所有者的激活Workflow（对外导出）
// 同一(email, workflow)对由存储层唯一约束保证只触发一次，
// 重复触发静默跳过；返回本次创建的Execution ID列表
func (e *Engine) TriggerFromEmail(ctx context.Context, email *workflow.Email) ([]string, error) {
	candidates, err := e.workflows.ListActiveByOwner(ctx, email.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("查询激活工作流失败: %w", err)
	}

	matches := trigger.MatchEmail(email, candidates)
	created := make([]string, 0, len(matches))
	for _, m := range matches {
		exec := workflow.NewExecution(m.Workflow, email.ID, emailTriggerData(email))
		if err := e.executions.Create(ctx, exec); err != nil {
			if err == storage.ErrDuplicateTrigger {
				log.Printf("⚠️ 重复触发已跳过: email=%s workflow=%s", email.ID, m.Workflow.ID)
				continue
			}
			return created, fmt.Errorf("创建执行记录失败: %w", err)
		}
		log.Printf("✅ 工作流已触发: workflow=%s execution=%s email=%s", m.Workflow.ID, exec.ID, email.ID)
		created = append(created, exec.ID)
		e.startManager(exec.ID)
	}
	return created, nil
}

// emailTriggerData 从邮件构造trigger_data快照
func emailTriggerData(email *workflow.Email) map[string]interface{} {
	return map[string]interface{}{
		"from":             email.From,
		"subject":          email.Subject,
		"category":         email.Category,
		"priority":         email.Priority,
		"confidence_score": email.ConfidenceScore,
	}
}

// ExecuteManual 手动触发一次Workflow执行（对外导出）
// 不关联邮件，trigger_data由调用方提供
func (e *Engine) ExecuteManual(ctx context.Context, workflowID string, triggerData map[string]interface{}) (*workflow.Execution, error) {
	wf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("查询工作流失败: %w", err)
	}
	if wf == nil {
		return nil, storage.ErrNotFound
	}
	if !wf.Active {
		return nil, &workflow.ValidationError{Field: "active", Reason: "工作流未激活，不能手动执行"}
	}

	exec := workflow.NewExecution(wf, "", triggerData)
	if err := e.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("创建执行记录失败: %w", err)
	}
	log.Printf("✅ 手动触发执行: workflow=%s execution=%s", wf.ID, exec.ID)
	e.startManager(exec.ID)
	return exec, nil
}

// ExecuteScheduled 定时触发一次Workflow执行（由调度器调用）
func (e *Engine) ExecuteScheduled(ctx context.Context, wf *workflow.Workflow) (*workflow.Execution, error) {
	exec := workflow.NewExecution(wf, "", map[string]interface{}{
		"schedule":     wf.Schedule,
		"triggered_at": time.Now().Format(time.RFC3339),
	})
	if err := e.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("创建执行记录失败: %w", err)
	}
	log.Printf("⏰ 定时触发执行: workflow=%s execution=%s", wf.ID, exec.ID)
	e.startManager(exec.ID)
	return exec, nil
}

// Cancel 取消一个未终态的Execution（对外导出）
// 进行中的管理器收到信号后转入cancelled；无管理器时直接落库
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	e.mu.Lock()
	m := e.managers[executionID]
	e.mu.Unlock()

	if m != nil {
		m.requestCancel()
		return nil
	}

	exec, err := e.executions.GetByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("查询执行记录失败: %w", err)
	}
	if exec == nil {
		return storage.ErrNotFound
	}
	if exec.Status.IsTerminal() {
		return storage.ErrTerminalState
	}
	if err := e.executions.MarkTerminal(ctx, executionID, workflow.StatusCancelled, "", "所有者取消", nil); err != nil {
		return err
	}
	e.publish(events.NewEvent(events.EventExecutionCancelled, executionID, exec.WorkflowID))
	return nil
}

// HandleActionOutcome 消费一条动作结果（对外导出）
// 运行中的管理器通过回调通道接收；进程重启后无对应管理器时
// 直接根据结果推进断点并重新拉起管理器
func (e *Engine) HandleActionOutcome(ctx context.Context, outcome *events.ActionOutcome) error {
	e.mu.Lock()
	m := e.managers[outcome.ExecutionID]
	e.mu.Unlock()

	if m != nil {
		m.deliver(outcome)
		return nil
	}

	exec, err := e.executions.GetByID(ctx, outcome.ExecutionID)
	if err != nil {
		return fmt.Errorf("查询执行记录失败: %w", err)
	}
	if exec == nil {
		return storage.ErrNotFound
	}
	if exec.Status.IsTerminal() {
		// 取消是协作式的：已派发给运行时的动作其回调仍被接受并补记，
		// 只是不再派发后续动作；completed/failed的迟到回调直接忽略
		if exec.Status == workflow.StatusCancelled && outcome.ActionIndex == exec.ActionCursor {
			return e.recordLateOutcome(ctx, exec, outcome)
		}
		log.Printf("⚠️ 已终态执行的迟到回调已忽略: execution=%s", exec.ID)
		return nil
	}
	// 只认当前游标位置的结果，过期回调丢弃
	if outcome.ActionIndex != exec.ActionCursor {
		log.Printf("⚠️ 游标不匹配的回调已忽略: execution=%s index=%d cursor=%d",
			exec.ID, outcome.ActionIndex, exec.ActionCursor)
		return nil
	}

	if outcome.Success {
		if err := e.executions.UpdateProgress(ctx, exec.ID, exec.ActionCursor+1, 0, exec.Attempts, nil); err != nil {
			return err
		}
	} else {
		newCount := exec.AttemptCount + 1
		attempts := append(exec.Attempts, workflow.AttemptRecord{
			ActionIndex: exec.ActionCursor,
			Attempt:     newCount,
			Error:       outcome.ErrorMessage,
			At:          time.Now(),
		})
		if err := e.executions.UpdateProgress(ctx, exec.ID, exec.ActionCursor, newCount, attempts, nil); err != nil {
			return err
		}
		// 重试已耗尽时直接终止，不再拉起管理器重新派发
		if newCount > exec.RetryPolicy.MaxRetries {
			log.Printf("❌ 重试耗尽: execution=%s index=%d attempts=%d", exec.ID, exec.ActionCursor, newCount)
			if err := e.executions.MarkTerminal(ctx, exec.ID, workflow.StatusFailed,
				workflow.ErrCategoryDispatch, outcome.ErrorMessage, nil); err != nil {
				return err
			}
			e.publish(events.NewEvent(events.EventExecutionFailed, exec.ID, exec.WorkflowID).
				WithPayload("error", outcome.ErrorMessage))
			return nil
		}
	}
	e.startManager(exec.ID)
	return nil
}

// recordLateOutcome 补记已取消执行的迟到回调，状态与attempt_count保持不变
func (e *Engine) recordLateOutcome(ctx context.Context, exec *workflow.Execution, outcome *events.ActionOutcome) error {
	if outcome.Success {
		if exec.Result == nil {
			exec.Result = make(map[string]interface{})
		}
		if len(outcome.Result) > 0 {
			exec.Result[fmt.Sprintf("action_%d", outcome.ActionIndex)] = outcome.Result
		}
	} else {
		exec.Attempts = append(exec.Attempts, workflow.AttemptRecord{
			ActionIndex: outcome.ActionIndex,
			Attempt:     exec.AttemptCount + 1,
			Error:       outcome.ErrorMessage,
			At:          time.Now(),
		})
	}
	if err := e.executions.RecordLateOutcome(ctx, exec.ID, exec.Result, exec.Attempts); err != nil {
		return fmt.Errorf("补记迟到回调失败: %w", err)
	}
	log.Printf("📎 已取消执行的迟到回调已补记: execution=%s index=%d success=%v",
		exec.ID, outcome.ActionIndex, outcome.Success)
	return nil
}

// SubscribeOutcomes 持续消费事件总线上的动作结果直到ctx取消
// 在独立goroutine中运行，使本地处理器与外部回调共享同一条消费路径
func (e *Engine) SubscribeOutcomes(ctx context.Context) error {
	ch, err := e.bus.SubscribeOutcomes(ctx)
	if err != nil {
		return err
	}
	go func() {
		for outcome := range ch {
			if err := e.HandleActionOutcome(ctx, outcome); err != nil {
				log.Printf("❌ 处理动作结果失败: execution=%s: %v", outcome.ExecutionID, err)
			}
		}
	}()
	return nil
}

// startManager 为一个Execution拉起管理器goroutine
// 同一Execution已有管理器时跳过
func (e *Engine) startManager(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	if _, exists := e.managers[executionID]; exists {
		return
	}

	m := newExecutionManager(e, executionID)
	e.managers[executionID] = m
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.removeManager(executionID)
		m.run(e.ctx)
	}()
}

func (e *Engine) removeManager(executionID string) {
	e.mu.Lock()
	delete(e.managers, executionID)
	e.mu.Unlock()
}

// publish 发布执行事件，失败仅记录日志不阻断执行
func (e *Engine) publish(ev *events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishEvent(ev); err != nil {
		log.Printf("⚠️ 发布事件失败: type=%s execution=%s: %v", ev.Type, ev.ExecutionID, err)
	}
}
