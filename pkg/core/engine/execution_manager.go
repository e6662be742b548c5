package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/events"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// executionManager 单个Execution的执行管理器
// 顺序推进动作列表，每一步都先落库再前进，
// 崩溃后可从持久化的游标处恢复
type executionManager struct {
	engine *Engine
	execID string

	callbackCh chan *events.ActionOutcome
	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func newExecutionManager(e *Engine, execID string) *executionManager {
	return &executionManager{
		engine:     e,
		execID:     execID,
		callbackCh: make(chan *events.ActionOutcome, 4),
		cancelCh:   make(chan struct{}),
	}
}

// requestCancel 请求取消（幂等）
func (m *executionManager) requestCancel() {
	m.cancelOnce.Do(func() {
		close(m.cancelCh)
	})
}

// deliver 投递一条外部回调结果；管理器未在等待时丢弃
func (m *executionManager) deliver(outcome *events.ActionOutcome) {
	select {
	case m.callbackCh <- outcome:
	default:
		log.Printf("⚠️ 管理器未在等待，回调已丢弃: execution=%s index=%d", m.execID, outcome.ActionIndex)
	}
}

// run 执行主循环
func (m *executionManager) run(ctx context.Context) {
	e := m.engine

	exec, err := e.executions.GetByID(ctx, m.execID)
	if err != nil || exec == nil {
		log.Printf("❌ 加载执行记录失败: execution=%s: %v", m.execID, err)
		return
	}
	if exec.Status.IsTerminal() {
		return
	}

	if exec.Status == workflow.StatusPending {
		if err := e.executions.MarkRunning(ctx, exec.ID); err != nil {
			// 并发取消等场景，pending守卫未命中则直接退出
			log.Printf("⚠️ 执行未能进入running: execution=%s: %v", exec.ID, err)
			return
		}
		exec.Status = workflow.StatusRunning
		e.publish(events.NewEvent(events.EventExecutionStarted, exec.ID, exec.WorkflowID))
	}

	// 手动/定时触发时email为nil，动作处理器自行兜底
	var email *workflow.Email
	if exec.EmailID != "" {
		email, err = e.emails.GetByID(ctx, exec.EmailID)
		if err != nil {
			log.Printf("⚠️ 加载触发邮件失败: execution=%s email=%s: %v", exec.ID, exec.EmailID, err)
		}
	}

	// 恢复场景：退避/延迟的等待时间已落库，先补足剩余等待
	if exec.NextEligibleAt != nil {
		if wait := time.Until(*exec.NextEligibleAt); wait > 0 {
			if !m.sleep(ctx, wait) {
				m.finish(ctx, exec, workflow.StatusCancelled, "", "所有者取消", nil)
				return
			}
		}
	}

	if exec.Result == nil {
		exec.Result = make(map[string]interface{})
	}

	for !exec.Finished() {
		select {
		case <-m.cancelCh:
			m.finish(ctx, exec, workflow.StatusCancelled, "", "所有者取消", nil)
			return
		case <-ctx.Done():
			// 进程退出，留在running状态等待下次启动恢复
			return
		default:
		}

		act, _ := exec.CurrentAction()

		// 动作级延迟只在首次尝试前生效，重试由退避逻辑负责
		if exec.AttemptCount == 0 && act.DelayMinutes > 0 && exec.NextEligibleAt == nil {
			eligible := time.Now().Add(time.Duration(act.DelayMinutes) * e.opts.DelayUnit)
			exec.NextEligibleAt = &eligible
			if err := e.executions.UpdateProgress(ctx, exec.ID, exec.ActionCursor, exec.AttemptCount, exec.Attempts, exec.NextEligibleAt); err != nil {
				log.Printf("❌ 持久化延迟断点失败: execution=%s: %v", exec.ID, err)
				return
			}
			if !m.sleep(ctx, time.Until(eligible)) {
				m.finish(ctx, exec, workflow.StatusCancelled, "", "所有者取消", nil)
				return
			}
		}
		exec.NextEligibleAt = nil

		// 重读行确认游标未被并发推进（如重启后回调先行应用）
		fresh, err := e.executions.GetByID(ctx, exec.ID)
		if err != nil || fresh == nil {
			log.Printf("❌ 重读执行记录失败: execution=%s: %v", exec.ID, err)
			return
		}
		if fresh.Status.IsTerminal() {
			return
		}
		if fresh.ActionCursor != exec.ActionCursor {
			exec = fresh
			continue
		}

		result, actErr := m.dispatch(ctx, act, exec, email)
		if actErr == nil {
			m.advance(ctx, exec, result)
			continue
		}
		if done := m.handleFailure(ctx, exec, act, actErr); done {
			return
		}
	}

	m.finish(ctx, exec, workflow.StatusCompleted, "", "", exec.Result)
}

// dispatch 执行当前动作
// 本地动作同步调用处理器；外部动作转发给运行时后等待回调
func (m *executionManager) dispatch(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error) {
	e := m.engine

	if !act.IsExternal() {
		return e.registry.Execute(ctx, act, exec, email)
	}

	if e.runtime == nil {
		return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "未配置外部运行时"}
	}
	if err := e.runtime.Dispatch(ctx, exec, act); err != nil {
		return nil, err
	}

	timer := time.NewTimer(e.opts.CallbackTimeout)
	defer timer.Stop()
	for {
		select {
		case outcome := <-m.callbackCh:
			// 过期游标的回调丢弃，继续等待
			if outcome.ActionIndex != exec.ActionCursor {
				continue
			}
			if outcome.Success {
				return outcome.Result, nil
			}
			return nil, &workflow.DispatchError{
				ActionType: act.Type,
				Err:        fmt.Errorf("运行时上报失败: %s", outcome.ErrorMessage),
			}
		case <-timer.C:
			return nil, &workflow.TimeoutError{ActionType: act.Type, Timeout: e.opts.CallbackTimeout}
		case <-m.cancelCh:
			return nil, context.Canceled
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// advance 动作成功后推进游标并落库
func (m *executionManager) advance(ctx context.Context, exec *workflow.Execution, result map[string]interface{}) {
	e := m.engine

	if len(result) > 0 {
		exec.Result[fmt.Sprintf("action_%d", exec.ActionCursor)] = result
	}
	idx := exec.ActionCursor
	exec.ActionCursor++
	exec.AttemptCount = 0

	if err := e.executions.UpdateProgress(ctx, exec.ID, exec.ActionCursor, 0, exec.Attempts, nil); err != nil {
		log.Printf("❌ 持久化执行进度失败: execution=%s: %v", exec.ID, err)
		return
	}
	e.publish(events.NewEvent(events.EventActionCompleted, exec.ID, exec.WorkflowID).
		WithPayload("action_index", idx))
}

// handleFailure 处理一次动作失败，返回true表示执行已结束
// 致命错误与取消立即终止；瞬时错误按重试策略退避，
// 第R+1次失败后整条执行转为failed
func (m *executionManager) handleFailure(ctx context.Context, exec *workflow.Execution, act workflow.Action, actErr error) bool {
	e := m.engine

	if actErr == context.Canceled {
		m.finish(ctx, exec, workflow.StatusCancelled, "", "所有者取消", nil)
		return true
	}
	if ctx.Err() != nil {
		return true
	}

	exec.AttemptCount++
	exec.Attempts = append(exec.Attempts, workflow.AttemptRecord{
		ActionIndex: exec.ActionCursor,
		Attempt:     exec.AttemptCount,
		Error:       actErr.Error(),
		At:          time.Now(),
	})
	e.publish(events.NewEvent(events.EventActionFailed, exec.ID, exec.WorkflowID).
		WithPayload("action_index", exec.ActionCursor).
		WithPayload("attempt", exec.AttemptCount).
		WithPayload("error", actErr.Error()))

	if !workflow.IsRetryable(actErr) {
		log.Printf("❌ 动作致命失败: execution=%s index=%d: %v", exec.ID, exec.ActionCursor, actErr)
		m.persistAttempts(ctx, exec)
		m.finish(ctx, exec, workflow.StatusFailed, workflow.CategoryOf(actErr), actErr.Error(), nil)
		return true
	}

	if exec.AttemptCount > exec.RetryPolicy.MaxRetries {
		log.Printf("❌ 重试耗尽: execution=%s index=%d attempts=%d", exec.ID, exec.ActionCursor, exec.AttemptCount)
		m.persistAttempts(ctx, exec)
		m.finish(ctx, exec, workflow.StatusFailed, workflow.CategoryOf(actErr), actErr.Error(), nil)
		return true
	}

	backoff := m.backoffDelay(exec.RetryPolicy, exec.AttemptCount)
	eligible := time.Now().Add(backoff)
	exec.NextEligibleAt = &eligible
	if err := e.executions.UpdateProgress(ctx, exec.ID, exec.ActionCursor, exec.AttemptCount, exec.Attempts, exec.NextEligibleAt); err != nil {
		log.Printf("❌ 持久化重试断点失败: execution=%s: %v", exec.ID, err)
		return true
	}
	log.Printf("🔁 动作将重试: execution=%s index=%d attempt=%d backoff=%v",
		exec.ID, exec.ActionCursor, exec.AttemptCount, backoff)

	if !m.sleep(ctx, backoff) {
		m.finish(ctx, exec, workflow.StatusCancelled, "", "所有者取消", nil)
		return true
	}
	exec.NextEligibleAt = nil
	return false
}

// backoffDelay 计算第attempt次失败后的退避时长
// fixed为固定间隔；exponential按2的幂增长，秒数上限3600
func (m *executionManager) backoffDelay(policy workflow.RetryPolicy, attempt int) time.Duration {
	seconds := float64(policy.RetryDelaySeconds)
	if policy.Backoff == workflow.BackoffExponential && attempt > 1 {
		seconds *= math.Pow(2, float64(attempt-1))
	}
	if seconds > 3600 {
		seconds = 3600
	}
	return time.Duration(seconds) * m.engine.opts.RetryUnit
}

// persistAttempts 终态写入前落库最后一次失败的尝试记录
// 终态行只记录error_category/error_message，完整尝试历史必须在此之前入库
func (m *executionManager) persistAttempts(ctx context.Context, exec *workflow.Execution) {
	e := m.engine
	if err := e.executions.UpdateProgress(ctx, exec.ID, exec.ActionCursor, exec.AttemptCount, exec.Attempts, nil); err != nil {
		log.Printf("❌ 持久化尝试记录失败: execution=%s: %v", exec.ID, err)
	}
}

// sleep 可被取消的等待；返回false表示收到取消信号
func (m *executionManager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.cancelCh:
		return false
	case <-ctx.Done():
		// 进程退出按正常等待处理，断点已落库
		return true
	}
}

// finish 转入终态并发布对应事件
func (m *executionManager) finish(ctx context.Context, exec *workflow.Execution, status workflow.ExecutionStatus, errCategory, errMessage string, result map[string]interface{}) {
	e := m.engine

	if err := e.executions.MarkTerminal(ctx, exec.ID, status, errCategory, errMessage, result); err != nil {
		if err != storage.ErrTerminalState {
			log.Printf("❌ 写入终态失败: execution=%s status=%s: %v", exec.ID, status, err)
		}
		return
	}

	var evType events.Type
	switch status {
	case workflow.StatusCompleted:
		evType = events.EventExecutionCompleted
		log.Printf("✅ 执行完成: execution=%s workflow=%s", exec.ID, exec.WorkflowID)
	case workflow.StatusFailed:
		evType = events.EventExecutionFailed
	case workflow.StatusCancelled:
		evType = events.EventExecutionCancelled
		log.Printf("🛑 执行已取消: execution=%s", exec.ID)
	default:
		return
	}
	ev := events.NewEvent(evType, exec.ID, exec.WorkflowID)
	if errMessage != "" && status == workflow.StatusFailed {
		ev.WithPayload("error_category", errCategory).WithPayload("error_message", errMessage)
	}
	e.publish(ev)
}
