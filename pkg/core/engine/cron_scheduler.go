package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// Scheduler 定时触发调度器（对外导出）
// 为每个schedule类型的激活Workflow注册一个cron任务，
// 到点后通过Engine创建Execution
type Scheduler struct {
	engine    *Engine
	workflows storage.WorkflowRepository
	cron      *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID // workflowID → cron条目
}

// NewScheduler 创建调度器（对外导出的工厂方法）
func NewScheduler(e *Engine, workflows storage.WorkflowRepository) *Scheduler {
	return &Scheduler{
		engine:    e,
		workflows: workflows,
		cron:      cron.New(cron.WithSeconds()),
		entries:   make(map[string]cron.EntryID),
	}
}

// Start 加载已有的schedule工作流并启动调度（对外导出）
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("⏰ 定时调度器启动")
	return nil
}

// Stop 停止调度器，等待进行中的触发完成（对外导出）
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Printf("✅ 定时调度器已停止")
}

// Reload 全量重载schedule工作流的注册（对外导出）
// Workflow增删改后调用，保证调度表与存储一致
func (s *Scheduler) Reload(ctx context.Context) error {
	active := true
	wfs, _, err := s.workflows.List(ctx, storage.WorkflowFilter{
		TriggerType: string(workflow.TriggerSchedule),
		Active:      &active,
		Limit:       1000,
	})
	if err != nil {
		return fmt.Errorf("查询定时工作流失败: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	for _, wf := range wfs {
		if err := s.register(wf); err != nil {
			log.Printf("⚠️ 注册定时工作流失败: workflow=%s: %v", wf.ID, err)
		}
	}
	log.Printf("✅ 定时调度表已重载: %d 个工作流", len(s.entries))
	return nil
}

// ValidateSchedule 校验cron表达式（对外导出）
// 支持秒级精度的6字段表达式
func ValidateSchedule(expr string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		return &workflow.ValidationError{Field: "schedule", Reason: fmt.Sprintf("cron表达式无效: %v", err)}
	}
	return nil
}

// register 注册单个工作流的cron任务（调用方持锁）
func (s *Scheduler) register(wf *workflow.Workflow) error {
	workflowID := wf.ID
	entryID, err := s.cron.AddFunc(wf.Schedule, func() {
		s.fire(workflowID)
	})
	if err != nil {
		return fmt.Errorf("解析cron表达式失败: %w", err)
	}
	s.entries[workflowID] = entryID
	return nil
}

// fire 到点触发一次执行
// 每次触发前重读Workflow，停用或删除后不再创建Execution
func (s *Scheduler) fire(workflowID string) {
	ctx := context.Background()
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		log.Printf("❌ 定时触发查询工作流失败: workflow=%s: %v", workflowID, err)
		return
	}
	if wf == nil || !wf.Active {
		return
	}
	if _, err := s.engine.ExecuteScheduled(ctx, wf); err != nil {
		log.Printf("❌ 定时触发失败: workflow=%s: %v", workflowID, err)
	}
}
