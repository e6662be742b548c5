package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/core/engine"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// WorkflowHandler Workflow API处理器
type WorkflowHandler struct {
	workflows storage.WorkflowRepository
	engine    *engine.Engine
	scheduler *engine.Scheduler
}

// NewWorkflowHandler 创建WorkflowHandler
func NewWorkflowHandler(workflows storage.WorkflowRepository, eng *engine.Engine, scheduler *engine.Scheduler) *WorkflowHandler {
	return &WorkflowHandler{
		workflows: workflows,
		engine:    eng,
		scheduler: scheduler,
	}
}

// List 列出Workflow
// GET /api/v1/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.ListQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数无效: %v", err)))
		return
	}

	wfs, total, err := h.workflows.List(ctx, storage.WorkflowFilter{
		OwnerID:     query.OwnerID,
		Active:      query.Active,
		TriggerType: query.TriggerType,
		Category:    query.Category,
		Limit:       query.GetDefaultLimit(),
		Offset:      query.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询Workflow失败: %v", err)))
		return
	}

	items := make([]dto.WorkflowView, 0, len(wfs))
	for _, wf := range wfs {
		items = append(items, dto.NewWorkflowView(wf))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.WorkflowView]{
		Total:   total,
		Items:   items,
		HasMore: query.Offset+len(items) < total,
	}))
}

// Create 创建Workflow
// POST /api/v1/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求体无效: %v", err)))
		return
	}

	wf := workflow.NewWorkflow(req.OwnerID, req.Name, req.Description)
	wf.TriggerType = workflow.TriggerType(req.TriggerType)
	wf.TriggerConditions = req.TriggerConditions
	wf.Actions = req.Actions
	wf.Schedule = req.Schedule
	if req.Active != nil {
		wf.Active = *req.Active
	}
	if req.RetryPolicy != nil {
		wf.RetryPolicy = *req.RetryPolicy
	}

	if err := h.validate(wf); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(422, err.Error()))
		return
	}
	if err := h.workflows.Save(ctx, wf); err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("保存Workflow失败: %v", err)))
		return
	}
	h.reloadSchedules(c)

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewWorkflowView(wf)))
}

// Get 获取Workflow详情
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询Workflow失败: %v", err)))
		return
	}
	if wf == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewWorkflowView(wf)))
}

// Update 更新Workflow
// PUT /api/v1/workflows/:id
// 已触发的Execution按其快照继续，不受更新影响
func (h *WorkflowHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req dto.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求体无效: %v", err)))
		return
	}

	wf, err := h.workflows.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询Workflow失败: %v", err)))
		return
	}
	if wf == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
		return
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}
	if req.Description != nil {
		wf.Description = *req.Description
	}
	if req.TriggerType != nil {
		wf.TriggerType = workflow.TriggerType(*req.TriggerType)
	}
	if req.TriggerConditions != nil {
		wf.TriggerConditions = *req.TriggerConditions
	}
	if req.Actions != nil {
		wf.Actions = *req.Actions
	}
	if req.Schedule != nil {
		wf.Schedule = *req.Schedule
	}
	if req.Active != nil {
		wf.Active = *req.Active
	}
	if req.RetryPolicy != nil {
		wf.RetryPolicy = *req.RetryPolicy
	}
	wf.UpdateTime = time.Now()

	if err := h.validate(wf); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(422, err.Error()))
		return
	}
	if err := h.workflows.Update(ctx, wf); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("更新Workflow失败: %v", err)))
		return
	}
	h.reloadSchedules(c)

	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewWorkflowView(wf)))
}

// Delete 删除Workflow
// DELETE /api/v1/workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.workflows.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
		case errors.Is(err, storage.ErrWorkflowHasActiveExecutions):
			c.JSON(http.StatusConflict, dto.NewErrorResponse(409, "存在进行中的执行，无法删除"))
		default:
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("删除Workflow失败: %v", err)))
		}
		return
	}
	h.reloadSchedules(c)

	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]string{"id": id}))
}

// Execute 手动触发执行
// POST /api/v1/workflows/:id/execute
func (h *WorkflowHandler) Execute(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req dto.ExecuteWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求体无效: %v", err)))
		return
	}

	exec, err := h.engine.ExecuteManual(ctx, id, req.TriggerData)
	if err != nil {
		var ve *workflow.ValidationError
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "Workflow不存在"))
		case errors.As(err, &ve):
			c.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(422, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("触发执行失败: %v", err)))
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(dto.ExecuteResponse{
		ExecutionID: exec.ID,
		Message:     "执行已创建",
	}))
}

// validate 领域校验加cron表达式校验
func (h *WorkflowHandler) validate(wf *workflow.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	if wf.TriggerType == workflow.TriggerSchedule {
		return engine.ValidateSchedule(wf.Schedule)
	}
	return nil
}

// reloadSchedules Workflow变更后刷新定时调度表
func (h *WorkflowHandler) reloadSchedules(c *gin.Context) {
	if h.scheduler == nil {
		return
	}
	if err := h.scheduler.Reload(c.Request.Context()); err != nil {
		// 调度表刷新失败不影响本次写入，仅记录
		_ = c.Error(err)
	}
}
