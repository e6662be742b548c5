package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/core/engine"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// ExecutionHandler Execution API处理器
// Execution对所有者只读，唯一的写入口是取消
type ExecutionHandler struct {
	executions storage.ExecutionRepository
	engine     *engine.Engine
}

// NewExecutionHandler 创建ExecutionHandler
func NewExecutionHandler(executions storage.ExecutionRepository, eng *engine.Engine) *ExecutionHandler {
	return &ExecutionHandler{
		executions: executions,
		engine:     eng,
	}
}

// List 列出Execution
// GET /api/v1/executions
func (h *ExecutionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.ListQueryRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("查询参数无效: %v", err)))
		return
	}

	execs, total, err := h.executions.List(ctx, storage.ExecutionFilter{
		WorkflowID: query.WorkflowID,
		OwnerID:    query.OwnerID,
		Status:     workflow.ExecutionStatus(query.Status),
		Limit:      query.GetDefaultLimit(),
		Offset:     query.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询执行记录失败: %v", err)))
		return
	}

	items := make([]dto.ExecutionView, 0, len(execs))
	for _, exec := range execs {
		items = append(items, dto.NewExecutionView(exec))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.ExecutionView]{
		Total:   total,
		Items:   items,
		HasMore: query.Offset+len(items) < total,
	}))
}

// Get 获取Execution详情
// GET /api/v1/executions/:id
func (h *ExecutionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	exec, err := h.executions.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("查询执行记录失败: %v", err)))
		return
	}
	if exec == nil {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "执行记录不存在"))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewExecutionView(exec)))
}

// Cancel 取消Execution
// POST /api/v1/executions/:id/cancel
func (h *ExecutionHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.engine.Cancel(ctx, id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, dto.NewErrorResponse(404, "执行记录不存在"))
		case errors.Is(err, storage.ErrTerminalState):
			c.JSON(http.StatusConflict, dto.NewErrorResponse(409, "执行已结束，无法取消"))
		default:
			c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("取消执行失败: %v", err)))
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(map[string]string{
		"id":      id,
		"message": "取消请求已接受",
	}))
}
