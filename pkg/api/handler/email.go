package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/core/webhook"
)

// EmailHandler 入站邮件API处理器
type EmailHandler struct {
	gateway *webhook.Gateway
}

// NewEmailHandler 创建EmailHandler
func NewEmailHandler(gw *webhook.Gateway) *EmailHandler {
	return &EmailHandler{gateway: gw}
}

// Inbound 直接投递一封入站邮件
// POST /api/v1/emails/inbound
// 分类、落库并触发匹配的Workflow，一步完成
func (h *EmailHandler) Inbound(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.InboundEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("请求体无效: %v", err)))
		return
	}

	email, ids, err := h.gateway.IngestEmail(ctx, req.OwnerID, req.From, req.Subject, req.Body, req.ReceivedAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, fmt.Sprintf("处理入站邮件失败: %v", err)))
		return
	}
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.InboundEmailResponse{
		Email:        dto.NewEmailView(email),
		ExecutionIDs: ids,
	}))
}
