package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/core/webhook"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// 回调请求体大小上限
const maxWebhookBody = 1 << 20

// WebhookHandler Webhook API处理器
type WebhookHandler struct {
	gateway *webhook.Gateway
}

// NewWebhookHandler 创建WebhookHandler
func NewWebhookHandler(gw *webhook.Gateway) *WebhookHandler {
	return &WebhookHandler{gateway: gw}
}

// Runtime 外部运行时结果回调
// POST /api/v1/webhooks/runtime
func (h *WebhookHandler) Runtime(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "读取请求体失败"))
		return
	}

	duplicate, err := h.gateway.HandleRuntimeCallback(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.WebhookAckResponse{
		Accepted:  true,
		Duplicate: duplicate,
	}))
}

// Mail 邮件提供商入站推送
// POST /api/v1/webhooks/mail
func (h *WebhookHandler) Mail(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, "读取请求体失败"))
		return
	}

	email, ids, duplicate, err := h.gateway.HandleInboundEmail(c.Request.Context(), body, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if duplicate {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.WebhookAckResponse{
			Accepted:  true,
			Duplicate: true,
		}))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.InboundEmailResponse{
		Email:        dto.NewEmailView(email),
		ExecutionIDs: ids,
	}))
}

// writeError 将网关错误映射到HTTP状态码
// 验签失败统一401，其余按请求/服务端错误区分
func (h *WebhookHandler) writeError(c *gin.Context, err error) {
	var se *workflow.SignatureError
	if errors.As(err, &se) {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(401, err.Error()))
		return
	}
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf("处理回调失败: %v", err)))
}
