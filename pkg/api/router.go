package api

import (
	"github.com/gin-gonic/gin"

	"github.com/stevelan1995/mailpilot/pkg/api/handler"
	"github.com/stevelan1995/mailpilot/pkg/api/middleware"
	"github.com/stevelan1995/mailpilot/pkg/core/engine"
	"github.com/stevelan1995/mailpilot/pkg/core/events"
	"github.com/stevelan1995/mailpilot/pkg/core/webhook"

	istorage "github.com/stevelan1995/mailpilot/internal/storage"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Engine    *engine.Engine
	Scheduler *engine.Scheduler
	Gateway   *webhook.Gateway
	Bus       *events.Bus
	Repos     *istorage.Repositories
	Version   string
	// 入站接口限流参数
	RateRPS   float64
	RateBurst int
}

// SetupRouter 设置路由
func SetupRouter(deps RouterDeps) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	// 创建handlers
	workflowHandler := handler.NewWorkflowHandler(deps.Repos.Workflows, deps.Engine, deps.Scheduler)
	executionHandler := handler.NewExecutionHandler(deps.Repos.Executions, deps.Engine)
	emailHandler := handler.NewEmailHandler(deps.Gateway)
	webhookHandler := handler.NewWebhookHandler(deps.Gateway)
	eventsHandler := handler.NewEventsHandler(deps.Bus)
	healthHandler := handler.NewHealthHandler(deps.Version)

	// 外部可直接打到的入站接口单独限流
	inboundLimit := middleware.RateLimit(deps.RateRPS, deps.RateBurst)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		// Workflow路由
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", workflowHandler.List)
			workflows.POST("", workflowHandler.Create)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.PUT("/:id", workflowHandler.Update)
			workflows.DELETE("/:id", workflowHandler.Delete)
			workflows.POST("/:id/execute", workflowHandler.Execute)
		}

		// Execution路由
		executions := v1.Group("/executions")
		{
			executions.GET("", executionHandler.List)
			executions.GET("/:id", executionHandler.Get)
			executions.POST("/:id/cancel", executionHandler.Cancel)
		}

		// 入站邮件路由
		v1.POST("/emails/inbound", inboundLimit, emailHandler.Inbound)

		// Webhook路由
		webhooks := v1.Group("/webhooks", inboundLimit)
		{
			webhooks.POST("/runtime", webhookHandler.Runtime)
			webhooks.POST("/mail", webhookHandler.Mail)
		}

		// 事件流路由
		v1.GET("/events/ws", eventsHandler.Stream)
	}

	return router
}
