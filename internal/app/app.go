// Package app 按配置装配服务的所有组件
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	istorage "github.com/stevelan1995/mailpilot/internal/storage"
	"github.com/stevelan1995/mailpilot/pkg/api"
	"github.com/stevelan1995/mailpilot/pkg/config"
	"github.com/stevelan1995/mailpilot/pkg/core/action"
	"github.com/stevelan1995/mailpilot/pkg/core/classifier"
	"github.com/stevelan1995/mailpilot/pkg/core/engine"
	"github.com/stevelan1995/mailpilot/pkg/core/events"
	"github.com/stevelan1995/mailpilot/pkg/core/webhook"
)

// App 组装完成的服务实例（对外导出）
type App struct {
	Config    *config.Config
	Repos     *istorage.Repositories
	Bus       *events.Bus
	Engine    *engine.Engine
	Scheduler *engine.Scheduler
	Gateway   *webhook.Gateway
}

// New 从配置装配服务（对外导出的工厂方法）
func New(cfg *config.Config) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	repos, err := istorage.NewRepositories(cfg.Storage.Driver, cfg.Storage.DSN,
		cfg.Storage.MaxOpenConns, cfg.Storage.MaxIdleConns)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()

	// 动作处理器注册
	registry := action.NewRegistry()
	var mailer action.Mailer
	if cfg.SMTP.Host != "" {
		mailer, err = action.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		if err != nil {
			repos.Close()
			return nil, fmt.Errorf("创建SMTP发送器失败: %w", err)
		}
	} else {
		log.Printf("⚠️ 未配置SMTP，自动回复将使用日志发送器")
		mailer = &action.LogMailer{}
	}
	registry.Register(action.NewAutoReplyHandler(mailer, cfg.SMTP.From))
	registry.Register(action.NewNotifyHandler(&action.LogNotifier{}))
	registry.Register(action.NewCreateTicketHandler())
	registry.Register(action.NewCategorizeEmailHandler(repos.Emails))

	// 外部运行时客户端（未配置时外部动作直接致命失败）
	var runtime action.RuntimeDispatcher
	if cfg.Webhook.RuntimeURL != "" {
		runtime = action.NewRuntimeClient(cfg.Webhook.RuntimeURL, cfg.Webhook.RuntimeSecret)
	}

	eng := engine.New(repos.Workflows, repos.Executions, repos.Emails, registry, runtime, bus, engine.Options{
		CallbackTimeout: time.Duration(cfg.Engine.CallbackTimeoutSeconds) * time.Second,
	})
	scheduler := engine.NewScheduler(eng, repos.Workflows)

	clsCfg := cfg.Classifier
	if len(clsCfg.Categories) == 0 {
		clsCfg = classifier.DefaultConfig()
	}
	gateway := webhook.NewGateway(
		cfg.Webhook.RuntimeSecret,
		cfg.Webhook.MailSecret,
		classifier.New(clsCfg),
		repos.Emails,
		repos.WebhookEvents,
		eng,
		eng,
	)

	return &App{
		Config:    cfg,
		Repos:     repos,
		Bus:       bus,
		Engine:    eng,
		Scheduler: scheduler,
		Gateway:   gateway,
	}, nil
}

// Start 启动引擎、调度器与结果订阅（对外导出）
func (a *App) Start(ctx context.Context) error {
	if err := a.Engine.Start(ctx); err != nil {
		return err
	}
	if err := a.Engine.SubscribeOutcomes(ctx); err != nil {
		return err
	}
	return a.Scheduler.Start(ctx)
}

// Stop 按依赖反序停止所有组件（对外导出）
func (a *App) Stop() {
	a.Scheduler.Stop()
	a.Engine.Stop()
	if err := a.Bus.Close(); err != nil {
		log.Printf("⚠️ 关闭事件总线失败: %v", err)
	}
	if err := a.Repos.Close(); err != nil {
		log.Printf("⚠️ 关闭数据库失败: %v", err)
	}
}

// RouterDeps 构建API路由依赖（对外导出）
func (a *App) RouterDeps(version string) api.RouterDeps {
	return api.RouterDeps{
		Engine:    a.Engine,
		Scheduler: a.Scheduler,
		Gateway:   a.Gateway,
		Bus:       a.Bus,
		Repos:     a.Repos,
		Version:   version,
		RateRPS:   a.Config.RateLimit.RPS,
		RateBurst: a.Config.RateLimit.Burst,
	}
}
