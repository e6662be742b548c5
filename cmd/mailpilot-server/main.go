package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stevelan1995/mailpilot/internal/app"
	"github.com/stevelan1995/mailpilot/pkg/api"
	"github.com/stevelan1995/mailpilot/pkg/config"
)

var (
	Version   = "0.3.1"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "./configs/mailpilot.yaml", "服务配置文件路径")
	host := flag.String("host", "0.0.0.0", "监听地址")
	port := flag.Int("port", 0, "监听端口（覆盖配置文件）")
	flag.Parse()

	log.Printf("Mailpilot Server v%s", Version)
	log.Printf("配置文件: %s", *configPath)

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *port > 0 {
		cfg.HTTPPort = *port
	}

	// 2. 装配并启动服务
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("装配服务失败: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.Fatalf("启动服务失败: %v", err)
	}

	// 3. 创建API服务器
	serverConfig := api.ServerConfig{
		Host:         *host,
		Port:         cfg.HTTPPort,
		ReadTimeout:  api.DefaultServerConfig().ReadTimeout,
		WriteTimeout: api.DefaultServerConfig().WriteTimeout,
	}
	apiServer := api.NewAPIServer(application.RouterDeps(Version), serverConfig)

	// 4. 在goroutine中启动API服务器
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API服务器错误: %v", err)
		}
	}()

	log.Printf("✅ Mailpilot Server started on %s:%d", *host, cfg.HTTPPort)

	// 5. 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 6. 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultServerConfig().WriteTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭API服务器失败: %v", err)
	}

	application.Stop()
	log.Println("✅ 服务已停止")
}
