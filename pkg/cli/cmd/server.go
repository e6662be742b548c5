package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/mailpilot/internal/app"
	"github.com/stevelan1995/mailpilot/pkg/api"
	"github.com/stevelan1995/mailpilot/pkg/cli/output"
	"github.com/stevelan1995/mailpilot/pkg/config"
)

var (
	serverPort int
	serverHost string
	configPath string
)

// serverCmd server子命令
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "服务管理命令",
	Long:  `管理Mailpilot HTTP API服务。`,
}

// serverStartCmd 启动服务
var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动HTTP API服务",
	Long: `启动Mailpilot HTTP API服务。

示例：
  # 使用默认配置启动
  mailpilot server start

  # 指定端口启动
  mailpilot server start --port 8080

  # 指定配置文件启动
  mailpilot server start --config ./configs/mailpilot.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			// 尝试默认配置路径
			defaultPaths := []string{
				"./configs/mailpilot.yaml",
				"./config/mailpilot.yaml",
				"./mailpilot.yaml",
			}
			for _, p := range defaultPaths {
				if _, err := os.Stat(p); err == nil {
					configPath = p
					break
				}
			}
		}
		if configPath != "" {
			output.Info("使用配置文件: %s", configPath)
		} else {
			output.Warning("未找到配置文件，使用默认配置")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			output.Error("加载配置失败: %v", err)
			return err
		}
		if serverPort > 0 {
			cfg.HTTPPort = serverPort
		}

		application, err := app.New(cfg)
		if err != nil {
			output.Error("装配服务失败: %v", err)
			return err
		}

		ctx := context.Background()
		if err := application.Start(ctx); err != nil {
			output.Error("启动服务失败: %v", err)
			return err
		}

		serverConfig := api.ServerConfig{
			Host:         serverHost,
			Port:         cfg.HTTPPort,
			ReadTimeout:  api.DefaultServerConfig().ReadTimeout,
			WriteTimeout: api.DefaultServerConfig().WriteTimeout,
		}
		apiServer := api.NewAPIServer(application.RouterDeps(Version), serverConfig)

		// 在goroutine中启动服务器
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("API服务器错误: %v", err)
			}
		}()

		output.Success("Mailpilot Server started on %s:%d", serverHost, cfg.HTTPPort)

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		output.Info("正在关闭服务...")

		// 优雅关闭
		shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultServerConfig().WriteTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			output.Error("关闭API服务器失败: %v", err)
		}

		application.Stop()
		output.Success("服务已停止")

		return nil
	},
}

func init() {
	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "监听端口（覆盖配置文件）")
	serverStartCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "监听地址")
	serverStartCmd.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	serverCmd.AddCommand(serverStartCmd)
}
