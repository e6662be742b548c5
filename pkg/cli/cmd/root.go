// Package cmd Mailpilot CLI命令定义
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	serverURL  string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "mailpilot",
	Short: "Mailpilot CLI - 邮件工作流自动化命令行工具",
	Long: `Mailpilot CLI 是一个用于管理邮件触发工作流的命令行工具。

支持的功能：
  - 管理Workflow（创建、列出、查看、删除、手动执行）
  - 查询Execution（列出、查看状态、取消）
  - 投递测试邮件并观察触发结果
  - 启动HTTP API服务

使用示例：
  # 列出所有Workflow
  mailpilot workflow list

  # 手动执行Workflow
  mailpilot workflow execute <workflow-id>

  # 查看Execution状态
  mailpilot execution show <execution-id>

  # 启动HTTP服务
  mailpilot server start --port 8080`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Mailpilot服务器地址")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	// 添加子命令
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(executionCmd)
	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}
