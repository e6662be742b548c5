package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/cli/mailpilot"
	"github.com/stevelan1995/mailpilot/pkg/cli/output"
)

var (
	workflowOwnerID string
	workflowLimit   int
	workflowOffset  int
)

// workflowCmd workflow子命令
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Workflow管理命令",
	Long:  `管理Workflow，包括创建、列出、查看、删除和手动执行。`,
}

// workflowListCmd 列出Workflow
var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有Workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		result, err := client.ListWorkflows(workflowOwnerID, workflowLimit, workflowOffset)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		if len(result.Items) == 0 {
			output.Info("暂无Workflow")
			return nil
		}

		table := output.NewTable("ID", "NAME", "TRIGGER", "ACTIONS", "ACTIVE", "CREATED")
		for _, wf := range result.Items {
			active := "yes"
			if !wf.Active {
				active = "no"
			}
			table.AddRow(
				wf.ID,
				wf.Name,
				wf.TriggerType,
				fmt.Sprintf("%d", len(wf.Actions)),
				active,
				wf.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		table.Render()
		return nil
	},
}

// workflowShowCmd 查看Workflow详情
var workflowShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "查看Workflow详情",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		result, err := client.GetWorkflow(args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		fmt.Printf("Workflow: %s\n", result.Name)
		fmt.Printf("ID:       %s\n", result.ID)
		fmt.Printf("所有者:   %s\n", result.OwnerID)
		fmt.Printf("描述:     %s\n", result.Description)
		fmt.Printf("触发器:   %s\n", result.TriggerType)
		if result.Schedule != "" {
			fmt.Printf("定时:     %s\n", result.Schedule)
		}
		fmt.Printf("激活:     %t\n", result.Active)
		fmt.Printf("重试:     max=%d delay=%ds backoff=%s\n",
			result.RetryPolicy.MaxRetries, result.RetryPolicy.RetryDelaySeconds, result.RetryPolicy.Backoff)

		if len(result.TriggerConditions) > 0 {
			fmt.Println("\n触发条件:")
			for _, cond := range result.TriggerConditions {
				fmt.Printf("  - %s %s %q\n", cond.Field, cond.Operator, cond.Value)
			}
		}
		fmt.Println("\n动作:")
		for i, act := range result.Actions {
			delay := ""
			if act.DelayMinutes > 0 {
				delay = fmt.Sprintf(" (延迟%d分钟)", act.DelayMinutes)
			}
			fmt.Printf("  %d. %s%s\n", i+1, act.Type, delay)
		}
		return nil
	},
}

// workflowCreateCmd 从JSON文件创建Workflow
var workflowCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "从JSON定义文件创建Workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			output.Error("读取文件失败: %v", err)
			return err
		}

		var req dto.CreateWorkflowRequest
		if err := json.Unmarshal(content, &req); err != nil {
			output.Error("解析定义文件失败: %v", err)
			return err
		}

		client := mailpilot.New(serverURL)
		result, err := client.CreateWorkflow(req)
		if err != nil {
			output.Error("创建失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		output.Success("Workflow创建成功: %s (%s)", result.Name, result.ID)
		return nil
	},
}

// workflowDeleteCmd 删除Workflow
var workflowDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除Workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		if err := client.DeleteWorkflow(args[0]); err != nil {
			output.Error("删除失败: %v", err)
			return err
		}

		output.Success("Workflow已删除: %s", args[0])
		return nil
	},
}

// workflowExecuteCmd 手动执行Workflow
var workflowExecuteCmd = &cobra.Command{
	Use:   "execute <id>",
	Short: "手动触发一次Workflow执行",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		result, err := client.ExecuteWorkflow(args[0], nil)
		if err != nil {
			output.Error("触发失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		output.Success("执行已创建: %s", result.ExecutionID)
		return nil
	},
}

func init() {
	workflowListCmd.Flags().StringVarP(&workflowOwnerID, "owner", "o", "", "按所有者过滤")
	workflowListCmd.Flags().IntVar(&workflowLimit, "limit", 20, "返回条数")
	workflowListCmd.Flags().IntVar(&workflowOffset, "offset", 0, "偏移量")

	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowShowCmd)
	workflowCmd.AddCommand(workflowCreateCmd)
	workflowCmd.AddCommand(workflowDeleteCmd)
	workflowCmd.AddCommand(workflowExecuteCmd)
}
