package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/mailpilot/pkg/cli/mailpilot"
	"github.com/stevelan1995/mailpilot/pkg/cli/output"
)

var (
	executionWorkflowID string
	executionStatus     string
	executionLimit      int
	executionOffset     int
)

// executionCmd execution子命令
var executionCmd = &cobra.Command{
	Use:   "execution",
	Short: "Execution查询命令",
	Long:  `查询Execution状态与历史，以及取消进行中的执行。`,
}

// executionListCmd 列出Execution
var executionListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出Execution",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		result, err := client.ListExecutions(executionWorkflowID, executionStatus, executionLimit, executionOffset)
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		if len(result.Items) == 0 {
			output.Info("暂无执行记录")
			return nil
		}

		table := output.NewTable("ID", "WORKFLOW", "STATUS", "PROGRESS", "CREATED", "DURATION")
		for _, exec := range result.Items {
			duration := "-"
			if exec.Duration != "" {
				duration = exec.Duration
			}
			table.AddRow(
				exec.ID,
				exec.WorkflowID,
				exec.Status,
				fmt.Sprintf("%d/%d", exec.ActionCursor, exec.ActionCount),
				exec.CreatedAt.Format("2006-01-02 15:04:05"),
				duration,
			)
		}
		table.Render()
		return nil
	},
}

// executionShowCmd 查看Execution详情
var executionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "查看Execution详情",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		result, err := client.GetExecution(args[0])
		if err != nil {
			output.Error("查询失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		fmt.Printf("Execution: %s\n", result.ID)
		fmt.Printf("Workflow:  %s\n", result.WorkflowID)
		fmt.Printf("状态:      %s\n", result.Status)
		fmt.Printf("进度:      %d/%d\n", result.ActionCursor, result.ActionCount)
		if result.EmailID != "" {
			fmt.Printf("触发邮件:  %s\n", result.EmailID)
		}
		if result.ErrorMessage != "" {
			fmt.Printf("错误:      [%s] %s\n", result.ErrorCategory, result.ErrorMessage)
		}
		if len(result.Attempts) > 0 {
			fmt.Println("\n失败尝试:")
			for _, at := range result.Attempts {
				fmt.Printf("  - 动作#%d 第%d次: %s (%s)\n",
					at.ActionIndex, at.Attempt, at.Error, at.At.Format("15:04:05"))
			}
		}
		return nil
	},
}

// executionCancelCmd 取消Execution
var executionCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "取消进行中的Execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		if err := client.CancelExecution(args[0]); err != nil {
			output.Error("取消失败: %v", err)
			return err
		}

		output.Success("取消请求已接受: %s", args[0])
		return nil
	},
}

func init() {
	executionListCmd.Flags().StringVarP(&executionWorkflowID, "workflow", "w", "", "按Workflow过滤")
	executionListCmd.Flags().StringVar(&executionStatus, "status", "", "按状态过滤")
	executionListCmd.Flags().IntVar(&executionLimit, "limit", 20, "返回条数")
	executionListCmd.Flags().IntVar(&executionOffset, "offset", 0, "偏移量")

	executionCmd.AddCommand(executionListCmd)
	executionCmd.AddCommand(executionShowCmd)
	executionCmd.AddCommand(executionCancelCmd)
}
