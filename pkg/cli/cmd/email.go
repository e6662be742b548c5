package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/cli/mailpilot"
	"github.com/stevelan1995/mailpilot/pkg/cli/output"
)

var (
	emailOwnerID string
	emailFrom    string
	emailSubject string
	emailBody    string
)

// emailCmd email子命令
var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "入站邮件命令",
	Long:  `投递测试邮件并观察分类与触发结果。`,
}

// emailSubmitCmd 投递一封邮件
var emailSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "投递一封入站邮件",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mailpilot.New(serverURL)
		result, err := client.SubmitEmail(dto.InboundEmailRequest{
			OwnerID: emailOwnerID,
			From:    emailFrom,
			Subject: emailSubject,
			Body:    emailBody,
		})
		if err != nil {
			output.Error("投递失败: %v", err)
			return err
		}

		if outputJSON {
			return output.PrintJSON(result)
		}

		output.Success("邮件已处理: %s", result.Email.ID)
		fmt.Printf("分类:   %s\n", result.Email.Category)
		fmt.Printf("优先级: %s\n", result.Email.Priority)
		fmt.Printf("置信度: %.2f\n", result.Email.ConfidenceScore)
		if len(result.ExecutionIDs) == 0 {
			output.Info("未命中任何Workflow")
		} else {
			fmt.Println("触发的执行:")
			for _, id := range result.ExecutionIDs {
				fmt.Printf("  - %s\n", id)
			}
		}
		return nil
	},
}

func init() {
	emailSubmitCmd.Flags().StringVarP(&emailOwnerID, "owner", "o", "", "所有者账户ID")
	emailSubmitCmd.Flags().StringVarP(&emailFrom, "from", "f", "", "发件人地址")
	emailSubmitCmd.Flags().StringVar(&emailSubject, "subject", "", "邮件主题")
	emailSubmitCmd.Flags().StringVar(&emailBody, "body", "", "邮件正文")
	emailSubmitCmd.MarkFlagRequired("owner")
	emailSubmitCmd.MarkFlagRequired("from")

	emailCmd.AddCommand(emailSubmitCmd)
}
