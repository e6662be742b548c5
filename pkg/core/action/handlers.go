package action

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// Mailer 邮件发送接口（对外导出）
// 生产环境使用SMTPMailer，测试中注入mock
type Mailer interface {
	Send(to, subject, body string) error
}

// Notifier 通知发送接口（对外导出）
type Notifier interface {
	Notify(channel, message string) error
}

// LogNotifier 仅写日志的通知实现（对外导出）
// 未接入真实通知渠道时的默认实现
type LogNotifier struct{}

// Notify 输出通知日志
func (n *LogNotifier) Notify(channel, message string) error {
	log.Printf("📣 [Notify] channel=%s message=%s", channel, message)
	return nil
}

// LogMailer 仅写日志的邮件发送实现（对外导出）
// dev模式未配置SMTP时的默认实现
type LogMailer struct{}

// Send 输出邮件日志
func (m *LogMailer) Send(to, subject, body string) error {
	log.Printf("📧 [Mail] to=%s subject=%s bytes=%d", to, subject, len(body))
	return nil
}

// AutoReplyHandler send_auto_reply动作处理器（对外导出）
type AutoReplyHandler struct {
	mailer Mailer
	from   string
}

// NewAutoReplyHandler 创建自动回复处理器
func NewAutoReplyHandler(mailer Mailer, from string) *AutoReplyHandler {
	return &AutoReplyHandler{mailer: mailer, from: from}
}

// Type 实现Handler接口
func (h *AutoReplyHandler) Type() workflow.ActionType {
	return workflow.ActionSendAutoReply
}

// Execute 发送自动回复
// template缺失属配置错误，重试无意义，返回FatalActionError
func (h *AutoReplyHandler) Execute(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error) {
	template, ok := act.ConfigString("template")
	if !ok {
		return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "缺少template配置"}
	}

	to, _ := act.ConfigString("to")
	subject := "Re: your message"
	if email != nil {
		if to == "" {
			to = email.From
		}
		if email.Subject != "" {
			subject = "Re: " + email.Subject
		}
	}
	if to == "" {
		return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "无法确定收件人：非邮件触发且未配置to"}
	}

	body := renderTemplate(template, email)
	if err := h.mailer.Send(to, subject, body); err != nil {
		return nil, &workflow.DispatchError{ActionType: act.Type, Err: err}
	}

	return map[string]interface{}{
		"replied_to": to,
		"subject":    subject,
	}, nil
}

// renderTemplate 填充模板占位符（内部辅助函数）
// 支持{{from}}/{{subject}}/{{category}}/{{priority}}
func renderTemplate(template string, email *workflow.Email) string {
	if email == nil {
		return template
	}
	replacer := strings.NewReplacer(
		"{{from}}", email.From,
		"{{subject}}", email.Subject,
		"{{category}}", email.Category,
		"{{priority}}", email.Priority,
	)
	return replacer.Replace(template)
}

// NotifyHandler notify动作处理器（对外导出）
type NotifyHandler struct {
	notifier Notifier
}

// NewNotifyHandler 创建通知处理器
func NewNotifyHandler(notifier Notifier) *NotifyHandler {
	if notifier == nil {
		notifier = &LogNotifier{}
	}
	return &NotifyHandler{notifier: notifier}
}

// Type 实现Handler接口
func (h *NotifyHandler) Type() workflow.ActionType {
	return workflow.ActionNotify
}

// Execute 发送通知
func (h *NotifyHandler) Execute(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error) {
	message, ok := act.ConfigString("message")
	if !ok {
		return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "缺少message配置"}
	}

	channel, _ := act.ConfigString("channel")
	if channel == "" {
		channel = "default"
	}

	if email != nil {
		message = renderTemplate(message, email)
	}

	if err := h.notifier.Notify(channel, message); err != nil {
		return nil, &workflow.DispatchError{ActionType: act.Type, Err: err}
	}

	return map[string]interface{}{
		"channel": channel,
		"message": message,
	}, nil
}

// CreateTicketHandler create_ticket动作处理器（对外导出）
type CreateTicketHandler struct{}

// NewCreateTicketHandler 创建工单处理器
func NewCreateTicketHandler() *CreateTicketHandler {
	return &CreateTicketHandler{}
}

// Type 实现Handler接口
func (h *CreateTicketHandler) Type() workflow.ActionType {
	return workflow.ActionCreateTicket
}

// Execute 创建工单
// 工单本体由外部工单系统维护，这里生成引用并记录在执行结果中
func (h *CreateTicketHandler) Execute(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error) {
	title, _ := act.ConfigString("title")
	if title == "" {
		if email == nil || email.Subject == "" {
			return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "缺少title配置且无邮件主题可用"}
		}
		title = email.Subject
	}

	priority, _ := act.ConfigString("priority")
	if priority == "" && email != nil {
		priority = email.Priority
	}
	if priority == "" {
		priority = "normal"
	}

	ticketID := uuid.NewString()
	log.Printf("🎫 [CreateTicket] 工单已创建: id=%s title=%s priority=%s", ticketID, title, priority)

	result := map[string]interface{}{
		"ticket_id": ticketID,
		"title":     title,
		"priority":  priority,
	}
	if email != nil {
		result["email_id"] = email.ID
	}
	return result, nil
}

// CategorizeEmailHandler categorize_email动作处理器（对外导出）
type CategorizeEmailHandler struct {
	emails storage.EmailRepository
}

// NewCategorizeEmailHandler 创建邮件分类处理器
func NewCategorizeEmailHandler(emails storage.EmailRepository) *CategorizeEmailHandler {
	return &CategorizeEmailHandler{emails: emails}
}

// Type 实现Handler接口
func (h *CategorizeEmailHandler) Type() workflow.ActionType {
	return workflow.ActionCategorizeEmail
}

// Execute 覆盖邮件分类
func (h *CategorizeEmailHandler) Execute(ctx context.Context, act workflow.Action, exec *workflow.Execution, email *workflow.Email) (map[string]interface{}, error) {
	category, ok := act.ConfigString("category")
	if !ok {
		return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "缺少category配置"}
	}
	if email == nil {
		return nil, &workflow.FatalActionError{ActionType: act.Type, Reason: "非邮件触发的Execution无法更新邮件分类"}
	}

	if err := h.emails.UpdateCategory(ctx, email.ID, category); err != nil {
		return nil, &workflow.DispatchError{ActionType: act.Type, Err: fmt.Errorf("更新邮件分类失败: %w", err)}
	}

	return map[string]interface{}{
		"email_id": email.ID,
		"category": category,
	}, nil
}
