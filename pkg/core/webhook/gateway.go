// Package webhook 对外回调入口：签名校验、去重、翻译为内部事件
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/classifier"
	"github.com/stevelan1995/mailpilot/pkg/core/events"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// 回调来源标识，同时作为去重表的source列取值
const (
	SourceRuntime = "runtime" // 外部自动化运行时
	SourceMail    = "mail"    // 邮件提供商
)

// OutcomeSink 动作结果的消费端（由Engine实现）
type OutcomeSink interface {
	HandleActionOutcome(ctx context.Context, outcome *events.ActionOutcome) error
}

// EmailIngestor 入站邮件的消费端（由Engine实现）
// 返回本次触发创建的Execution ID列表
type EmailIngestor interface {
	TriggerFromEmail(ctx context.Context, email *workflow.Email) ([]string, error)
}

// runtimeCallback 外部运行时回调的请求体
type runtimeCallback struct {
	EventID     string                 `json:"event_id"`
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	ActionIndex int                    `json:"action_index"`
	Status      string                 `json:"status"` // completed或failed
	Result      map[string]interface{} `json:"result,omitempty"`
	ErrorMsg    string                 `json:"error_message,omitempty"`
}

// inboundEmail 邮件提供商推送的请求体
type inboundEmail struct {
	MessageID  string    `json:"message_id"`
	OwnerID    string    `json:"owner_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Gateway Webhook网关（对外导出）
// 所有入站回调先验签、再去重，之后才触达Engine和存储
type Gateway struct {
	runtimeSecret string
	mailSecret    string
	classifier    *classifier.Classifier
	emails        storage.EmailRepository
	seen          storage.WebhookEventRepository
	sink          OutcomeSink
	ingestor      EmailIngestor
}

// NewGateway 创建Webhook网关（对外导出的工厂方法）
func NewGateway(
	runtimeSecret, mailSecret string,
	cls *classifier.Classifier,
	emails storage.EmailRepository,
	seen storage.WebhookEventRepository,
	sink OutcomeSink,
	ingestor EmailIngestor,
) *Gateway {
	return &Gateway{
		runtimeSecret: runtimeSecret,
		mailSecret:    mailSecret,
		classifier:    cls,
		emails:        emails,
		seen:          seen,
		sink:          sink,
		ingestor:      ingestor,
	}
}

// HandleRuntimeCallback 处理外部运行时的结果回调（对外导出）
// 验签失败返回SignatureError且不产生任何状态变更；
// 重复event_id视为幂等重放，返回duplicate=true且不做第二次转换
func (g *Gateway) HandleRuntimeCallback(ctx context.Context, body []byte, signature string) (bool, error) {
	if err := Verify(SourceRuntime, g.runtimeSecret, body, signature); err != nil {
		return false, err
	}

	var cb runtimeCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return false, fmt.Errorf("解析回调请求失败: %w", err)
	}
	if cb.ExecutionID == "" {
		return false, fmt.Errorf("回调缺少execution_id")
	}
	if cb.EventID == "" {
		return false, fmt.Errorf("回调缺少event_id")
	}
	if cb.Status != "completed" && cb.Status != "failed" {
		return false, fmt.Errorf("不支持的回调状态: %s", cb.Status)
	}

	duplicate, err := g.seen.Record(ctx, SourceRuntime, cb.EventID)
	if err != nil {
		return false, fmt.Errorf("记录回调事件失败: %w", err)
	}
	if duplicate {
		log.Printf("⚠️ 重复回调已忽略: source=%s event=%s", SourceRuntime, cb.EventID)
		return true, nil
	}

	outcome := &events.ActionOutcome{
		ExecutionID:  cb.ExecutionID,
		ActionIndex:  cb.ActionIndex,
		Success:      cb.Status == "completed",
		Result:       cb.Result,
		ErrorMessage: cb.ErrorMsg,
		Source:       events.OutcomeSourceRuntime,
		EventID:      cb.EventID,
	}
	if err := g.sink.HandleActionOutcome(ctx, outcome); err != nil {
		// 处理失败时撤销幂等记录，否则重投会被当作重复直接吞掉
		if fErr := g.seen.Forget(ctx, SourceRuntime, cb.EventID); fErr != nil {
			log.Printf("❌ 撤销回调记录失败: source=%s event=%s: %v", SourceRuntime, cb.EventID, fErr)
		}
		return false, fmt.Errorf("处理动作结果失败: %w", err)
	}
	return false, nil
}

// HandleInboundEmail 处理邮件提供商的入站推送（对外导出）
// 分类、落库并触发匹配的Workflow；返回Email与创建的Execution ID
func (g *Gateway) HandleInboundEmail(ctx context.Context, body []byte, signature string) (*workflow.Email, []string, bool, error) {
	if err := Verify(SourceMail, g.mailSecret, body, signature); err != nil {
		return nil, nil, false, err
	}

	var in inboundEmail
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, nil, false, fmt.Errorf("解析入站邮件失败: %w", err)
	}
	if in.OwnerID == "" {
		return nil, nil, false, fmt.Errorf("入站邮件缺少owner_id")
	}

	// 提供商重发同一message_id时不重复触发
	if in.MessageID != "" {
		duplicate, err := g.seen.Record(ctx, SourceMail, in.MessageID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("记录入站事件失败: %w", err)
		}
		if duplicate {
			log.Printf("⚠️ 重复入站邮件已忽略: message=%s", in.MessageID)
			return nil, nil, true, nil
		}
	}

	email, ids, err := g.IngestEmail(ctx, in.OwnerID, in.From, in.Subject, in.Body, in.ReceivedAt)
	if err != nil {
		if in.MessageID != "" {
			if fErr := g.seen.Forget(ctx, SourceMail, in.MessageID); fErr != nil {
				log.Printf("❌ 撤销入站记录失败: message=%s: %v", in.MessageID, fErr)
			}
		}
		return nil, nil, false, err
	}
	return email, ids, false, nil
}

// IngestEmail 分类并落库一封邮件，随后触发匹配的Workflow（对外导出）
// API直接投递和Webhook推送共用该入口
func (g *Gateway) IngestEmail(ctx context.Context, ownerID, from, subject, body string, receivedAt time.Time) (*workflow.Email, []string, error) {
	email := workflow.NewEmail(ownerID, from, subject, body, receivedAt)

	result := g.classifier.Classify(from, subject, body)
	email.Category = result.Category
	email.Priority = result.Priority
	email.ConfidenceScore = result.ConfidenceScore

	if err := g.emails.Save(ctx, email); err != nil {
		return nil, nil, fmt.Errorf("保存邮件失败: %w", err)
	}
	log.Printf("📬 邮件已分类: id=%s category=%s priority=%s confidence=%.2f",
		email.ID, email.Category, email.Priority, email.ConfidenceScore)

	ids, err := g.ingestor.TriggerFromEmail(ctx, email)
	if err != nil {
		return email, nil, fmt.Errorf("触发工作流失败: %w", err)
	}
	return email, ids, nil
}
