package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Email 入站邮件实体（对外导出）
// 由分类器或邮件提供商Webhook产生，落库后只读
type Email struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"` // 收件人对应的账户
	From            string    `json:"from"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	Category        string    `json:"category"`
	Priority        string    `json:"priority"`
	ConfidenceScore float64   `json:"confidence_score"` // [0,1]
	ReceivedAt      time.Time `json:"received_at"`
}

// NewEmail 创建Email实例（对外导出的工厂方法）
func NewEmail(ownerID, from, subject, body string, receivedAt time.Time) *Email {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &Email{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		From:       from,
		Subject:    subject,
		Body:       body,
		ReceivedAt: receivedAt,
	}
}
