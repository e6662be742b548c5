package dao

import (
	"database/sql"
	"time"
)

// EmailDAO email表行结构
type EmailDAO struct {
	ID              string         `db:"id"`
	OwnerID         string         `db:"owner_id"`
	FromAddr        string         `db:"from_addr"`
	Subject         sql.NullString `db:"subject"`
	Body            sql.NullString `db:"body"`
	Category        sql.NullString `db:"category"`
	Priority        sql.NullString `db:"priority"`
	ConfidenceScore float64        `db:"confidence_score"`
	ReceivedAt      time.Time      `db:"received_at"`
}

// WebhookEventDAO webhook_event表行结构（回调去重）
type WebhookEventDAO struct {
	Source     string    `db:"source"`
	EventID    string    `db:"event_id"`
	ReceivedAt time.Time `db:"received_at"`
}
