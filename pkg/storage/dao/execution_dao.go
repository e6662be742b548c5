package dao

import (
	"database/sql"
	"time"
)

// ExecutionDAO workflow_execution表行结构
type ExecutionDAO struct {
	ID                string         `db:"id"`
	WorkflowID        string         `db:"workflow_id"`
	OwnerID           string         `db:"owner_id"`
	EmailID           sql.NullString `db:"email_id"` // 手动/定时触发时为NULL
	TriggerData       sql.NullString `db:"trigger_data"`
	Status            string         `db:"status"`
	ActionCursor      int            `db:"action_cursor"`
	AttemptCount      int            `db:"attempt_count"`
	Actions           string         `db:"actions"` // 动作列表快照（JSON）
	MaxRetries        int            `db:"max_retries"`
	RetryDelaySeconds int            `db:"retry_delay_seconds"`
	Backoff           sql.NullString `db:"backoff"`
	Result            sql.NullString `db:"result"`
	ErrorCategory     sql.NullString `db:"error_category"`
	ErrorMessage      sql.NullString `db:"error_message"`
	Attempts          sql.NullString `db:"attempts"` // 尝试记录（JSON）
	NextEligibleAt    sql.NullTime   `db:"next_eligible_at"`
	CreateTime        time.Time      `db:"create_time"`
	StartTime         sql.NullTime   `db:"start_time"`
	EndTime           sql.NullTime   `db:"end_time"`
}
