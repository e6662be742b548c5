// Package dao 定义与数据库行结构对应的数据访问对象
package dao

import (
	"database/sql"
	"time"
)

// WorkflowDAO workflow表行结构
type WorkflowDAO struct {
	ID                string         `db:"id"`
	OwnerID           string         `db:"owner_id"`
	Name              string         `db:"name"`
	Description       sql.NullString `db:"description"`
	TriggerType       string         `db:"trigger_type"`
	TriggerConditions sql.NullString `db:"trigger_conditions"` // JSON数组
	Actions           string         `db:"actions"`            // JSON数组
	Schedule          sql.NullString `db:"schedule"`
	Active            bool           `db:"active"`
	MaxRetries        int            `db:"max_retries"`
	RetryDelaySeconds int            `db:"retry_delay_seconds"`
	Backoff           sql.NullString `db:"backoff"`
	CreateTime        time.Time      `db:"create_time"`
	UpdateTime        time.Time      `db:"update_time"`
}
