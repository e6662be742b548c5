package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

// webhookEventRepo 回调去重存储实现（小写，不导出）
type webhookEventRepo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// NewWebhookEventRepo 创建回调去重存储实例（对外导出的工厂方法）
func NewWebhookEventRepo(db *sqlx.DB, dialect storage.Dialect) (storage.WebhookEventRepository, error) {
	repo := &webhookEventRepo{db: db, dialect: dialect}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化webhook_event表结构失败: %w", err)
	}
	return repo, nil
}

// initSchema 初始化表结构（内部方法）
// (source, event_id)联合主键即幂等键
func (r *webhookEventRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS webhook_event (
		source VARCHAR(32) NOT NULL,
		event_id VARCHAR(128) NOT NULL,
		received_at DATETIME NOT NULL,
		PRIMARY KEY (source, event_id)
	);
	`
	return execSchema(r.db, r.dialect.CreateTableSQL(schema))
}

// Record 记录一次回调
// 主键冲突说明是重复投递，返回duplicate=true且不报错
func (r *webhookEventRepo) Record(ctx context.Context, source, eventID string) (bool, error) {
	query := r.db.Rebind(`INSERT INTO webhook_event (source, event_id, received_at) VALUES (?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, source, eventID, time.Now())
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return true, nil
		}
		return false, fmt.Errorf("记录回调事件失败: %w", err)
	}
	return false, nil
}

// Forget 撤销一条回调记录
// 处理失败后调用，让提供商的重投能再次进入处理流程
func (r *webhookEventRepo) Forget(ctx context.Context, source, eventID string) error {
	query := r.db.Rebind(`DELETE FROM webhook_event WHERE source = ? AND event_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, source, eventID); err != nil {
		return fmt.Errorf("撤销回调记录失败: %w", err)
	}
	return nil
}

// execSchema 执行建表DDL（包内辅助函数）
// 逐条执行，重复建索引的报错直接忽略
func execSchema(db *sqlx.DB, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(stmt, "CREATE INDEX") &&
				(strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "Duplicate key name")) {
				continue
			}
			return err
		}
	}
	return nil
}
