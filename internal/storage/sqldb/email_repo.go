package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
	"github.com/stevelan1995/mailpilot/pkg/storage/dao"
)

// emailRepo Email存储实现（小写，不导出）
type emailRepo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// NewEmailRepo 创建Email存储实例（对外导出的工厂方法）
func NewEmailRepo(db *sqlx.DB, dialect storage.Dialect) (storage.EmailRepository, error) {
	repo := &emailRepo{db: db, dialect: dialect}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化email表结构失败: %w", err)
	}
	return repo, nil
}

// initSchema 初始化表结构（内部方法）
func (r *emailRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS email (
		id VARCHAR(64) PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		from_addr VARCHAR(255) NOT NULL,
		subject TEXT,
		body TEXT,
		category VARCHAR(64),
		priority VARCHAR(16),
		confidence_score REAL NOT NULL DEFAULT 0,
		received_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_email_owner ON email(owner_id);
	`
	return execSchema(r.db, r.dialect.CreateTableSQL(schema))
}

// Save 保存Email
func (r *emailRepo) Save(ctx context.Context, email *workflow.Email) error {
	d := &dao.EmailDAO{
		ID:              email.ID,
		OwnerID:         email.OwnerID,
		FromAddr:        email.From,
		ConfidenceScore: email.ConfidenceScore,
		ReceivedAt:      email.ReceivedAt,
	}
	if email.Subject != "" {
		d.Subject = sql.NullString{String: email.Subject, Valid: true}
	}
	if email.Body != "" {
		d.Body = sql.NullString{String: email.Body, Valid: true}
	}
	if email.Category != "" {
		d.Category = sql.NullString{String: email.Category, Valid: true}
	}
	if email.Priority != "" {
		d.Priority = sql.NullString{String: email.Priority, Valid: true}
	}

	query := `
	INSERT INTO email (id, owner_id, from_addr, subject, body, category, priority, confidence_score, received_at)
	VALUES (:id, :owner_id, :from_addr, :subject, :body, :category, :priority, :confidence_score, :received_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("保存Email失败: %w", err)
	}
	return nil
}

// GetByID 根据ID查询Email
func (r *emailRepo) GetByID(ctx context.Context, id string) (*workflow.Email, error) {
	var d dao.EmailDAO
	query := r.db.Rebind(`SELECT * FROM email WHERE id = ?`)
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询Email失败: %w", err)
	}

	email := &workflow.Email{
		ID:              d.ID,
		OwnerID:         d.OwnerID,
		From:            d.FromAddr,
		ConfidenceScore: d.ConfidenceScore,
		ReceivedAt:      d.ReceivedAt,
	}
	if d.Subject.Valid {
		email.Subject = d.Subject.String
	}
	if d.Body.Valid {
		email.Body = d.Body.String
	}
	if d.Category.Valid {
		email.Category = d.Category.String
	}
	if d.Priority.Valid {
		email.Priority = d.Priority.String
	}
	return email, nil
}

// UpdateCategory 更新邮件分类
func (r *emailRepo) UpdateCategory(ctx context.Context, id, category string) error {
	query := r.db.Rebind(`UPDATE email SET category = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, category, id)
	if err != nil {
		return fmt.Errorf("更新邮件分类失败: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}
