// Package storage 提供按数据库类型装配Repository的工厂
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/stevelan1995/mailpilot/internal/storage/sqldb"
	pkgstorage "github.com/stevelan1995/mailpilot/pkg/storage"
	"github.com/stevelan1995/mailpilot/pkg/storage/mysql"
	"github.com/stevelan1995/mailpilot/pkg/storage/postgres"
	"github.com/stevelan1995/mailpilot/pkg/storage/sqlite"
)

// Repositories 存储Repository集合（内部使用）
type Repositories struct {
	Workflows     pkgstorage.WorkflowRepository
	Executions    pkgstorage.ExecutionRepository
	Emails        pkgstorage.EmailRepository
	WebhookEvents pkgstorage.WebhookEventRepository
	db            *sqlx.DB
}

// NewRepositories 创建所有Repository实例（内部工厂方法）
// driver: 数据库类型（sqlite/mysql/postgres）
// dsn: 数据库连接字符串（SQLite为文件路径）
// maxOpen/maxIdle为0时沿用驱动默认值
func NewRepositories(driver, dsn string, maxOpen, maxIdle int) (*Repositories, error) {
	var dialect pkgstorage.Dialect
	switch driver {
	case "sqlite", "":
		dialect = sqlite.NewDialect()
	case "mysql":
		dialect = mysql.NewDialect()
		dsn = mysql.NormalizeDSN(dsn)
	case "postgres", "postgresql":
		dialect = postgres.NewDialect()
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", driver)
	}

	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	workflowRepo, err := sqldb.NewWorkflowRepo(db, dialect)
	if err != nil {
		return nil, fmt.Errorf("创建WorkflowRepository失败: %w", err)
	}
	executionRepo, err := sqldb.NewExecutionRepo(db, dialect)
	if err != nil {
		return nil, fmt.Errorf("创建ExecutionRepository失败: %w", err)
	}
	emailRepo, err := sqldb.NewEmailRepo(db, dialect)
	if err != nil {
		return nil, fmt.Errorf("创建EmailRepository失败: %w", err)
	}
	webhookEventRepo, err := sqldb.NewWebhookEventRepo(db, dialect)
	if err != nil {
		return nil, fmt.Errorf("创建WebhookEventRepository失败: %w", err)
	}

	return &Repositories{
		Workflows:     workflowRepo,
		Executions:    executionRepo,
		Emails:        emailRepo,
		WebhookEvents: webhookEventRepo,
		db:            db,
	}, nil
}

// Close 关闭数据库连接（内部方法）
func (r *Repositories) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
