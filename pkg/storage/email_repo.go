package storage

import (
	"context"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// EmailRepository Email实体存储接口（对外导出）
// Email落库后只读，categorize_email动作仅更新分类字段
type EmailRepository interface {
	// Save 保存Email
	Save(ctx context.Context, email *workflow.Email) error
	// GetByID 根据ID查询Email，不存在返回nil
	GetByID(ctx context.Context, id string) (*workflow.Email, error)
	// UpdateCategory 更新邮件分类（categorize_email动作使用）
	UpdateCategory(ctx context.Context, id, category string) error
}

// WebhookEventRepository 入站回调去重存储接口（对外导出）
// 以(source, external_event_id)为键，保证重复回调不产生第二次状态转换
type WebhookEventRepository interface {
	// Record 记录一次回调；已存在时duplicate为true且不报错
	Record(ctx context.Context, source, eventID string) (duplicate bool, err error)
	// Forget 撤销一条回调记录，使同一event_id的重投不再被视为重复
	// 回调处理失败时调用，避免幂等键吞掉后续重投
	Forget(ctx context.Context, source, eventID string) error
}
