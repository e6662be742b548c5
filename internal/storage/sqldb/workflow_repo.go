// Package sqldb 基于sqlx的Repository实现，方言差异由storage.Dialect封装
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
	"github.com/stevelan1995/mailpilot/pkg/storage/dao"
)

// workflowRepo Workflow存储实现（小写，不导出）
type workflowRepo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// NewWorkflowRepo 创建Workflow存储实例（对外导出的工厂方法）
func NewWorkflowRepo(db *sqlx.DB, dialect storage.Dialect) (storage.WorkflowRepository, error) {
	repo := &workflowRepo{db: db, dialect: dialect}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化workflow表结构失败: %w", err)
	}
	return repo, nil
}

// initSchema 初始化表结构（内部方法）
func (r *workflowRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflow (
		id VARCHAR(64) PRIMARY KEY,
		owner_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		trigger_type VARCHAR(32) NOT NULL,
		trigger_conditions TEXT,
		actions TEXT NOT NULL,
		schedule VARCHAR(128),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		max_retries INTEGER NOT NULL DEFAULT 0,
		retry_delay_seconds INTEGER NOT NULL DEFAULT 60,
		backoff VARCHAR(16),
		create_time DATETIME NOT NULL,
		update_time DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workflow_owner ON workflow(owner_id);
	CREATE INDEX IF NOT EXISTS idx_workflow_trigger_type ON workflow(trigger_type);
	`
	return execSchema(r.db, r.dialect.CreateTableSQL(schema))
}

// toDAO 业务实体转DAO（内部方法）
func workflowToDAO(wf *workflow.Workflow) (*dao.WorkflowDAO, error) {
	condJSON, err := json.Marshal(wf.TriggerConditions)
	if err != nil {
		return nil, fmt.Errorf("序列化触发条件失败: %w", err)
	}
	actionsJSON, err := json.Marshal(wf.Actions)
	if err != nil {
		return nil, fmt.Errorf("序列化动作列表失败: %w", err)
	}

	d := &dao.WorkflowDAO{
		ID:                wf.ID,
		OwnerID:           wf.OwnerID,
		Name:              wf.Name,
		TriggerType:       string(wf.TriggerType),
		Actions:           string(actionsJSON),
		Active:            wf.Active,
		MaxRetries:        wf.RetryPolicy.MaxRetries,
		RetryDelaySeconds: wf.RetryPolicy.RetryDelaySeconds,
		CreateTime:        wf.CreateTime,
		UpdateTime:        wf.UpdateTime,
	}
	if wf.Description != "" {
		d.Description = sql.NullString{String: wf.Description, Valid: true}
	}
	if len(wf.TriggerConditions) > 0 {
		d.TriggerConditions = sql.NullString{String: string(condJSON), Valid: true}
	}
	if wf.Schedule != "" {
		d.Schedule = sql.NullString{String: wf.Schedule, Valid: true}
	}
	if wf.RetryPolicy.Backoff != "" {
		d.Backoff = sql.NullString{String: wf.RetryPolicy.Backoff, Valid: true}
	}
	return d, nil
}

// fromDAO DAO转业务实体（内部方法）
func workflowFromDAO(d *dao.WorkflowDAO) (*workflow.Workflow, error) {
	wf := &workflow.Workflow{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		TriggerType: workflow.TriggerType(d.TriggerType),
		Active:      d.Active,
		RetryPolicy: workflow.RetryPolicy{
			MaxRetries:        d.MaxRetries,
			RetryDelaySeconds: d.RetryDelaySeconds,
		},
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
	}
	if d.Description.Valid {
		wf.Description = d.Description.String
	}
	if d.Schedule.Valid {
		wf.Schedule = d.Schedule.String
	}
	if d.Backoff.Valid {
		wf.RetryPolicy.Backoff = d.Backoff.String
	}
	if d.TriggerConditions.Valid && d.TriggerConditions.String != "" {
		if err := json.Unmarshal([]byte(d.TriggerConditions.String), &wf.TriggerConditions); err != nil {
			return nil, fmt.Errorf("反序列化触发条件失败: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(d.Actions), &wf.Actions); err != nil {
		return nil, fmt.Errorf("反序列化动作列表失败: %w", err)
	}
	return wf, nil
}

// Save 保存新Workflow
func (r *workflowRepo) Save(ctx context.Context, wf *workflow.Workflow) error {
	d, err := workflowToDAO(wf)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO workflow
	(id, owner_id, name, description, trigger_type, trigger_conditions, actions, schedule,
	 active, max_retries, retry_delay_seconds, backoff, create_time, update_time)
	VALUES (:id, :owner_id, :name, :description, :trigger_type, :trigger_conditions, :actions, :schedule,
	 :active, :max_retries, :retry_delay_seconds, :backoff, :create_time, :update_time)
	`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("保存Workflow失败: %w", err)
	}
	return nil
}

// GetByID 根据ID查询Workflow
func (r *workflowRepo) GetByID(ctx context.Context, id string) (*workflow.Workflow, error) {
	var d dao.WorkflowDAO
	query := r.db.Rebind(`SELECT * FROM workflow WHERE id = ?`)
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询Workflow失败: %w", err)
	}
	return workflowFromDAO(&d)
}

// Update 更新Workflow
// 只更新定义本身，历史Execution持有的快照不受影响
func (r *workflowRepo) Update(ctx context.Context, wf *workflow.Workflow) error {
	wf.UpdateTime = time.Now()
	d, err := workflowToDAO(wf)
	if err != nil {
		return err
	}

	query := `
	UPDATE workflow SET
		name = :name,
		description = :description,
		trigger_type = :trigger_type,
		trigger_conditions = :trigger_conditions,
		actions = :actions,
		schedule = :schedule,
		active = :active,
		max_retries = :max_retries,
		retry_delay_seconds = :retry_delay_seconds,
		backoff = :backoff,
		update_time = :update_time
	WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("更新Workflow失败: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete 删除Workflow
// 存在非终态Execution时拒绝删除（删除守卫）
func (r *workflowRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	var active int
	guard := tx.Rebind(`SELECT COUNT(*) FROM workflow_execution WHERE workflow_id = ? AND status IN ('pending', 'running')`)
	if err := tx.GetContext(ctx, &active, guard, id); err != nil {
		return fmt.Errorf("查询未完成Execution失败: %w", err)
	}
	if active > 0 {
		return storage.ErrWorkflowHasActiveExecutions
	}

	del := tx.Rebind(`DELETE FROM workflow WHERE id = ?`)
	result, err := tx.ExecContext(ctx, del, id)
	if err != nil {
		return fmt.Errorf("删除Workflow失败: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return tx.Commit()
}

// List 按条件分页查询
// category过滤需要解析触发条件JSON，在内存中完成
func (r *workflowRepo) List(ctx context.Context, filter storage.WorkflowFilter) ([]*workflow.Workflow, int, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Active != nil {
		conds = append(conds, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.TriggerType != "" {
		conds = append(conds, "trigger_type = ?")
		args = append(args, filter.TriggerType)
	}

	query := `SELECT * FROM workflow`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY create_time DESC"

	var daos []dao.WorkflowDAO
	if err := r.db.SelectContext(ctx, &daos, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("查询Workflow列表失败: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0, len(daos))
	for i := range daos {
		wf, err := workflowFromDAO(&daos[i])
		if err != nil {
			return nil, 0, err
		}
		if filter.Category != "" && !referencesCategory(wf, filter.Category) {
			continue
		}
		workflows = append(workflows, wf)
	}

	total := len(workflows)
	offset := filter.Offset
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if offset >= total {
		return []*workflow.Workflow{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return workflows[offset:end], total, nil
}

// referencesCategory 判断Workflow的触发条件是否引用了指定分类
func referencesCategory(wf *workflow.Workflow, category string) bool {
	for _, cond := range wf.TriggerConditions {
		if cond.Field == "category" && strings.EqualFold(cond.Value, category) {
			return true
		}
	}
	return false
}

// ListActiveByOwner 查询所有者的全部激活Workflow
func (r *workflowRepo) ListActiveByOwner(ctx context.Context, ownerID string) ([]*workflow.Workflow, error) {
	var daos []dao.WorkflowDAO
	query := r.db.Rebind(`SELECT * FROM workflow WHERE owner_id = ? AND active = ? ORDER BY create_time ASC`)
	if err := r.db.SelectContext(ctx, &daos, query, ownerID, true); err != nil {
		return nil, fmt.Errorf("查询激活Workflow失败: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0, len(daos))
	for i := range daos {
		wf, err := workflowFromDAO(&daos[i])
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}
