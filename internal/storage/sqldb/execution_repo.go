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

// executionRepo Execution存储实现（小写，不导出）
type executionRepo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// NewExecutionRepo 创建Execution存储实例（对外导出的工厂方法）
func NewExecutionRepo(db *sqlx.DB, dialect storage.Dialect) (storage.ExecutionRepository, error) {
	repo := &executionRepo{db: db, dialect: dialect}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化workflow_execution表结构失败: %w", err)
	}
	return repo, nil
}

// initSchema 初始化表结构（内部方法）
// (email_id, workflow_id)唯一约束保证同一邮件对同一Workflow只触发一次；
// email_id为NULL的手动/定时触发不受该约束限制
func (r *executionRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflow_execution (
		id VARCHAR(64) PRIMARY KEY,
		workflow_id VARCHAR(64) NOT NULL,
		owner_id VARCHAR(64) NOT NULL,
		email_id VARCHAR(64),
		trigger_data TEXT,
		status VARCHAR(16) NOT NULL,
		action_cursor INTEGER NOT NULL DEFAULT 0,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		actions TEXT NOT NULL,
		max_retries INTEGER NOT NULL DEFAULT 0,
		retry_delay_seconds INTEGER NOT NULL DEFAULT 60,
		backoff VARCHAR(16),
		result TEXT,
		error_category VARCHAR(32),
		error_message TEXT,
		attempts TEXT,
		next_eligible_at DATETIME,
		create_time DATETIME NOT NULL,
		start_time DATETIME,
		end_time DATETIME,
		CONSTRAINT uq_execution_email_workflow UNIQUE (email_id, workflow_id)
	);
	CREATE INDEX IF NOT EXISTS idx_execution_workflow ON workflow_execution(workflow_id);
	CREATE INDEX IF NOT EXISTS idx_execution_status ON workflow_execution(status);
	CREATE INDEX IF NOT EXISTS idx_execution_create_time ON workflow_execution(create_time);
	`
	return execSchema(r.db, r.dialect.CreateTableSQL(schema))
}

// toDAO 业务实体转DAO（内部方法）
func executionToDAO(exec *workflow.Execution) (*dao.ExecutionDAO, error) {
	actionsJSON, err := json.Marshal(exec.Actions)
	if err != nil {
		return nil, fmt.Errorf("序列化动作快照失败: %w", err)
	}

	d := &dao.ExecutionDAO{
		ID:                exec.ID,
		WorkflowID:        exec.WorkflowID,
		OwnerID:           exec.OwnerID,
		Status:            string(exec.Status),
		ActionCursor:      exec.ActionCursor,
		AttemptCount:      exec.AttemptCount,
		Actions:           string(actionsJSON),
		MaxRetries:        exec.RetryPolicy.MaxRetries,
		RetryDelaySeconds: exec.RetryPolicy.RetryDelaySeconds,
		CreateTime:        exec.CreateTime,
	}
	if exec.EmailID != "" {
		d.EmailID = sql.NullString{String: exec.EmailID, Valid: true}
	}
	if exec.RetryPolicy.Backoff != "" {
		d.Backoff = sql.NullString{String: exec.RetryPolicy.Backoff, Valid: true}
	}
	if len(exec.TriggerData) > 0 {
		data, err := json.Marshal(exec.TriggerData)
		if err != nil {
			return nil, fmt.Errorf("序列化trigger_data失败: %w", err)
		}
		d.TriggerData = sql.NullString{String: string(data), Valid: true}
	}
	if len(exec.Result) > 0 {
		data, err := json.Marshal(exec.Result)
		if err != nil {
			return nil, fmt.Errorf("序列化result失败: %w", err)
		}
		d.Result = sql.NullString{String: string(data), Valid: true}
	}
	if exec.ErrorCategory != "" {
		d.ErrorCategory = sql.NullString{String: exec.ErrorCategory, Valid: true}
	}
	if exec.ErrorMessage != "" {
		d.ErrorMessage = sql.NullString{String: exec.ErrorMessage, Valid: true}
	}
	if len(exec.Attempts) > 0 {
		data, err := json.Marshal(exec.Attempts)
		if err != nil {
			return nil, fmt.Errorf("序列化尝试记录失败: %w", err)
		}
		d.Attempts = sql.NullString{String: string(data), Valid: true}
	}
	if exec.NextEligibleAt != nil {
		d.NextEligibleAt = sql.NullTime{Time: *exec.NextEligibleAt, Valid: true}
	}
	if exec.StartTime != nil {
		d.StartTime = sql.NullTime{Time: *exec.StartTime, Valid: true}
	}
	if exec.EndTime != nil {
		d.EndTime = sql.NullTime{Time: *exec.EndTime, Valid: true}
	}
	return d, nil
}

// fromDAO DAO转业务实体（内部方法）
func executionFromDAO(d *dao.ExecutionDAO) (*workflow.Execution, error) {
	exec := &workflow.Execution{
		ID:           d.ID,
		WorkflowID:   d.WorkflowID,
		OwnerID:      d.OwnerID,
		Status:       workflow.ExecutionStatus(d.Status),
		ActionCursor: d.ActionCursor,
		AttemptCount: d.AttemptCount,
		RetryPolicy: workflow.RetryPolicy{
			MaxRetries:        d.MaxRetries,
			RetryDelaySeconds: d.RetryDelaySeconds,
		},
		CreateTime: d.CreateTime,
	}
	if d.EmailID.Valid {
		exec.EmailID = d.EmailID.String
	}
	if d.Backoff.Valid {
		exec.RetryPolicy.Backoff = d.Backoff.String
	}
	if err := json.Unmarshal([]byte(d.Actions), &exec.Actions); err != nil {
		return nil, fmt.Errorf("反序列化动作快照失败: %w", err)
	}
	if d.TriggerData.Valid && d.TriggerData.String != "" {
		if err := json.Unmarshal([]byte(d.TriggerData.String), &exec.TriggerData); err != nil {
			return nil, fmt.Errorf("反序列化trigger_data失败: %w", err)
		}
	}
	if d.Result.Valid && d.Result.String != "" {
		if err := json.Unmarshal([]byte(d.Result.String), &exec.Result); err != nil {
			return nil, fmt.Errorf("反序列化result失败: %w", err)
		}
	}
	if d.ErrorCategory.Valid {
		exec.ErrorCategory = d.ErrorCategory.String
	}
	if d.ErrorMessage.Valid {
		exec.ErrorMessage = d.ErrorMessage.String
	}
	if d.Attempts.Valid && d.Attempts.String != "" {
		if err := json.Unmarshal([]byte(d.Attempts.String), &exec.Attempts); err != nil {
			return nil, fmt.Errorf("反序列化尝试记录失败: %w", err)
		}
	}
	if d.NextEligibleAt.Valid {
		t := d.NextEligibleAt.Time
		exec.NextEligibleAt = &t
	}
	if d.StartTime.Valid {
		t := d.StartTime.Time
		exec.StartTime = &t
	}
	if d.EndTime.Valid {
		t := d.EndTime.Time
		exec.EndTime = &t
	}
	return exec, nil
}

// Create 创建Execution
func (r *executionRepo) Create(ctx context.Context, exec *workflow.Execution) error {
	d, err := executionToDAO(exec)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO workflow_execution
	(id, workflow_id, owner_id, email_id, trigger_data, status, action_cursor, attempt_count,
	 actions, max_retries, retry_delay_seconds, backoff, result, error_category, error_message,
	 attempts, next_eligible_at, create_time, start_time, end_time)
	VALUES (:id, :workflow_id, :owner_id, :email_id, :trigger_data, :status, :action_cursor, :attempt_count,
	 :actions, :max_retries, :retry_delay_seconds, :backoff, :result, :error_category, :error_message,
	 :attempts, :next_eligible_at, :create_time, :start_time, :end_time)
	`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return storage.ErrDuplicateTrigger
		}
		return fmt.Errorf("创建Execution失败: %w", err)
	}
	return nil
}

// GetByID 根据ID查询Execution
func (r *executionRepo) GetByID(ctx context.Context, id string) (*workflow.Execution, error) {
	var d dao.ExecutionDAO
	query := r.db.Rebind(`SELECT * FROM workflow_execution WHERE id = ?`)
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询Execution失败: %w", err)
	}
	return executionFromDAO(&d)
}

// MarkRunning pending → running
// WHERE status='pending'保证状态机不跳步、不重入
func (r *executionRepo) MarkRunning(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE workflow_execution SET status = ?, start_time = ? WHERE id = ? AND status = ?`)
	result, err := r.db.ExecContext(ctx, query, string(workflow.StatusRunning), time.Now(), id, string(workflow.StatusPending))
	if err != nil {
		return fmt.Errorf("更新Execution状态失败: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return r.classifyTransitionFailure(ctx, id)
	}
	return nil
}

// MarkTerminal 转入终态
// WHERE子句限定非终态行，保证状态写入单调
func (r *executionRepo) MarkTerminal(ctx context.Context, id string, status workflow.ExecutionStatus, errCategory, errMessage string, result map[string]interface{}) error {
	if !status.IsTerminal() {
		return fmt.Errorf("状态%s不是终态", status)
	}

	var resultJSON sql.NullString
	if len(result) > 0 {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("序列化result失败: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := r.db.Rebind(`
	UPDATE workflow_execution
	SET status = ?, error_category = ?, error_message = ?, result = ?, end_time = ?
	WHERE id = ? AND status IN ('pending', 'running')
	`)
	res, err := r.db.ExecContext(ctx, query,
		string(status), nullableString(errCategory), nullableString(errMessage), resultJSON, time.Now(), id)
	if err != nil {
		return fmt.Errorf("更新Execution终态失败: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return r.classifyTransitionFailure(ctx, id)
	}
	return nil
}

// RecordLateOutcome 补记已取消执行的迟到回调
// WHERE status='cancelled'保证completed/failed行不会被改写
func (r *executionRepo) RecordLateOutcome(ctx context.Context, id string, result map[string]interface{}, attempts []workflow.AttemptRecord) error {
	var resultJSON sql.NullString
	if len(result) > 0 {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("序列化result失败: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}
	var attemptsJSON sql.NullString
	if len(attempts) > 0 {
		data, err := json.Marshal(attempts)
		if err != nil {
			return fmt.Errorf("序列化尝试记录失败: %w", err)
		}
		attemptsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := r.db.Rebind(`
	UPDATE workflow_execution
	SET result = ?, attempts = ?
	WHERE id = ? AND status = 'cancelled'
	`)
	res, err := r.db.ExecContext(ctx, query, resultJSON, attemptsJSON, id)
	if err != nil {
		return fmt.Errorf("补记迟到回调失败: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return r.classifyTransitionFailure(ctx, id)
	}
	return nil
}

// classifyTransitionFailure 区分记录不存在和终态拒绝（内部方法）
func (r *executionRepo) classifyTransitionFailure(ctx context.Context, id string) error {
	exec, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exec == nil {
		return storage.ErrNotFound
	}
	return storage.ErrTerminalState
}

// UpdateProgress 持久化断点数据
func (r *executionRepo) UpdateProgress(ctx context.Context, id string, cursor, attemptCount int, attempts []workflow.AttemptRecord, nextEligibleAt *time.Time) error {
	var attemptsJSON sql.NullString
	if len(attempts) > 0 {
		data, err := json.Marshal(attempts)
		if err != nil {
			return fmt.Errorf("序列化尝试记录失败: %w", err)
		}
		attemptsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var eligible sql.NullTime
	if nextEligibleAt != nil {
		eligible = sql.NullTime{Time: *nextEligibleAt, Valid: true}
	}

	query := r.db.Rebind(`
	UPDATE workflow_execution
	SET action_cursor = ?, attempt_count = ?, attempts = ?, next_eligible_at = ?
	WHERE id = ? AND status IN ('pending', 'running')
	`)
	res, err := r.db.ExecContext(ctx, query, cursor, attemptCount, attemptsJSON, eligible, id)
	if err != nil {
		return fmt.Errorf("更新Execution断点失败: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return r.classifyTransitionFailure(ctx, id)
	}
	return nil
}

// List 按条件分页查询
func (r *executionRepo) List(ctx context.Context, filter storage.ExecutionFilter) ([]*workflow.Execution, int, error) {
	conds := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	if filter.WorkflowID != "" {
		conds = append(conds, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "create_time >= ?")
		args = append(args, *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "create_time <= ?")
		args = append(args, *filter.CreatedTo)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := r.db.Rebind(`SELECT COUNT(*) FROM workflow_execution` + where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("统计Execution数量失败: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	listQuery := r.db.Rebind(`SELECT * FROM workflow_execution` + where + ` ORDER BY create_time DESC LIMIT ? OFFSET ?`)
	listArgs := append(args, limit, filter.Offset)

	var daos []dao.ExecutionDAO
	if err := r.db.SelectContext(ctx, &daos, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("查询Execution列表失败: %w", err)
	}

	executions := make([]*workflow.Execution, 0, len(daos))
	for i := range daos {
		exec, err := executionFromDAO(&daos[i])
		if err != nil {
			return nil, 0, err
		}
		executions = append(executions, exec)
	}
	return executions, total, nil
}

// ListResumable 查询所有未完成的Execution
// Engine重启后据此恢复执行进度
func (r *executionRepo) ListResumable(ctx context.Context) ([]*workflow.Execution, error) {
	var daos []dao.ExecutionDAO
	query := r.db.Rebind(`SELECT * FROM workflow_execution WHERE status IN ('pending', 'running') ORDER BY create_time ASC`)
	if err := r.db.SelectContext(ctx, &daos, query); err != nil {
		return nil, fmt.Errorf("查询未完成Execution失败: %w", err)
	}

	executions := make([]*workflow.Execution, 0, len(daos))
	for i := range daos {
		exec, err := executionFromDAO(&daos[i])
		if err != nil {
			return nil, err
		}
		executions = append(executions, exec)
	}
	return executions, nil
}

// HasNonTerminal 判断Workflow是否存在未终态的Execution
func (r *executionRepo) HasNonTerminal(ctx context.Context, workflowID string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM workflow_execution WHERE workflow_id = ? AND status IN ('pending', 'running')`)
	if err := r.db.GetContext(ctx, &count, query, workflowID); err != nil {
		return false, fmt.Errorf("查询未完成Execution失败: %w", err)
	}
	return count > 0, nil
}

// nullableString 空字符串转NULL（内部辅助函数）
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
