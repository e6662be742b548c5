package sqldb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
	"github.com/stevelan1995/mailpilot/pkg/storage/sqlite"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "mailpilot_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testWorkflow(owner string) *workflow.Workflow {
	wf := workflow.NewWorkflow(owner, "紧急邮件自动回复", "收到紧急分类邮件时自动回复")
	wf.TriggerConditions = []workflow.Condition{
		{Field: "category", Operator: "equals", Value: "urgent_issue"},
	}
	wf.Actions = []workflow.Action{
		{Type: workflow.ActionSendAutoReply, Config: map[string]interface{}{"template": "We got it, {{from}}"}},
		{Type: workflow.ActionNotify, Config: map[string]interface{}{"channel": "ops", "message": "urgent"}},
	}
	return wf
}

func TestWorkflowRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewWorkflowRepo(db, sqlite.NewDialect())
	require.NoError(t, err)

	t.Run("保存后读取往返", func(t *testing.T) {
		wf := testWorkflow("owner-rt")
		require.NoError(t, repo.Save(ctx, wf))

		got, err := repo.GetByID(ctx, wf.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, wf.Name, got.Name)
		assert.Equal(t, workflow.TriggerEmailReceived, got.TriggerType)
		assert.Equal(t, wf.TriggerConditions, got.TriggerConditions)
		require.Len(t, got.Actions, 2)
		assert.Equal(t, workflow.ActionNotify, got.Actions[1].Type)
		assert.Equal(t, 3, got.RetryPolicy.MaxRetries)
		assert.True(t, got.Active)
	})

	t.Run("不存在返回nil", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("更新不存在的记录", func(t *testing.T) {
		wf := testWorkflow("owner-miss")
		assert.ErrorIs(t, repo.Update(ctx, wf), storage.ErrNotFound)
	})

	t.Run("更新生效", func(t *testing.T) {
		wf := testWorkflow("owner-up")
		require.NoError(t, repo.Save(ctx, wf))

		wf.Active = false
		wf.Name = "已停用"
		require.NoError(t, repo.Update(ctx, wf))

		got, err := repo.GetByID(ctx, wf.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Equal(t, "已停用", got.Name)
	})

	t.Run("列表按所有者过滤并分页", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Save(ctx, testWorkflow("owner-list")))
		}

		items, total, err := repo.List(ctx, storage.WorkflowFilter{OwnerID: "owner-list", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, items, 2)

		items, total, err = repo.List(ctx, storage.WorkflowFilter{OwnerID: "owner-list", Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, items, 1)
	})

	t.Run("按分类引用过滤", func(t *testing.T) {
		wf := testWorkflow("owner-cat")
		require.NoError(t, repo.Save(ctx, wf))

		items, _, err := repo.List(ctx, storage.WorkflowFilter{OwnerID: "owner-cat", Category: "urgent_issue", Limit: 10})
		require.NoError(t, err)
		assert.Len(t, items, 1)

		items, _, err = repo.List(ctx, storage.WorkflowFilter{OwnerID: "owner-cat", Category: "sales_inquiry", Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("激活列表跳过停用项", func(t *testing.T) {
		active := testWorkflow("owner-act")
		inactive := testWorkflow("owner-act")
		inactive.Active = false
		require.NoError(t, repo.Save(ctx, active))
		require.NoError(t, repo.Save(ctx, inactive))

		items, err := repo.ListActiveByOwner(ctx, "owner-act")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, active.ID, items[0].ID)
	})
}

func TestWorkflowDeleteGuard(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	workflows, err := NewWorkflowRepo(db, sqlite.NewDialect())
	require.NoError(t, err)
	executions, err := NewExecutionRepo(db, sqlite.NewDialect())
	require.NoError(t, err)

	wf := testWorkflow("owner-del")
	require.NoError(t, workflows.Save(ctx, wf))
	exec := workflow.NewExecution(wf, "email-del", nil)
	require.NoError(t, executions.Create(ctx, exec))

	t.Run("存在未完成Execution时拒绝删除", func(t *testing.T) {
		assert.ErrorIs(t, workflows.Delete(ctx, wf.ID), storage.ErrWorkflowHasActiveExecutions)
	})

	t.Run("Execution进入终态后可删除", func(t *testing.T) {
		require.NoError(t, executions.MarkTerminal(ctx, exec.ID, workflow.StatusCancelled, "", "", nil))
		require.NoError(t, workflows.Delete(ctx, wf.ID))

		got, err := workflows.GetByID(ctx, wf.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("删除不存在的记录", func(t *testing.T) {
		assert.ErrorIs(t, workflows.Delete(ctx, "no-such-id"), storage.ErrNotFound)
	})
}

func TestExecutionRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewExecutionRepo(db, sqlite.NewDialect())
	require.NoError(t, err)

	t.Run("创建后读取往返", func(t *testing.T) {
		wf := testWorkflow("owner-ex")
		exec := workflow.NewExecution(wf, "email-rt", map[string]interface{}{"category": "urgent_issue"})
		require.NoError(t, repo.Create(ctx, exec))

		got, err := repo.GetByID(ctx, exec.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, workflow.StatusPending, got.Status)
		assert.Equal(t, 0, got.ActionCursor)
		require.Len(t, got.Actions, 2)
		assert.Equal(t, wf.RetryPolicy, got.RetryPolicy)
		assert.Equal(t, "urgent_issue", got.TriggerData["category"])
	})

	t.Run("同一邮件对同一Workflow只触发一次", func(t *testing.T) {
		wf := testWorkflow("owner-dup")
		require.NoError(t, repo.Create(ctx, workflow.NewExecution(wf, "email-dup", nil)))

		err := repo.Create(ctx, workflow.NewExecution(wf, "email-dup", nil))
		assert.ErrorIs(t, err, storage.ErrDuplicateTrigger)
	})

	t.Run("手动触发不受去重约束", func(t *testing.T) {
		wf := testWorkflow("owner-manual")
		require.NoError(t, repo.Create(ctx, workflow.NewExecution(wf, "", nil)))
		require.NoError(t, repo.Create(ctx, workflow.NewExecution(wf, "", nil)))
	})

	t.Run("状态单调不可逆", func(t *testing.T) {
		wf := testWorkflow("owner-mono")
		exec := workflow.NewExecution(wf, "email-mono", nil)
		require.NoError(t, repo.Create(ctx, exec))

		require.NoError(t, repo.MarkRunning(ctx, exec.ID))
		require.NoError(t, repo.MarkTerminal(ctx, exec.ID, workflow.StatusCompleted, "", "", map[string]interface{}{"action_0": "ok"}))

		// 终态之后任何回写都被拒绝
		assert.ErrorIs(t, repo.MarkTerminal(ctx, exec.ID, workflow.StatusCancelled, "", "", nil), storage.ErrTerminalState)
		assert.ErrorIs(t, repo.UpdateProgress(ctx, exec.ID, 5, 0, nil, nil), storage.ErrTerminalState)

		got, err := repo.GetByID(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusCompleted, got.Status)
		assert.Equal(t, "ok", got.Result["action_0"])
		assert.NotNil(t, got.EndTime)
	})

	t.Run("pending可直接取消", func(t *testing.T) {
		wf := testWorkflow("owner-cancel")
		exec := workflow.NewExecution(wf, "email-cancel", nil)
		require.NoError(t, repo.Create(ctx, exec))

		require.NoError(t, repo.MarkTerminal(ctx, exec.ID, workflow.StatusCancelled, "", "", nil))
		assert.ErrorIs(t, repo.MarkRunning(ctx, exec.ID), storage.ErrTerminalState)
	})

	t.Run("不存在的记录转换报ErrNotFound", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkRunning(ctx, "no-such-id"), storage.ErrNotFound)
	})

	t.Run("断点持久化", func(t *testing.T) {
		wf := testWorkflow("owner-progress")
		exec := workflow.NewExecution(wf, "email-progress", nil)
		require.NoError(t, repo.Create(ctx, exec))
		require.NoError(t, repo.MarkRunning(ctx, exec.ID))

		eligible := time.Now().Add(30 * time.Second)
		attempts := []workflow.AttemptRecord{
			{ActionIndex: 1, Attempt: 1, Error: "派发失败", At: time.Now()},
		}
		require.NoError(t, repo.UpdateProgress(ctx, exec.ID, 1, 1, attempts, &eligible))

		got, err := repo.GetByID(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ActionCursor)
		assert.Equal(t, 1, got.AttemptCount)
		require.Len(t, got.Attempts, 1)
		assert.Equal(t, "派发失败", got.Attempts[0].Error)
		require.NotNil(t, got.NextEligibleAt)
	})

	t.Run("取消后可补记迟到回调", func(t *testing.T) {
		wf := testWorkflow("owner-late")
		exec := workflow.NewExecution(wf, "email-late", nil)
		require.NoError(t, repo.Create(ctx, exec))
		require.NoError(t, repo.MarkRunning(ctx, exec.ID))
		require.NoError(t, repo.MarkTerminal(ctx, exec.ID, workflow.StatusCancelled, "", "所有者取消", nil))

		result := map[string]interface{}{"action_0": map[string]interface{}{"ticket_id": "T-1"}}
		attempts := []workflow.AttemptRecord{{ActionIndex: 0, Attempt: 1, Error: "运行时超时", At: time.Now()}}
		require.NoError(t, repo.RecordLateOutcome(ctx, exec.ID, result, attempts))

		got, err := repo.GetByID(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusCancelled, got.Status, "补记不改变状态")
		assert.Equal(t, 0, got.AttemptCount)
		require.Len(t, got.Attempts, 1)
		action0, ok := got.Result["action_0"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "T-1", action0["ticket_id"])
	})

	t.Run("completed行拒绝补记", func(t *testing.T) {
		wf := testWorkflow("owner-late-done")
		exec := workflow.NewExecution(wf, "email-late-done", nil)
		require.NoError(t, repo.Create(ctx, exec))
		require.NoError(t, repo.MarkRunning(ctx, exec.ID))
		require.NoError(t, repo.MarkTerminal(ctx, exec.ID, workflow.StatusCompleted, "", "", nil))

		err := repo.RecordLateOutcome(ctx, exec.ID, map[string]interface{}{"action_0": "late"}, nil)
		assert.ErrorIs(t, err, storage.ErrTerminalState)
		assert.ErrorIs(t, repo.RecordLateOutcome(ctx, "no-such-id", nil, nil), storage.ErrNotFound)
	})

	t.Run("可恢复列表只含非终态", func(t *testing.T) {
		db := newTestDB(t)
		repo, err := NewExecutionRepo(db, sqlite.NewDialect())
		require.NoError(t, err)

		wf := testWorkflow("owner-resume")
		pending := workflow.NewExecution(wf, "email-r1", nil)
		running := workflow.NewExecution(wf, "email-r2", nil)
		done := workflow.NewExecution(wf, "email-r3", nil)
		for _, e := range []*workflow.Execution{pending, running, done} {
			require.NoError(t, repo.Create(ctx, e))
		}
		require.NoError(t, repo.MarkRunning(ctx, running.ID))
		require.NoError(t, repo.MarkRunning(ctx, done.ID))
		require.NoError(t, repo.MarkTerminal(ctx, done.ID, workflow.StatusFailed, "fatal", "模板缺失", nil))

		resumable, err := repo.ListResumable(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(resumable))
		for _, e := range resumable {
			ids = append(ids, e.ID)
		}
		assert.ElementsMatch(t, []string{pending.ID, running.ID}, ids)

		active, err := repo.HasNonTerminal(ctx, wf.ID)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("列表按状态过滤", func(t *testing.T) {
		wf := testWorkflow("owner-filter")
		exec := workflow.NewExecution(wf, "email-f1", nil)
		require.NoError(t, repo.Create(ctx, exec))

		items, total, err := repo.List(ctx, storage.ExecutionFilter{
			WorkflowID: wf.ID,
			Status:     workflow.StatusPending,
			Limit:      10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, exec.ID, items[0].ID)
	})
}

func TestEmailRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewEmailRepo(db, sqlite.NewDialect())
	require.NoError(t, err)

	email := workflow.NewEmail("owner-mail", "customer@example.com", "hot tub help", "jets stopped working", time.Now())
	email.Category = "urgent_issue"
	email.Priority = "high"
	email.ConfidenceScore = 0.92

	t.Run("保存后读取往返", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, email))

		got, err := repo.GetByID(ctx, email.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "urgent_issue", got.Category)
		assert.Equal(t, "high", got.Priority)
		assert.InDelta(t, 0.92, got.ConfidenceScore, 0.001)
	})

	t.Run("更新分类", func(t *testing.T) {
		require.NoError(t, repo.UpdateCategory(ctx, email.ID, "support_request"))

		got, err := repo.GetByID(ctx, email.ID)
		require.NoError(t, err)
		assert.Equal(t, "support_request", got.Category)
	})
}

func TestWebhookEventRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo, err := NewWebhookEventRepo(db, sqlite.NewDialect())
	require.NoError(t, err)

	t.Run("首次记录不是重复", func(t *testing.T) {
		duplicate, err := repo.Record(ctx, "runtime", "evt-1")
		require.NoError(t, err)
		assert.False(t, duplicate)
	})

	t.Run("重复event_id被识别", func(t *testing.T) {
		duplicate, err := repo.Record(ctx, "runtime", "evt-1")
		require.NoError(t, err)
		assert.True(t, duplicate)
	})

	t.Run("不同来源互不影响", func(t *testing.T) {
		duplicate, err := repo.Record(ctx, "mail", "evt-1")
		require.NoError(t, err)
		assert.False(t, duplicate)
	})

	t.Run("撤销后同一event_id可再次记录", func(t *testing.T) {
		require.NoError(t, repo.Forget(ctx, "runtime", "evt-1"))

		duplicate, err := repo.Record(ctx, "runtime", "evt-1")
		require.NoError(t, err)
		assert.False(t, duplicate)
	})
}
