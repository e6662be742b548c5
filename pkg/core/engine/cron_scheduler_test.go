package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/mailpilot/pkg/core/action"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
	"github.com/stevelan1995/mailpilot/pkg/storage"
)

func TestValidateSchedule(t *testing.T) {
	t.Run("六字段表达式合法", func(t *testing.T) {
		assert.NoError(t, ValidateSchedule("0 0 9 * * 1"))
		assert.NoError(t, ValidateSchedule("*/5 * * * * *"))
		assert.NoError(t, ValidateSchedule("@hourly"))
	})

	t.Run("非法表达式返回校验错误", func(t *testing.T) {
		var ve *workflow.ValidationError
		require.ErrorAs(t, ValidateSchedule("not a cron"), &ve)
		assert.Equal(t, "schedule", ve.Field)
	})
}

func TestSchedulerFires(t *testing.T) {
	ctx := context.Background()

	handler := &fakeHandler{actionType: workflow.ActionNotify}
	registry := action.NewRegistry()
	registry.Register(handler)
	env := newTestEnv(t, registry, nil, fastOptions())
	require.NoError(t, env.engine.Start(ctx))
	defer env.engine.Stop()

	wf := notifyWorkflow("owner-cron")
	wf.TriggerType = workflow.TriggerSchedule
	wf.Schedule = "* * * * * *" // 每秒触发
	require.NoError(t, env.workflows.Save(ctx, wf))

	inactive := notifyWorkflow("owner-cron")
	inactive.TriggerType = workflow.TriggerSchedule
	inactive.Schedule = "* * * * * *"
	inactive.Active = false
	require.NoError(t, env.workflows.Save(ctx, inactive))

	scheduler := NewScheduler(env.engine, env.workflows)
	require.NoError(t, scheduler.Start(ctx))
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		items, _, err := env.executions.List(ctx, storage.ExecutionFilter{WorkflowID: wf.ID, Limit: 10})
		return err == nil && len(items) > 0
	}, 3*time.Second, 50*time.Millisecond)

	t.Run("停用的工作流不触发", func(t *testing.T) {
		items, _, err := env.executions.List(ctx, storage.ExecutionFilter{WorkflowID: inactive.ID, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("重载后停用即不再触发", func(t *testing.T) {
		wf.Active = false
		require.NoError(t, env.workflows.Update(ctx, wf))
		require.NoError(t, scheduler.Reload(ctx))

		items, _, err := env.executions.List(ctx, storage.ExecutionFilter{WorkflowID: wf.ID, Limit: 100})
		require.NoError(t, err)
		before := len(items)

		time.Sleep(1100 * time.Millisecond)
		items, _, err = env.executions.List(ctx, storage.ExecutionFilter{WorkflowID: wf.ID, Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, before, len(items))
	})
}
