package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWorkflow() *Workflow {
	wf := NewWorkflow("owner-1", "紧急邮件自动回复", "")
	wf.TriggerConditions = []Condition{
		{Field: "category", Operator: "equals", Value: "urgent_issue"},
	}
	wf.Actions = []Action{
		{Type: ActionSendAutoReply, Config: map[string]interface{}{"template": "We got your message, {{from}}"}},
	}
	return wf
}

func TestWorkflowValidate(t *testing.T) {
	t.Run("合法定义通过", func(t *testing.T) {
		assert.NoError(t, validWorkflow().Validate())
	})

	t.Run("名称为空", func(t *testing.T) {
		wf := validWorkflow()
		wf.Name = ""
		var ve *ValidationError
		require.ErrorAs(t, wf.Validate(), &ve)
		assert.Equal(t, "name", ve.Field)
	})

	t.Run("未知触发器类型", func(t *testing.T) {
		wf := validWorkflow()
		wf.TriggerType = TriggerType("carrier_pigeon")
		var ve *ValidationError
		require.ErrorAs(t, wf.Validate(), &ve)
		assert.Equal(t, "trigger_type", ve.Field)
	})

	t.Run("条件字段不在分类结果内", func(t *testing.T) {
		wf := validWorkflow()
		wf.TriggerConditions = []Condition{{Field: "phase_of_moon", Operator: "equals", Value: "full"}}
		var ve *ValidationError
		require.ErrorAs(t, wf.Validate(), &ve)
		assert.Equal(t, "trigger_conditions", ve.Field)
	})

	t.Run("不支持的操作符", func(t *testing.T) {
		wf := validWorkflow()
		wf.TriggerConditions = []Condition{{Field: "category", Operator: "regex", Value: ".*"}}
		assert.Error(t, wf.Validate())
	})

	t.Run("操作符缺省按equals处理", func(t *testing.T) {
		wf := validWorkflow()
		wf.TriggerConditions = []Condition{{Field: "priority", Value: "high"}}
		assert.NoError(t, wf.Validate())
	})

	t.Run("动作列表为空", func(t *testing.T) {
		wf := validWorkflow()
		wf.Actions = nil
		var ve *ValidationError
		require.ErrorAs(t, wf.Validate(), &ve)
		assert.Equal(t, "actions", ve.Field)
	})

	t.Run("延迟为负数", func(t *testing.T) {
		wf := validWorkflow()
		wf.Actions[0].DelayMinutes = -5
		assert.Error(t, wf.Validate())
	})

	t.Run("重试次数超出上限", func(t *testing.T) {
		wf := validWorkflow()
		wf.RetryPolicy.MaxRetries = 11
		var ve *ValidationError
		require.ErrorAs(t, wf.Validate(), &ve)
		assert.Equal(t, "retry_policy", ve.Field)
	})

	t.Run("重试间隔超出范围", func(t *testing.T) {
		wf := validWorkflow()
		wf.RetryPolicy.RetryDelaySeconds = 7200
		assert.Error(t, wf.Validate())
	})

	t.Run("schedule触发器缺少表达式", func(t *testing.T) {
		wf := validWorkflow()
		wf.TriggerType = TriggerSchedule
		wf.Schedule = ""
		var ve *ValidationError
		require.ErrorAs(t, wf.Validate(), &ve)
		assert.Equal(t, "schedule", ve.Field)
	})
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to ExecutionStatus
		allowed  bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false}, // 不允许跳过running
		{StatusPending, StatusFailed, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusCompleted, StatusRunning, false}, // 终态不可逆
		{StatusFailed, StatusCancelled, false},
		{StatusCancelled, StatusRunning, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestSnapshotActions(t *testing.T) {
	wf := validWorkflow()
	exec := NewExecution(wf, "email-1", nil)

	// 触发后修改Workflow不影响快照
	wf.Actions[0].Config["template"] = "changed"
	wf.Actions = append(wf.Actions, Action{Type: ActionNotify})

	require.Len(t, exec.Actions, 1)
	assert.Equal(t, "We got your message, {{from}}", exec.Actions[0].Config["template"])
}

func TestExecutionCursor(t *testing.T) {
	wf := validWorkflow()
	wf.Actions = append(wf.Actions, Action{Type: ActionNotify, Config: map[string]interface{}{"message": "hi"}})
	exec := NewExecution(wf, "", nil)

	act, ok := exec.CurrentAction()
	require.True(t, ok)
	assert.Equal(t, ActionSendAutoReply, act.Type)
	assert.False(t, exec.Finished())

	exec.ActionCursor = 2
	_, ok = exec.CurrentAction()
	assert.False(t, ok)
	assert.True(t, exec.Finished())
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("分类标签", func(t *testing.T) {
		assert.Equal(t, ErrCategoryDispatch, CategoryOf(&DispatchError{ActionType: ActionNotify}))
		assert.Equal(t, ErrCategoryTimeout, CategoryOf(&TimeoutError{ActionType: ActionNotify}))
		assert.Equal(t, ErrCategoryFatal, CategoryOf(&FatalActionError{ActionType: ActionNotify}))
		assert.Equal(t, ErrCategorySignature, CategoryOf(&SignatureError{Source: "runtime"}))
		assert.Equal(t, ErrCategoryValidation, CategoryOf(&ValidationError{Field: "name"}))
		assert.Equal(t, ErrCategoryUnknown, CategoryOf(assert.AnError))
	})

	t.Run("仅瞬时错误可重试", func(t *testing.T) {
		assert.True(t, IsRetryable(&DispatchError{ActionType: ActionNotify}))
		assert.True(t, IsRetryable(&TimeoutError{ActionType: ActionNotify}))
		assert.False(t, IsRetryable(&FatalActionError{ActionType: ActionNotify}))
		assert.False(t, IsRetryable(&ValidationError{Field: "name"}))
		assert.False(t, IsRetryable(assert.AnError))
	})
}
