package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

func testEmail() *workflow.Email {
	email := workflow.NewEmail("owner-1", "customer@example.com", "Hot tub not heating", "please help", time.Now())
	email.Category = "urgent_issue"
	email.Priority = "high"
	email.ConfidenceScore = 0.85
	return email
}

func emailWorkflow(name string, conds ...workflow.Condition) *workflow.Workflow {
	wf := workflow.NewWorkflow("owner-1", name, "")
	wf.TriggerConditions = conds
	wf.Actions = []workflow.Action{
		{Type: workflow.ActionNotify, Config: map[string]interface{}{"message": "matched"}},
	}
	return wf
}

func TestEvaluateCondition(t *testing.T) {
	email := testEmail()

	t.Run("equals忽略大小写", func(t *testing.T) {
		assert.True(t, EvaluateCondition(workflow.Condition{Field: "category", Operator: OpEquals, Value: "URGENT_ISSUE"}, email))
		assert.False(t, EvaluateCondition(workflow.Condition{Field: "category", Operator: OpEquals, Value: "feedback"}, email))
	})

	t.Run("not_equals", func(t *testing.T) {
		assert.True(t, EvaluateCondition(workflow.Condition{Field: "priority", Operator: OpNotEquals, Value: "low"}, email))
		assert.False(t, EvaluateCondition(workflow.Condition{Field: "priority", Operator: OpNotEquals, Value: "high"}, email))
	})

	t.Run("contains", func(t *testing.T) {
		assert.True(t, EvaluateCondition(workflow.Condition{Field: "subject", Operator: OpContains, Value: "not heating"}, email))
		assert.True(t, EvaluateCondition(workflow.Condition{Field: "from", Operator: OpContains, Value: "@example.com"}, email))
		assert.False(t, EvaluateCondition(workflow.Condition{Field: "subject", Operator: OpContains, Value: "invoice"}, email))
	})

	t.Run("confidence按两位小数比较", func(t *testing.T) {
		assert.True(t, EvaluateCondition(workflow.Condition{Field: "confidence", Operator: OpEquals, Value: "0.85"}, email))
	})

	t.Run("操作符缺省按equals", func(t *testing.T) {
		assert.True(t, EvaluateCondition(workflow.Condition{Field: "category", Value: "urgent_issue"}, email))
	})

	t.Run("未知字段不匹配", func(t *testing.T) {
		assert.False(t, EvaluateCondition(workflow.Condition{Field: "attachment", Operator: OpEquals, Value: "x"}, email))
	})
}

func TestEvaluateAll(t *testing.T) {
	email := testEmail()

	t.Run("空条件列表匹配任意邮件", func(t *testing.T) {
		assert.True(t, EvaluateAll(nil, email))
	})

	t.Run("全部条件同时满足", func(t *testing.T) {
		conds := []workflow.Condition{
			{Field: "category", Operator: OpEquals, Value: "urgent_issue"},
			{Field: "priority", Operator: OpEquals, Value: "high"},
		}
		assert.True(t, EvaluateAll(conds, email))

		conds = append(conds, workflow.Condition{Field: "from", Operator: OpEquals, Value: "other@example.com"})
		assert.False(t, EvaluateAll(conds, email))
	})
}

func TestMatchEmail(t *testing.T) {
	email := testEmail()

	t.Run("命中多个Workflow", func(t *testing.T) {
		wfA := emailWorkflow("urgent-reply", workflow.Condition{Field: "category", Operator: OpEquals, Value: "urgent_issue"})
		wfB := emailWorkflow("all-mail")
		wfC := emailWorkflow("billing-only", workflow.Condition{Field: "category", Operator: OpEquals, Value: "billing_question"})

		matches := MatchEmail(email, []*workflow.Workflow{wfA, wfB, wfC})
		require.Len(t, matches, 2)
		assert.Equal(t, wfA.ID, matches[0].Workflow.ID)
		assert.Equal(t, wfB.ID, matches[1].Workflow.ID)
	})

	t.Run("跳过停用的Workflow", func(t *testing.T) {
		wf := emailWorkflow("disabled")
		wf.Active = false
		assert.Empty(t, MatchEmail(email, []*workflow.Workflow{wf}))
	})

	t.Run("跳过非邮件触发器", func(t *testing.T) {
		wf := emailWorkflow("cron-job")
		wf.TriggerType = workflow.TriggerSchedule
		wf.Schedule = "0 0 * * * *"
		assert.Empty(t, MatchEmail(email, []*workflow.Workflow{wf}))
	})

	t.Run("同一Workflow重复出现只命中一次", func(t *testing.T) {
		wf := emailWorkflow("dup")
		matches := MatchEmail(email, []*workflow.Workflow{wf, wf})
		assert.Len(t, matches, 1)
	})

	t.Run("无状态可重复调用", func(t *testing.T) {
		wf := emailWorkflow("stateless")
		first := MatchEmail(email, []*workflow.Workflow{wf})
		second := MatchEmail(email, []*workflow.Workflow{wf})
		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.Equal(t, first[0].Workflow.ID, second[0].Workflow.ID)
	})

	t.Run("动作列表是快照", func(t *testing.T) {
		wf := emailWorkflow("snapshot")
		matches := MatchEmail(email, []*workflow.Workflow{wf})
		require.Len(t, matches, 1)

		wf.Actions[0].Config["message"] = "changed"
		assert.Equal(t, "matched", matches[0].Actions[0].Config["message"])
	})
}
