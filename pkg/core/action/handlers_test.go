package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// captureMailer 记录发出的邮件
type captureMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

// captureNotifier 记录发出的通知
type captureNotifier struct {
	channel string
	message string
}

func (n *captureNotifier) Notify(channel, message string) error {
	n.channel, n.message = channel, message
	return nil
}

// categoryStore 只实现UpdateCategory的Email存储替身
type categoryStore struct {
	id       string
	category string
	err      error
}

func (s *categoryStore) Save(context.Context, *workflow.Email) error { return nil }
func (s *categoryStore) GetByID(context.Context, string) (*workflow.Email, error) {
	return nil, nil
}
func (s *categoryStore) UpdateCategory(_ context.Context, id, category string) error {
	s.id, s.category = id, category
	return s.err
}

func triggeredEmail() *workflow.Email {
	email := workflow.NewEmail("owner-1", "customer@example.com", "jets not working", "help please", time.Now())
	email.Category = "urgent_issue"
	email.Priority = "high"
	return email
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry()

	t.Run("未注册的动作类型致命失败", func(t *testing.T) {
		_, err := registry.Execute(ctx, workflow.Action{Type: workflow.ActionNotify}, &workflow.Execution{}, nil)
		var fe *workflow.FatalActionError
		require.ErrorAs(t, err, &fe)
		assert.False(t, workflow.IsRetryable(err))
	})

	t.Run("后注册者覆盖前者", func(t *testing.T) {
		first := NewNotifyHandler(&captureNotifier{})
		second := NewNotifyHandler(&captureNotifier{})
		registry.Register(first)
		registry.Register(second)

		h, ok := registry.Get(workflow.ActionNotify)
		require.True(t, ok)
		assert.Same(t, second, h)
	})
}

func TestAutoReplyHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("模板渲染并回复发件人", func(t *testing.T) {
		mailer := &captureMailer{}
		h := NewAutoReplyHandler(mailer, "support@example.com")

		act := workflow.Action{Type: workflow.ActionSendAutoReply, Config: map[string]interface{}{
			"template": "Hi {{from}}, we received: {{subject}} ({{category}}/{{priority}})",
		}}
		result, err := h.Execute(ctx, act, &workflow.Execution{}, triggeredEmail())
		require.NoError(t, err)

		assert.Equal(t, "customer@example.com", mailer.to)
		assert.Equal(t, "Re: jets not working", mailer.subject)
		assert.Equal(t, "Hi customer@example.com, we received: jets not working (urgent_issue/high)", mailer.body)
		assert.Equal(t, "customer@example.com", result["replied_to"])
	})

	t.Run("缺少模板致命失败", func(t *testing.T) {
		h := NewAutoReplyHandler(&captureMailer{}, "support@example.com")
		_, err := h.Execute(ctx, workflow.Action{Type: workflow.ActionSendAutoReply, Config: map[string]interface{}{}}, &workflow.Execution{}, triggeredEmail())
		var fe *workflow.FatalActionError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("非邮件触发且未配置to致命失败", func(t *testing.T) {
		h := NewAutoReplyHandler(&captureMailer{}, "support@example.com")
		act := workflow.Action{Type: workflow.ActionSendAutoReply, Config: map[string]interface{}{"template": "hi"}}
		_, err := h.Execute(ctx, act, &workflow.Execution{}, nil)
		var fe *workflow.FatalActionError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("发送失败按可重试处理", func(t *testing.T) {
		mailer := &captureMailer{err: errors.New("连接被拒绝")}
		h := NewAutoReplyHandler(mailer, "support@example.com")
		act := workflow.Action{Type: workflow.ActionSendAutoReply, Config: map[string]interface{}{"template": "hi"}}
		_, err := h.Execute(ctx, act, &workflow.Execution{}, triggeredEmail())
		assert.True(t, workflow.IsRetryable(err))
	})
}

func TestNotifyHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("通知渲染占位符", func(t *testing.T) {
		notifier := &captureNotifier{}
		h := NewNotifyHandler(notifier)

		act := workflow.Action{Type: workflow.ActionNotify, Config: map[string]interface{}{
			"channel": "ops",
			"message": "{{priority}} mail from {{from}}",
		}}
		_, err := h.Execute(ctx, act, &workflow.Execution{}, triggeredEmail())
		require.NoError(t, err)
		assert.Equal(t, "ops", notifier.channel)
		assert.Equal(t, "high mail from customer@example.com", notifier.message)
	})

	t.Run("缺少message致命失败", func(t *testing.T) {
		h := NewNotifyHandler(&captureNotifier{})
		_, err := h.Execute(ctx, workflow.Action{Type: workflow.ActionNotify, Config: map[string]interface{}{}}, &workflow.Execution{}, nil)
		var fe *workflow.FatalActionError
		assert.ErrorAs(t, err, &fe)
	})
}

func TestCreateTicketHandler(t *testing.T) {
	ctx := context.Background()
	h := NewCreateTicketHandler()

	t.Run("用邮件主题兜底标题", func(t *testing.T) {
		email := triggeredEmail()
		result, err := h.Execute(ctx, workflow.Action{Type: workflow.ActionCreateTicket, Config: map[string]interface{}{}}, &workflow.Execution{}, email)
		require.NoError(t, err)
		assert.Equal(t, "jets not working", result["title"])
		assert.Equal(t, "high", result["priority"])
		assert.NotEmpty(t, result["ticket_id"])
		assert.Equal(t, email.ID, result["email_id"])
	})

	t.Run("无标题可用时致命失败", func(t *testing.T) {
		_, err := h.Execute(ctx, workflow.Action{Type: workflow.ActionCreateTicket, Config: map[string]interface{}{}}, &workflow.Execution{}, nil)
		var fe *workflow.FatalActionError
		assert.ErrorAs(t, err, &fe)
	})
}

func TestCategorizeEmailHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("覆盖邮件分类", func(t *testing.T) {
		store := &categoryStore{}
		h := NewCategorizeEmailHandler(store)
		email := triggeredEmail()

		act := workflow.Action{Type: workflow.ActionCategorizeEmail, Config: map[string]interface{}{"category": "support_request"}}
		result, err := h.Execute(ctx, act, &workflow.Execution{}, email)
		require.NoError(t, err)
		assert.Equal(t, email.ID, store.id)
		assert.Equal(t, "support_request", store.category)
		assert.Equal(t, "support_request", result["category"])
	})

	t.Run("非邮件触发致命失败", func(t *testing.T) {
		h := NewCategorizeEmailHandler(&categoryStore{})
		act := workflow.Action{Type: workflow.ActionCategorizeEmail, Config: map[string]interface{}{"category": "x"}}
		_, err := h.Execute(ctx, act, &workflow.Execution{}, nil)
		var fe *workflow.FatalActionError
		assert.ErrorAs(t, err, &fe)
	})
}
