package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	t.Run("执行事件往返", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := bus.SubscribeEvents(ctx)
		require.NoError(t, err)

		ev := NewEvent(EventExecutionCompleted, "exec-1", "wf-1").
			WithPayload("action_index", 2)
		require.NoError(t, bus.PublishEvent(ev))

		select {
		case got := <-ch:
			assert.Equal(t, EventExecutionCompleted, got.Type)
			assert.Equal(t, "exec-1", got.ExecutionID)
			assert.Equal(t, "wf-1", got.WorkflowID)
		case <-time.After(time.Second):
			t.Fatal("未收到执行事件")
		}
	})

	t.Run("动作结果往返", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := bus.SubscribeOutcomes(ctx)
		require.NoError(t, err)

		require.NoError(t, bus.PublishOutcome(&ActionOutcome{
			ExecutionID: "exec-2",
			ActionIndex: 1,
			Success:     true,
			Source:      OutcomeSourceRuntime,
			EventID:     "evt-1",
		}))

		select {
		case got := <-ch:
			assert.Equal(t, "exec-2", got.ExecutionID)
			assert.True(t, got.Success)
			assert.Equal(t, OutcomeSourceRuntime, got.Source)
		case <-time.After(time.Second):
			t.Fatal("未收到动作结果")
		}
	})

	t.Run("ctx取消后通道关闭", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := bus.SubscribeEvents(ctx)
		require.NoError(t, err)
		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})
}
