package action

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/mailpilot/pkg/core/webhook"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

func TestRuntimeClient(t *testing.T) {
	ctx := context.Background()

	exec := &workflow.Execution{ID: "exec-1", WorkflowID: "wf-1", ActionCursor: 2}
	act := workflow.Action{Type: workflow.ActionCreateTicket, Config: map[string]interface{}{
		"external": true,
		"queue":    "support",
	}}

	t.Run("请求体签名且携带执行上下文", func(t *testing.T) {
		var gotBody []byte
		var gotSignature string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/dispatch", r.URL.Path)
			gotBody, _ = io.ReadAll(r.Body)
			gotSignature = r.Header.Get(webhook.SignatureHeader)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		client := NewRuntimeClient(srv.URL, "runtime-secret")
		require.NoError(t, client.Dispatch(ctx, exec, act))

		assert.NoError(t, webhook.Verify("runtime", "runtime-secret", gotBody, gotSignature))

		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(gotBody, &req))
		assert.Equal(t, "exec-1", req["execution_id"])
		assert.Equal(t, float64(2), req["action_index"])
		assert.Equal(t, "create_ticket", req["action_type"])
	})

	t.Run("非2xx按可重试派发错误处理", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "queue full", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewRuntimeClient(srv.URL, "runtime-secret")
		err := client.Dispatch(ctx, exec, act)
		var de *workflow.DispatchError
		require.ErrorAs(t, err, &de)
		assert.True(t, workflow.IsRetryable(err))
	})

	t.Run("运行时不可达", func(t *testing.T) {
		client := NewRuntimeClient("http://127.0.0.1:1", "runtime-secret")
		err := client.Dispatch(ctx, exec, act)
		assert.True(t, workflow.IsRetryable(err))
	})
}
