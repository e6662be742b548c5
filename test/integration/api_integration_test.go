package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/mailpilot/internal/app"
	"github.com/stevelan1995/mailpilot/pkg/api"
	"github.com/stevelan1995/mailpilot/pkg/api/dto"
	"github.com/stevelan1995/mailpilot/pkg/config"
	"github.com/stevelan1995/mailpilot/pkg/core/webhook"
)

func newTestApp(t *testing.T) (*app.App, *gin.Engine) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "api_test.db")
	cfg.Webhook.RuntimeSecret = "runtime-secret"
	cfg.Webhook.MailSecret = "mail-secret"
	cfg.RateLimit.RPS = 1000
	cfg.RateLimit.Burst = 1000

	application, err := app.New(cfg)
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(application.Stop)

	return application, api.SetupRouter(application.RouterDeps("test-version"))
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) dto.APIResponse[T] {
	t.Helper()
	var resp dto.APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestAPIIntegration 覆盖API层的完整链路：
// 创建Workflow、入站邮件触发执行、查询与取消、Webhook验签
func TestAPIIntegration(t *testing.T) {
	_, router := newTestApp(t)

	var workflowID string
	var executionID string

	t.Run("健康检查", func(t *testing.T) {
		w := doJSON(router, "GET", "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		resp := decode[dto.HealthResponse](t, w)
		assert.Equal(t, 0, resp.Code)
		assert.Equal(t, "healthy", resp.Data.Status)
		assert.Equal(t, "test-version", resp.Data.Version)
	})

	t.Run("创建Workflow", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/workflows", map[string]interface{}{
			"owner_id":     "owner-api",
			"name":         "紧急邮件通知",
			"trigger_type": "email_received",
			"trigger_conditions": []map[string]interface{}{
				{"field": "category", "operator": "equals", "value": "urgent_issue"},
			},
			"actions": []map[string]interface{}{
				{"type": "notify", "config": map[string]interface{}{"channel": "ops", "message": "urgent mail"}},
			},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decode[dto.WorkflowView](t, w)
		assert.Equal(t, 0, resp.Code)
		assert.NotEmpty(t, resp.Data.ID)
		assert.True(t, resp.Data.Active)
		workflowID = resp.Data.ID
	})

	t.Run("非法Workflow被拒绝", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/workflows", map[string]interface{}{
			"owner_id":     "owner-api",
			"name":         "坏定义",
			"trigger_type": "email_received",
			"actions": []map[string]interface{}{
				{"type": "teleport", "config": map[string]interface{}{}},
			},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("入站邮件触发执行", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/emails/inbound", map[string]interface{}{
			"owner_id": "owner-api",
			"from":     "customer@example.com",
			"subject":  "URGENT: hot tub leaking",
			"body":     "water everywhere, please help immediately",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decode[dto.InboundEmailResponse](t, w)
		assert.Equal(t, "urgent_issue", resp.Data.Email.Category)
		require.Len(t, resp.Data.ExecutionIDs, 1)
		executionID = resp.Data.ExecutionIDs[0]
	})

	t.Run("查询执行记录直至完成", func(t *testing.T) {
		require.Eventually(t, func() bool {
			w := doJSON(router, "GET", "/api/v1/executions/"+executionID, nil)
			if w.Code != http.StatusOK {
				return false
			}
			resp := decode[dto.ExecutionView](t, w)
			return resp.Data.Status == "completed"
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("已完成的执行无法取消", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/executions/"+executionID+"/cancel", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("执行列表按Workflow过滤", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/executions?workflow_id="+workflowID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[dto.ListResponse[dto.ExecutionView]](t, w)
		assert.Equal(t, 1, resp.Data.Total)
	})

	t.Run("手动执行", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/v1/workflows/"+workflowID+"/execute", map[string]interface{}{
			"trigger_data": map[string]interface{}{"reason": "drill"},
		})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		resp := decode[dto.ExecuteResponse](t, w)
		assert.NotEmpty(t, resp.Data.ExecutionID)
	})

	t.Run("不存在的执行记录", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/v1/executions/no-such-id", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestWebhookEndpoints Webhook入口的验签与幂等
func TestWebhookEndpoints(t *testing.T) {
	_, router := newTestApp(t)

	postSigned := func(path string, body []byte, signature string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest("POST", path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(webhook.SignatureHeader, signature)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("伪造签名返回401", func(t *testing.T) {
		body := []byte(`{"message_id":"m-1","owner_id":"owner-hook","from":"a@b.com","subject":"hi"}`)
		w := postSigned("/api/v1/webhooks/mail", body, "deadbeef")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("合法邮件推送入库", func(t *testing.T) {
		body := []byte(`{"message_id":"m-2","owner_id":"owner-hook","from":"a@b.com","subject":"pricing please","body":"how much is the hot tub"}`)
		w := postSigned("/api/v1/webhooks/mail", body, webhook.Sign("mail-secret", body))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[dto.InboundEmailResponse](t, w)
		assert.Equal(t, "sales_inquiry", resp.Data.Email.Category)
	})

	t.Run("重复推送返回duplicate", func(t *testing.T) {
		body := []byte(`{"message_id":"m-2","owner_id":"owner-hook","from":"a@b.com","subject":"pricing please","body":"how much is the hot tub"}`)
		w := postSigned("/api/v1/webhooks/mail", body, webhook.Sign("mail-secret", body))
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[dto.WebhookAckResponse](t, w)
		assert.True(t, resp.Data.Duplicate)
	})

	t.Run("运行时回调确认", func(t *testing.T) {
		body := []byte(`{"event_id":"evt-api-1","execution_id":"exec-unknown","workflow_id":"wf-1","action_index":0,"status":"completed"}`)
		w := postSigned("/api/v1/webhooks/runtime", body, webhook.Sign("runtime-secret", body))
		// 对应执行不存在，网关处理失败但验签通过
		assert.NotEqual(t, http.StatusUnauthorized, w.Code)
	})
}

// TestWorkflowDeletion 删除守卫
func TestWorkflowDeletion(t *testing.T) {
	_, router := newTestApp(t)

	w := doJSON(router, "POST", "/api/v1/workflows", map[string]interface{}{
		"owner_id":     "owner-del",
		"name":         "可删除的工作流",
		"trigger_type": "email_received",
		"trigger_conditions": []map[string]interface{}{
			{"field": "category", "operator": "equals", "value": "billing_question"},
		},
		"actions": []map[string]interface{}{
			{"type": "notify", "config": map[string]interface{}{"channel": "billing", "message": "bill"}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[dto.WorkflowView](t, w)
	id := resp.Data.ID

	t.Run("无执行记录时可删除", func(t *testing.T) {
		w := doJSON(router, "DELETE", "/api/v1/workflows/"+id, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("重复删除返回404", func(t *testing.T) {
		w := doJSON(router, "DELETE", "/api/v1/workflows/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
