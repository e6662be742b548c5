package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stevelan1995/mailpilot/pkg/core/webhook"
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// RuntimeDispatcher 外部动作运行时的转发接口（对外导出）
type RuntimeDispatcher interface {
	Dispatch(ctx context.Context, exec *workflow.Execution, act workflow.Action) error
}

// dispatchRequest 转发给外部运行时的请求体
type dispatchRequest struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	ActionIndex int                    `json:"action_index"`
	ActionType  string                 `json:"action_type"`
	Config      map[string]interface{} `json:"config"`
}

// RuntimeClient 外部动作运行时的HTTP客户端（对外导出）
// 对请求体做HMAC签名，运行时完成后通过Webhook回调上报结果
type RuntimeClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewRuntimeClient 创建运行时客户端（对外导出的工厂方法）
func NewRuntimeClient(baseURL, secret string) *RuntimeClient {
	return &RuntimeClient{
		baseURL: baseURL,
		secret:  secret,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Dispatch 将外部动作转发给运行时（实现RuntimeDispatcher接口）
// 仅确认运行时接收成功，执行结果通过回调异步上报
func (c *RuntimeClient) Dispatch(ctx context.Context, exec *workflow.Execution, act workflow.Action) error {
	if c.baseURL == "" {
		return &workflow.DispatchError{ActionType: act.Type, Err: fmt.Errorf("未配置运行时地址")}
	}

	body, err := json.Marshal(dispatchRequest{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		ActionIndex: exec.ActionCursor,
		ActionType:  string(act.Type),
		Config:      act.Config,
	})
	if err != nil {
		return &workflow.FatalActionError{ActionType: act.Type, Reason: fmt.Sprintf("序列化请求失败: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dispatch", bytes.NewReader(body))
	if err != nil {
		return &workflow.DispatchError{ActionType: act.Type, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(c.secret, body))

	resp, err := c.client.Do(req)
	if err != nil {
		return &workflow.DispatchError{ActionType: act.Type, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &workflow.DispatchError{
			ActionType: act.Type,
			Err:        fmt.Errorf("运行时返回状态码 %d: %s", resp.StatusCode, string(payload)),
		}
	}
	return nil
}
