// Package mailpilot Mailpilot HTTP API客户端
package mailpilot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
)

// Client HTTP API客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建Client客户端
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ========== Workflow API ==========

// ListWorkflows 列出Workflow
func (t *Client) ListWorkflows(ownerID string, limit, offset int) (*dto.ListResponse[dto.WorkflowView], error) {
	params := url.Values{}
	if ownerID != "" {
		params.Set("owner_id", ownerID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}

	path := "/api/v1/workflows"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp dto.APIResponse[dto.ListResponse[dto.WorkflowView]]
	if err := t.get(path, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// GetWorkflow 获取Workflow详情
func (t *Client) GetWorkflow(id string) (*dto.WorkflowView, error) {
	var resp dto.APIResponse[dto.WorkflowView]
	if err := t.get("/api/v1/workflows/"+id, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// CreateWorkflow 创建Workflow
func (t *Client) CreateWorkflow(req dto.CreateWorkflowRequest) (*dto.WorkflowView, error) {
	var resp dto.APIResponse[dto.WorkflowView]
	if err := t.post("/api/v1/workflows", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// DeleteWorkflow 删除Workflow
func (t *Client) DeleteWorkflow(id string) error {
	var resp dto.APIResponse[any]
	if err := t.delete("/api/v1/workflows/"+id, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}

// ExecuteWorkflow 手动执行Workflow
func (t *Client) ExecuteWorkflow(id string, triggerData map[string]interface{}) (*dto.ExecuteResponse, error) {
	req := dto.ExecuteWorkflowRequest{TriggerData: triggerData}
	var resp dto.APIResponse[dto.ExecuteResponse]
	if err := t.post("/api/v1/workflows/"+id+"/execute", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// ========== Execution API ==========

// ListExecutions 列出Execution
func (t *Client) ListExecutions(workflowID, status string, limit, offset int) (*dto.ListResponse[dto.ExecutionView], error) {
	params := url.Values{}
	if workflowID != "" {
		params.Set("workflow_id", workflowID)
	}
	if status != "" {
		params.Set("status", status)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}

	path := "/api/v1/executions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp dto.APIResponse[dto.ListResponse[dto.ExecutionView]]
	if err := t.get(path, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// GetExecution 获取Execution详情
func (t *Client) GetExecution(id string) (*dto.ExecutionView, error) {
	var resp dto.APIResponse[dto.ExecutionView]
	if err := t.get("/api/v1/executions/"+id, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// CancelExecution 取消Execution
func (t *Client) CancelExecution(id string) error {
	var resp dto.APIResponse[any]
	if err := t.post("/api/v1/executions/"+id+"/cancel", nil, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}

// ========== Email API ==========

// SubmitEmail 投递一封入站邮件
func (t *Client) SubmitEmail(req dto.InboundEmailRequest) (*dto.InboundEmailResponse, error) {
	var resp dto.APIResponse[dto.InboundEmailResponse]
	if err := t.post("/api/v1/emails/inbound", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// ========== Health API ==========

// Health 健康检查
func (t *Client) Health() (*dto.HealthResponse, error) {
	var resp dto.APIResponse[dto.HealthResponse]
	if err := t.get("/health", &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("%s", resp.Message)
	}
	return &resp.Data, nil
}

// ========== HTTP Methods ==========

func (t *Client) get(path string, result interface{}) error {
	resp, err := t.httpClient.Get(t.baseURL + path)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return t.parseResponse(resp, result)
}

func (t *Client) post(path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := t.httpClient.Post(t.baseURL+path, "application/json", reqBody)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return t.parseResponse(resp, result)
}

func (t *Client) delete(path string, result interface{}) error {
	req, err := http.NewRequest(http.MethodDelete, t.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	return t.parseResponse(resp, result)
}

func (t *Client) parseResponse(resp *http.Response, result interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("解析响应失败: %w, body: %s", err, string(body))
	}

	return nil
}
