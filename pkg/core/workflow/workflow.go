// Package workflow 定义邮件自动化的核心领域模型
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType 触发器类型（对外导出）
type TriggerType string

const (
	TriggerEmailReceived TriggerType = "email_received" // 收到邮件时触发
	TriggerWebhook       TriggerType = "webhook"        // 外部Webhook触发
	TriggerSchedule      TriggerType = "schedule"       // 定时触发
	TriggerManual        TriggerType = "manual"         // 手动触发
)

// IsValid 校验触发器类型是否合法
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerEmailReceived, TriggerWebhook, TriggerSchedule, TriggerManual:
		return true
	}
	return false
}

// ActionType 动作类型（对外导出）
type ActionType string

const (
	ActionSendAutoReply   ActionType = "send_auto_reply"  // 发送自动回复
	ActionCreateTicket    ActionType = "create_ticket"    // 创建工单
	ActionNotify          ActionType = "notify"           // 发送通知
	ActionCategorizeEmail ActionType = "categorize_email" // 更新邮件分类
)

// IsValid 校验动作类型是否合法
func (t ActionType) IsValid() bool {
	switch t {
	case ActionSendAutoReply, ActionCreateTicket, ActionNotify, ActionCategorizeEmail:
		return true
	}
	return false
}

// Condition 触发条件（field, operator, value三元组）
// 由小型解释器求值，不支持任意代码
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value" yaml:"value"`
}

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxRetries        int    `json:"max_retries" yaml:"max_retries"`                 // 最大重试次数（0-10）
	RetryDelaySeconds int    `json:"retry_delay_seconds" yaml:"retry_delay_seconds"` // 重试间隔秒数（1-3600）
	Backoff           string `json:"backoff,omitempty" yaml:"backoff,omitempty"`     // fixed（默认）或 exponential
}

// Backoff策略常量
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Action 工作流动作定义
// 嵌入Workflow后不可变；编辑Workflow产生新的动作列表，
// 不影响已按快照执行的Execution
type Action struct {
	Type         ActionType             `json:"type" yaml:"type"`
	Config       map[string]interface{} `json:"config" yaml:"config"`
	DelayMinutes int                    `json:"delay_minutes" yaml:"delay_minutes"` // 相对上一个动作完成的最小等待
}

// IsExternal 判断动作是否交由外部自动化运行时执行
func (a Action) IsExternal() bool {
	v, ok := a.Config["external"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ConfigString 读取动作配置中的字符串字段
func (a Action) ConfigString(key string) (string, bool) {
	v, ok := a.Config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Workflow 用户定义的自动化规则（对外导出）
// 将触发条件映射到有序的动作序列
type Workflow struct {
	ID                string      `json:"id"`
	OwnerID           string      `json:"owner_id"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	TriggerType       TriggerType `json:"trigger_type"`
	TriggerConditions []Condition `json:"trigger_conditions"`
	Actions           []Action    `json:"actions"`
	Schedule          string      `json:"schedule,omitempty"` // Cron表达式（仅schedule触发器）
	Active            bool        `json:"active"`
	RetryPolicy       RetryPolicy `json:"retry_policy"`
	CreateTime        time.Time   `json:"created_at"`
	UpdateTime        time.Time   `json:"updated_at"`
}

// NewWorkflow 创建Workflow实例（对外导出的工厂方法）
func NewWorkflow(ownerID, name, description string) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		TriggerType: TriggerEmailReceived,
		Active:      true,
		RetryPolicy: RetryPolicy{MaxRetries: 3, RetryDelaySeconds: 60, Backoff: BackoffFixed},
		CreateTime:  now,
		UpdateTime:  now,
	}
}

// SnapshotActions 返回动作列表的深拷贝
// Execution按此快照执行，后续编辑Workflow不影响在途实例
func (w *Workflow) SnapshotActions() []Action {
	snapshot := make([]Action, len(w.Actions))
	for i, act := range w.Actions {
		cfg := make(map[string]interface{}, len(act.Config))
		for k, v := range act.Config {
			cfg[k] = v
		}
		snapshot[i] = Action{
			Type:         act.Type,
			Config:       cfg,
			DelayMinutes: act.DelayMinutes,
		}
	}
	return snapshot
}

// conditionFields 触发条件允许引用的分类字段
var conditionFields = map[string]bool{
	"category":   true,
	"priority":   true,
	"sender":     true,
	"from":       true,
	"subject":    true,
	"confidence": true,
}

// conditionOperators 触发条件支持的操作符
var conditionOperators = map[string]bool{
	"equals":     true,
	"not_equals": true,
	"contains":   true,
}

// Validate 校验Workflow定义合法性（对外导出）
// 校验失败返回ValidationError，在CRUD边界同步拒绝，不落库
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &ValidationError{Field: "name", Reason: "名称不能为空"}
	}
	if w.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "所有者不能为空"}
	}
	if !w.TriggerType.IsValid() {
		return &ValidationError{Field: "trigger_type", Reason: "不支持的触发器类型: " + string(w.TriggerType)}
	}
	if w.TriggerType == TriggerSchedule && w.Schedule == "" {
		return &ValidationError{Field: "schedule", Reason: "schedule触发器必须设置Cron表达式"}
	}
	for _, cond := range w.TriggerConditions {
		if !conditionFields[cond.Field] {
			return &ValidationError{Field: "trigger_conditions", Reason: "条件字段无法匹配分类结果: " + cond.Field}
		}
		op := cond.Operator
		if op == "" {
			op = "equals"
		}
		if !conditionOperators[op] {
			return &ValidationError{Field: "trigger_conditions", Reason: "不支持的操作符: " + cond.Operator}
		}
	}
	if len(w.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "至少需要一个动作"}
	}
	for _, act := range w.Actions {
		if !act.Type.IsValid() {
			return &ValidationError{Field: "actions", Reason: "不支持的动作类型: " + string(act.Type)}
		}
		if act.DelayMinutes < 0 {
			return &ValidationError{Field: "actions", Reason: "delay_minutes不能为负数"}
		}
	}
	if w.RetryPolicy.MaxRetries < 0 || w.RetryPolicy.MaxRetries > 10 {
		return &ValidationError{Field: "retry_policy", Reason: "max_retries必须在0-10之间"}
	}
	if w.RetryPolicy.RetryDelaySeconds < 1 || w.RetryPolicy.RetryDelaySeconds > 3600 {
		return &ValidationError{Field: "retry_policy", Reason: "retry_delay_seconds必须在1-3600之间"}
	}
	if w.RetryPolicy.Backoff != "" && w.RetryPolicy.Backoff != BackoffFixed && w.RetryPolicy.Backoff != BackoffExponential {
		return &ValidationError{Field: "retry_policy", Reason: "backoff仅支持fixed或exponential"}
	}
	return nil
}
