// Package trigger 触发条件求值与Workflow匹配
package trigger

import (
	"fmt"
	"strings"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// 触发条件支持的操作符
const (
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpContains  = "contains"
)

// fieldValue 从Email的分类结果中取出条件字段对应的值
func fieldValue(email *workflow.Email, field string) (string, bool) {
	switch field {
	case "category":
		return email.Category, true
	case "priority":
		return email.Priority, true
	case "sender", "from":
		return email.From, true
	case "subject":
		return email.Subject, true
	case "confidence":
		return fmt.Sprintf("%.2f", email.ConfidenceScore), true
	}
	return "", false
}

// EvaluateCondition 对单个条件求值（对外导出）
// 精确匹配，无通配符；未知字段一律不匹配，保持求值全函数化
func EvaluateCondition(cond workflow.Condition, email *workflow.Email) bool {
	actual, ok := fieldValue(email, cond.Field)
	if !ok {
		return false
	}

	op := cond.Operator
	if op == "" {
		op = OpEquals
	}

	switch op {
	case OpEquals:
		return strings.EqualFold(actual, cond.Value)
	case OpNotEquals:
		return !strings.EqualFold(actual, cond.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(cond.Value))
	}
	return false
}

// EvaluateAll 对条件列表求值（对外导出）
// 所有条件同时满足才算命中；空条件列表匹配任意邮件
func EvaluateAll(conds []workflow.Condition, email *workflow.Email) bool {
	for _, cond := range conds {
		if !EvaluateCondition(cond, email) {
			return false
		}
	}
	return true
}
