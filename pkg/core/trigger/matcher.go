package trigger

import (
	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// Match 命中的Workflow及其动作列表快照（对外导出）
type Match struct {
	Workflow *workflow.Workflow
	Actions  []workflow.Action
}

// MatchEmail 计算一封已分类邮件命中的Workflow集合（对外导出）
// Matcher本身无状态，重复调用返回相同结果；
// 同一(email, workflow)只触发一次由Execution Store的唯一约束保证，
// 而不是由这里保证（重试场景下Matcher可能被多次调用）
func MatchEmail(email *workflow.Email, candidates []*workflow.Workflow) []Match {
	matches := make([]Match, 0)
	seen := make(map[string]bool, len(candidates))

	for _, wf := range candidates {
		if !wf.Active {
			continue
		}
		if wf.TriggerType != workflow.TriggerEmailReceived {
			continue
		}
		if seen[wf.ID] {
			continue
		}
		if !EvaluateAll(wf.TriggerConditions, email) {
			continue
		}

		seen[wf.ID] = true
		matches = append(matches, Match{
			Workflow: wf,
			Actions:  wf.SnapshotActions(),
		})
	}

	return matches
}
