// Package classifier 基于关键词加权打分的邮件分类器
package classifier

import (
	"strings"
)

// 分类结果常量
const (
	CategoryUncategorized = "uncategorized"

	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Result 分类结果
type Result struct {
	Category        string  `json:"category"`
	Priority        string  `json:"priority"`
	ConfidenceScore float64 `json:"confidence_score"` // [0,1]
}

// Keyword 带权重的关键词
type Keyword struct {
	Text   string  `json:"text" yaml:"text"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Category 分类定义
// 配置中的定义顺序即同分时的优先顺序
type Category struct {
	Name     string    `json:"name" yaml:"name"`
	Priority string    `json:"priority" yaml:"priority"` // 该分类的默认优先级
	Keywords []Keyword `json:"keywords" yaml:"keywords"`
}

// Config 分类器配置
type Config struct {
	SubjectWeight   float64    `json:"subject_weight" yaml:"subject_weight"`     // 主题命中的加权倍数
	MinScore        float64    `json:"min_score" yaml:"min_score"`               // 低于该分数归为uncategorized
	UrgencyKeywords []string   `json:"urgency_keywords" yaml:"urgency_keywords"` // 紧急指示词
	Categories      []Category `json:"categories" yaml:"categories"`
}

// DefaultConfig 默认分类规则（对外导出）
func DefaultConfig() Config {
	return Config{
		SubjectWeight: 3.0,
		MinScore:      1.0,
		UrgencyKeywords: []string{
			"urgent", "emergency", "asap", "immediately", "right away",
		},
		Categories: []Category{
			{
				Name:     "urgent_issue",
				Priority: PriorityHigh,
				Keywords: []Keyword{
					{Text: "urgent", Weight: 1.0},
					{Text: "emergency", Weight: 1.0},
					{Text: "not heating", Weight: 1.0},
					{Text: "not working", Weight: 1.0},
					{Text: "stopped working", Weight: 1.0},
					{Text: "broken", Weight: 1.0},
					{Text: "leaking", Weight: 1.0},
					{Text: "leak", Weight: 0.8},
					{Text: "no power", Weight: 1.0},
					{Text: "error code", Weight: 0.8},
				},
			},
			{
				Name:     "support_request",
				Priority: PriorityNormal,
				Keywords: []Keyword{
					{Text: "help", Weight: 0.8},
					{Text: "question", Weight: 0.8},
					{Text: "how do i", Weight: 1.0},
					{Text: "issue", Weight: 0.6},
					{Text: "problem", Weight: 0.6},
					{Text: "support", Weight: 0.8},
					{Text: "maintenance", Weight: 0.8},
					{Text: "water quality", Weight: 0.8},
				},
			},
			{
				Name:     "sales_inquiry",
				Priority: PriorityNormal,
				Keywords: []Keyword{
					{Text: "quote", Weight: 1.0},
					{Text: "price", Weight: 0.8},
					{Text: "pricing", Weight: 0.8},
					{Text: "cost", Weight: 0.6},
					{Text: "purchase", Weight: 0.8},
					{Text: "interested in", Weight: 1.0},
					{Text: "buy", Weight: 0.6},
				},
			},
			{
				Name:     "billing_question",
				Priority: PriorityNormal,
				Keywords: []Keyword{
					{Text: "invoice", Weight: 1.0},
					{Text: "billing", Weight: 1.0},
					{Text: "payment", Weight: 0.8},
					{Text: "refund", Weight: 1.0},
					{Text: "charged", Weight: 0.8},
					{Text: "receipt", Weight: 0.8},
				},
			},
			{
				Name:     "feedback",
				Priority: PriorityLow,
				Keywords: []Keyword{
					{Text: "thank you", Weight: 0.8},
					{Text: "feedback", Weight: 1.0},
					{Text: "review", Weight: 0.6},
					{Text: "great service", Weight: 1.0},
				},
			},
		},
	}
}

// Classifier 邮件分类器（对外导出）
// 纯函数式：不落库、无副作用，Email实体的持久化由调用方负责
type Classifier struct {
	cfg Config
}

// New 创建分类器实例（对外导出的工厂方法）
func New(cfg Config) *Classifier {
	if cfg.SubjectWeight <= 0 {
		cfg.SubjectWeight = 3.0
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 1.0
	}
	return &Classifier{cfg: cfg}
}

// Classify 对原始邮件字段打分分类（对外导出）
// 主题命中按SubjectWeight加权；置信度为Top分类得分的归一化值；
// 同分时取配置中先定义的分类
func (c *Classifier) Classify(from, subject, body string) Result {
	subject = strings.ToLower(subject)
	bodyText := strings.ToLower(ExtractText(body))
	_ = from // 发件人仅参与触发条件匹配，不参与打分

	var (
		topName  string
		topScore float64
		topPrio  string
		total    float64
	)
	for _, cat := range c.cfg.Categories {
		score := 0.0
		for _, kw := range cat.Keywords {
			text := strings.ToLower(kw.Text)
			weight := kw.Weight
			if weight <= 0 {
				weight = 1.0
			}
			score += weight * c.cfg.SubjectWeight * float64(strings.Count(subject, text))
			score += weight * float64(strings.Count(bodyText, text))
		}
		total += score
		// 严格大于：同分时保留先定义的分类
		if score > topScore {
			topScore = score
			topName = cat.Name
			topPrio = cat.Priority
		}
	}

	urgent := c.hasUrgencyKeyword(subject, bodyText)

	// 未达到阈值：归为uncategorized，置信度为0
	// 结果仍会流向下游，但不会命中要求特定分类的触发条件
	if topScore < c.cfg.MinScore {
		priority := PriorityNormal
		if urgent {
			priority = PriorityHigh
		}
		return Result{Category: CategoryUncategorized, Priority: priority, ConfidenceScore: 0}
	}

	confidence := topScore / total
	if confidence > 1 {
		confidence = 1
	}

	priority := topPrio
	if priority == "" {
		priority = PriorityNormal
	}
	// 分类默认优先级之外，紧急指示词强制提升为high
	if urgent {
		priority = PriorityHigh
	}

	return Result{Category: topName, Priority: priority, ConfidenceScore: confidence}
}

// hasUrgencyKeyword 判断主题或正文是否包含紧急指示词
func (c *Classifier) hasUrgencyKeyword(subject, body string) bool {
	for _, kw := range c.cfg.UrgencyKeywords {
		text := strings.ToLower(kw)
		if strings.Contains(subject, text) || strings.Contains(body, text) {
			return true
		}
	}
	return false
}
