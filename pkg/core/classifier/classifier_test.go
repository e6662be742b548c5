package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_UrgentIssue(t *testing.T) {
	c := New(DefaultConfig())

	result := c.Classify(
		"customer@example.com",
		"URGENT: Hot tub not heating",
		"Hi, our hot tub stopped working yesterday. Please respond immediately.",
	)

	assert.Equal(t, "urgent_issue", result.Category)
	assert.Equal(t, PriorityHigh, result.Priority)
	assert.Greater(t, result.ConfidenceScore, 0.7, "主题双命中加权后置信度应明显高于阈值")
}

func TestClassify_SalesInquiry(t *testing.T) {
	c := New(DefaultConfig())

	result := c.Classify(
		"buyer@example.com",
		"Quote request",
		"I am interested in purchasing a new hot tub. Can you send pricing?",
	)

	assert.Equal(t, "sales_inquiry", result.Category)
	assert.Equal(t, PriorityNormal, result.Priority)
	assert.Greater(t, result.ConfidenceScore, 0.0)
}

func TestClassify_BelowThreshold(t *testing.T) {
	c := New(DefaultConfig())

	result := c.Classify("someone@example.com", "Meeting tomorrow", "See you at 10am.")

	assert.Equal(t, CategoryUncategorized, result.Category)
	assert.Equal(t, PriorityNormal, result.Priority)
	assert.Zero(t, result.ConfidenceScore)
}

func TestClassify_TieBreakFirstDefined(t *testing.T) {
	// 两个分类对同一关键词权重相同，同分时取先定义的分类
	c := New(Config{
		SubjectWeight: 3.0,
		MinScore:      1.0,
		Categories: []Category{
			{Name: "alpha", Priority: PriorityNormal, Keywords: []Keyword{{Text: "renewal", Weight: 1.0}}},
			{Name: "beta", Priority: PriorityNormal, Keywords: []Keyword{{Text: "renewal", Weight: 1.0}}},
		},
	})

	result := c.Classify("a@example.com", "renewal", "")

	assert.Equal(t, "alpha", result.Category)
}

func TestClassify_UrgencyKeywordEscalatesPriority(t *testing.T) {
	c := New(DefaultConfig())

	// feedback分类默认low，但正文包含紧急指示词时强制high
	result := c.Classify(
		"fan@example.com",
		"Thank you",
		"Thank you for the great service! Please call me back asap.",
	)

	assert.Equal(t, "feedback", result.Category)
	assert.Equal(t, PriorityHigh, result.Priority)
}

func TestClassify_SubjectWeighting(t *testing.T) {
	c := New(DefaultConfig())

	inSubject := c.Classify("a@example.com", "invoice", "help")
	inBody := c.Classify("a@example.com", "about my account", "invoice help")

	// 同一关键词出现在主题应比出现在正文得到更高的归一化置信度
	assert.Equal(t, "billing_question", inSubject.Category)
	assert.Equal(t, "billing_question", inBody.Category)
	assert.Greater(t, inSubject.ConfidenceScore, inBody.ConfidenceScore)
}

func TestExtractText(t *testing.T) {
	t.Run("纯文本原样返回", func(t *testing.T) {
		assert.Equal(t, "hello world", ExtractText("hello world"))
	})

	t.Run("HTML去标签", func(t *testing.T) {
		html := `<html><body><p>Hot tub   <b>broken</b></p><script>alert(1)</script></body></html>`
		text := ExtractText(html)
		assert.Contains(t, text, "Hot tub broken")
		assert.NotContains(t, text, "alert")
	})

	t.Run("style内容被移除", func(t *testing.T) {
		html := `<div><style>p { color: red; }</style><p>invoice attached</p></div>`
		text := ExtractText(html)
		assert.Contains(t, text, "invoice attached")
		assert.NotContains(t, text, "color")
	})
}
