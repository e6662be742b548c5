package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText 提取邮件正文的纯文本（对外导出）
// HTML正文先剥离标签、脚本和样式后再参与关键词打分；
// 纯文本正文原样返回
func ExtractText(body string) string {
	if !strings.Contains(body, "<") {
		return body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// 解析失败时退回原始文本
		return body
	}

	doc.Find("script, style").Remove()
	text := doc.Text()

	// 压缩连续空白，保持关键词短语可匹配
	return strings.Join(strings.Fields(text), " ")
}
