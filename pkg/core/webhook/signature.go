package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/stevelan1995/mailpilot/pkg/core/workflow"
)

// SignatureHeader 回调请求携带签名的HTTP头名称（对外导出）
const SignatureHeader = "X-Mailpilot-Signature"

// Sign 使用HMAC-SHA256对请求体签名，返回十六进制摘要（对外导出）
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验请求体签名（对外导出）
func Verify(source, secret string, body []byte, signature string) error {
	if signature == "" {
		return &workflow.SignatureError{Source: source}
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return &workflow.SignatureError{Source: source}
	}
	return nil
}
