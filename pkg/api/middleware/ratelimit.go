package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/stevelan1995/mailpilot/pkg/api/dto"
)

// RateLimit 入站接口限流中间件
// 超过速率的请求返回429，附带Retry-After提示
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps)
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, dto.NewErrorResponse(429, "请求过于频繁，请稍后重试"))
			c.Abort()
			return
		}
		c.Next()
	}
}
