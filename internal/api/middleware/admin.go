package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/yatube/pkg/response"
)

// AdminToken 校验 X-Admin-Token 或 Bearer 令牌；未配置令牌时一律拒绝
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Token")
		if got == "" {
			got = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Forbidden(c, "admin token required")
			c.Abort()
			return
		}
		c.Next()
	}
}
