package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-blog/pkg/auth"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

const (
	ctxUserID   = "auth.user_id"
	ctxUsername = "auth.username"

	// LoginURL 未登录时的跳转目标
	LoginURL = "/login"
)

// Authenticate 解析 Bearer 令牌；没有令牌时按匿名放行
func Authenticate(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			response.Unauthorized(c, "malformed authorization header", LoginURL)
			return
		}
		claims, err := tokens.Parse(strings.TrimSpace(header[7:]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token", LoginURL)
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// RequireAuth 匿名请求返回 401 并指向登录页
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); !ok {
			response.Unauthorized(c, "authentication required", LoginURL)
			return
		}
		c.Next()
	}
}

// CurrentUserID 当前登录用户
func CurrentUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ctxUserID)
	return id, id != ""
}
