package middleware

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/gin-blog/pkg/logger"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

// Recovery 每个请求克隆一个 Sentry hub；panic 时上报并返回 500，5xx 的错误一并上报。
// 未初始化 Sentry 时 hub 没有 client，上报为空操作。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			if r := recover(); r != nil {
				hub.RecoverWithContext(ctx, r)
				logger.Error("panic recovered", zap.Any("panic", r), zap.String("path", c.Request.URL.Path))
				response.InternalError(c, fmt.Errorf("panic: %v", r))
			}
		}()

		c.Next()

		if c.Writer.Status() >= 500 {
			if uid, ok := CurrentUserID(c); ok {
				hub.Scope().SetUser(sentry.User{ID: uid})
			}
			for _, e := range c.Errors {
				hub.CaptureException(e.Err)
			}
		}
	}
}
