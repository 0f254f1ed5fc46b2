package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应体
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notice 提示消息级别
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice 一次性提示消息（配合跳转展示）
type Notice struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// RedirectData 跳转结果
type RedirectData struct {
	Redirect string  `json:"redirect"`
	Notice   *Notice `json:"notice,omitempty"`
	Extra    any     `json:"extra,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Redirect 303 跳转到 target 并附带提示；code 为业务码，成功为 0
func Redirect(c *gin.Context, code int, target string, notice *Notice, extra any) {
	msg := "redirect"
	if notice != nil {
		msg = notice.Text
	}
	c.Header("Location", target)
	c.JSON(http.StatusSeeOther, Response{Code: code, Message: msg, Data: RedirectData{Redirect: target, Notice: notice, Extra: extra}})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Message: msg})
}

// ValidationFailed 422，data.fields 为字段级错误
func ValidationFailed(c *gin.Context, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{
		Code:    http.StatusUnprocessableEntity,
		Message: "validation failed",
		Data:    gin.H{"fields": fields},
	})
}

// Unauthorized 401，附带登录跳转
func Unauthorized(c *gin.Context, msg string, loginURL string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    http.StatusUnauthorized,
		Message: msg,
		Data:    RedirectData{Redirect: loginURL, Notice: &Notice{Level: LevelError, Text: msg}},
	})
}

func NotFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Message: msg})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: "too many requests"})
}

// InternalError 500；err 记入 gin 上下文，由日志与 Sentry 中间件上报
func InternalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Message: "internal server error"})
}
