package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/auth"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

// FeedURL 首页
const FeedURL = "/posts"

func postURL(id string) string { return "/posts/" + id }

// Handler 聚合各业务服务的 HTTP 入口
type Handler struct {
	userService service.UserService
	postService service.PostService
	likeService service.LikeService
	tokens      *auth.TokenManager
}

func New(userService service.UserService, postService service.PostService, likeService service.LikeService, tokens *auth.TokenManager) *Handler {
	return &Handler{userService: userService, postService: postService, likeService: likeService, tokens: tokens}
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// fail 处理没有专门分支的错误
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(c, verr.Fields)
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, service.ErrForbidden):
		response.Redirect(c, http.StatusForbidden, FeedURL, &response.Notice{Level: response.LevelError, Text: "You are not allowed to do that."}, nil)
	default:
		response.InternalError(c, err)
	}
}
