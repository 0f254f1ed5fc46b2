package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

type likeResult struct {
	Action    service.Action `json:"action"`
	LikeCount int64          `json:"like_count"`
	Liked     bool           `json:"liked"`
}

// ToggleLike 点赞/取消点赞
// @Summary 切换点赞
// @Tags 点赞
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	uid, _ := middleware.CurrentUserID(c)
	id := c.Param("id")
	ctx := c.Request.Context()

	action, err := h.likeService.Toggle(ctx, uid, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.postService.Detail(ctx, uid, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	notice := &response.Notice{Level: response.LevelSuccess, Text: fmt.Sprintf("You %s \"%s\".", action, view.Title)}
	response.Redirect(c, 0, postURL(id), notice, likeResult{Action: action, LikeCount: view.LikeCount, Liked: view.Liked})
}
