package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

// bindPostForm 绑定表单字段与可选图片；调用方负责 close
func bindPostForm(c *gin.Context) (service.PostForm, io.Closer, error) {
	var form service.PostForm
	if err := c.ShouldBind(&form); err != nil {
		return form, nil, err
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return form, nil, err
	}
	form.Image = &service.Upload{Filename: fh.Filename, Body: f}
	return form, f, nil
}

// ListPosts 首页
// @Summary 帖子列表（新帖在前）
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=service.FeedPage}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	uid, _ := middleware.CurrentUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	feed, err := h.postService.Feed(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, feed)
}

// GetPost 帖子详情
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=service.PostView}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	uid, _ := middleware.CurrentUserID(c)
	view, err := h.postService.Detail(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, view)
}

// CreatePost 发帖
// @Summary 发帖（可带图片）
// @Tags 帖子
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "标题"
// @Param content formData string true "正文"
// @Param image formData file false "图片"
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Failure 422 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	uid, _ := middleware.CurrentUserID(c)
	form, closer, err := bindPostForm(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if closer != nil {
		defer closer.Close()
	}
	post, err := h.postService.Create(c.Request.Context(), uid, form)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Redirect(c, 0, FeedURL, &response.Notice{Level: response.LevelSuccess, Text: "Post created."}, gin.H{"id": post.ID})
}

// UpdatePost 编辑帖子，仅作者
// @Summary 编辑帖子
// @Tags 帖子
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Param title formData string true "标题"
// @Param content formData string true "正文"
// @Param image formData file false "新图片"
// @Param clear_image formData bool false "移除图片"
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	uid, _ := middleware.CurrentUserID(c)
	id := c.Param("id")
	form, closer, err := bindPostForm(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if closer != nil {
		defer closer.Close()
	}
	_, err = h.postService.Update(c.Request.Context(), uid, id, form)
	if errors.Is(err, service.ErrForbidden) {
		response.Redirect(c, http.StatusForbidden, postURL(id), &response.Notice{Level: response.LevelError, Text: "You are not allowed to edit this post."}, nil)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Redirect(c, 0, postURL(id), &response.Notice{Level: response.LevelSuccess, Text: "Post updated."}, nil)
}

// DeletePostPrompt 除 POST 以外的请求：不删除，提示使用详情页的删除按钮
// @Summary 删除入口（未确认）
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Router /api/v1/posts/{id}/delete [get]
// @Router /api/v1/posts/{id}/delete [delete]
func (h *Handler) DeletePostPrompt(c *gin.Context) { h.deletePost(c, false) }

// DeletePost 确认删除
// @Summary 删除帖子（确认）
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/delete [post]
func (h *Handler) DeletePost(c *gin.Context) { h.deletePost(c, true) }

func (h *Handler) deletePost(c *gin.Context, confirmed bool) {
	uid, _ := middleware.CurrentUserID(c)
	id := c.Param("id")
	res, err := h.postService.Delete(c.Request.Context(), uid, id, confirmed)
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Redirect(c, http.StatusForbidden, FeedURL, &response.Notice{Level: response.LevelError, Text: "You are not allowed to delete this post."}, nil)
	case err != nil:
		h.fail(c, err)
	case !res.Deleted:
		response.Redirect(c, 0, postURL(id), &response.Notice{Level: response.LevelWarning, Text: "Use the delete button on the post page to delete a post."}, nil)
	default:
		response.Redirect(c, 0, FeedURL, &response.Notice{Level: response.LevelSuccess, Text: fmt.Sprintf("Post \"%s\" deleted.", res.Post.Title)}, nil)
	}
}
