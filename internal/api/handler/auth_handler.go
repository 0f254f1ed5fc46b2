package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/gin-blog/internal/api/middleware"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}

// Register 注册账号
// @Summary 注册
// @Tags 账号
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body service.RegisterForm true "注册信息"
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Failure 422 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var form service.RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.userService.Register(c.Request.Context(), form)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Redirect(c, 0, middleware.LoginURL, &response.Notice{Level: response.LevelSuccess, Text: fmt.Sprintf("Account %s created.", u.Username)}, nil)
}

// Login 登录并签发令牌
// @Summary 登录
// @Tags 账号
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body loginRequest true "用户名与密码"
// @Success 200 {object} response.Response{data=loginResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		response.Unauthorized(c, "Invalid username or password.", middleware.LoginURL)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	token, exp, err := h.tokens.Issue(u.ID, u.Username)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, loginResponse{Token: token, ExpiresAt: exp.Unix(), UserID: u.ID, Username: u.Username})
}

// Logout 令牌无状态，客户端丢弃即可
// @Summary 登出
// @Tags 账号
// @Produce json
// @Success 303 {object} response.Response{data=response.RedirectData}
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	response.Redirect(c, 0, middleware.LoginURL, nil, nil)
}

// Me 当前用户
// @Summary 当前用户
// @Tags 账号
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	uid, _ := middleware.CurrentUserID(c)
	u, err := h.userService.Get(c.Request.Context(), uid)
	if errors.Is(err, service.ErrNotFound) {
		response.Unauthorized(c, "account no longer exists", middleware.LoginURL)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, u)
}
