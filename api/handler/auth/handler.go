package auth

import (
	"net/http"
	"strings"

	"github.com/anoixa/pattern-vault/api/common"
	"github.com/anoixa/pattern-vault/api/middleware"
	authSvc "github.com/anoixa/pattern-vault/internal/auth"
	"github.com/gin-gonic/gin"
)

// Handler 注册、登录和当前用户
type Handler struct {
	loginService *authSvc.LoginService
}

// NewHandler 创建认证处理器
func NewHandler(loginService *authSvc.LoginService) *Handler {
	return &Handler{loginService: loginService}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string   `json:"email" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Pattern  []string `json:"pattern" binding:"required,len=5,dive,required"`
}

type userResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      userResponse `json:"user"`
}

// RegisterHandler 注册新用户
func (h *Handler) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.loginService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondCreated(c, "User registered successfully", userResponse{ID: user.ID, Email: user.Email})
}

// LoginHandler 密码与图案双重校验
func (h *Handler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "email, password and a 5-symbol pattern are required")
		return
	}

	result, err := h.loginService.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password, req.Pattern)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccessMessage(c, "Login successful", loginResponse{
		Token:     result.AccessToken,
		ExpiresAt: result.ExpiresAt.Unix(),
		User:      userResponse{ID: result.User.ID, Email: result.User.Email},
	})
}

// MeHandler 当前用户及其群组
func (h *Handler) MeHandler(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserIDKey)

	profile, err := h.loginService.Me(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, profile)
}
