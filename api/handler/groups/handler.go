package groups

import (
	"net/http"

	"github.com/anoixa/pattern-vault/api/common"
	"github.com/anoixa/pattern-vault/api/middleware"
	groupsSvc "github.com/anoixa/pattern-vault/internal/groups"
	"github.com/gin-gonic/gin"
)

// Handler 群组处理器
type Handler struct {
	svc *groupsSvc.Service
}

// NewHandler 创建群组处理器
func NewHandler(svc *groupsSvc.Service) *Handler {
	return &Handler{svc: svc}
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type joinGroupRequest struct {
	InviteCode string `json:"inviteCode" binding:"required"`
}

// CreateGroupHandler 创建群组
func (h *Handler) CreateGroupHandler(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "group name is required")
		return
	}

	detail, err := h.svc.CreateGroup(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), req.Name)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Group created", detail)
}

// JoinGroupHandler 通过邀请码加入
func (h *Handler) JoinGroupHandler(c *gin.Context) {
	var req joinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invite code is required")
		return
	}

	group, err := h.svc.JoinGroup(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), req.InviteCode)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Joined group", gin.H{"group": group})
}

// ListGroupsHandler 当前用户的群组
func (h *Handler) ListGroupsHandler(c *gin.Context) {
	groups, err := h.svc.ListUserGroups(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, groups)
}

// GetGroupHandler 群组详情，仅成员可见
func (h *Handler) GetGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.svc.GetGroup(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), groupID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, detail)
}

// LeaveGroupHandler 退出群组
func (h *Handler) LeaveGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.LeaveGroup(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), groupID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Left group", res)
}

// DeleteGroupHandler 管理员删除群组
func (h *Handler) DeleteGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteGroup(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), groupID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Group deleted", nil)
}
