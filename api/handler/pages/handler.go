package pages

import (
	"net/http"

	"github.com/anoixa/pattern-vault/api/common"
	"github.com/anoixa/pattern-vault/api/middleware"
	"github.com/anoixa/pattern-vault/internal/access"
	pagesSvc "github.com/anoixa/pattern-vault/internal/pages"
	"github.com/gin-gonic/gin"
)

// Handler 页面处理器
type Handler struct {
	svc *pagesSvc.Service
}

// NewHandler 创建页面处理器
func NewHandler(svc *pagesSvc.Service) *Handler {
	return &Handler{svc: svc}
}

type createPageRequest struct {
	Title string `json:"title" binding:"max=200"`
}

type updatePageRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=200"`
	Content *string `json:"content"`
}

// ListPersonalHandler 个人页面列表
func (h *Handler) ListPersonalHandler(c *gin.Context) {
	h.list(c, access.Personal())
}

// ListGroupHandler 群组页面列表
func (h *Handler) ListGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "groupId")
	if !ok {
		return
	}
	h.list(c, access.Group(groupID))
}

// CreatePersonalHandler 创建个人页面
func (h *Handler) CreatePersonalHandler(c *gin.Context) {
	h.create(c, access.Personal())
}

// CreateGroupHandler 创建群组页面
func (h *Handler) CreateGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "groupId")
	if !ok {
		return
	}
	h.create(c, access.Group(groupID))
}

// GetPageHandler 页面详情
func (h *Handler) GetPageHandler(c *gin.Context) {
	pageID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	page, err := h.svc.Get(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), pageID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, page)
}

// UpdatePageHandler 更新标题或内容
func (h *Handler) UpdatePageHandler(c *gin.Context) {
	pageID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req updatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil && req.Content == nil {
		common.RespondError(c, http.StatusBadRequest, "nothing to update")
		return
	}

	page, err := h.svc.Update(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), pageID, req.Title, req.Content)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Page updated", page)
}

// DeletePageHandler 删除页面
func (h *Handler) DeletePageHandler(c *gin.Context) {
	pageID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), pageID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Page deleted", nil)
}

func (h *Handler) list(c *gin.Context, scope access.Scope) {
	pages, err := h.svc.List(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), scope)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, pages)
}

func (h *Handler) create(c *gin.Context, scope access.Scope) {
	var req createPageRequest
	// 请求体可以为空，使用默认标题
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	page, err := h.svc.Create(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), scope, req.Title)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondCreated(c, "Page created", page)
}
