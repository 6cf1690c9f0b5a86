package albums

import (
	"net/http"

	"github.com/anoixa/pattern-vault/api/common"
	"github.com/anoixa/pattern-vault/api/middleware"
	"github.com/anoixa/pattern-vault/database/models"
	"github.com/anoixa/pattern-vault/internal/access"
	albumsSvc "github.com/anoixa/pattern-vault/internal/albums"
	"github.com/anoixa/pattern-vault/utils"
	"github.com/gin-gonic/gin"
)

// Handler 相册处理器
type Handler struct {
	svc     *albumsSvc.Service
	baseURL string
}

// NewHandler 创建相册处理器
func NewHandler(svc *albumsSvc.Service, baseURL string) *Handler {
	return &Handler{svc: svc, baseURL: baseURL}
}

type createAlbumRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type photoResponse struct {
	models.AlbumPhoto
	URL string `json:"url"`
}

type albumResponse struct {
	ID        uint            `json:"id"`
	OwnerID   uint            `json:"owner_id"`
	GroupID   *uint           `json:"group_id,omitempty"`
	Name      string          `json:"name"`
	CreatedAt int64           `json:"created_at"`
	Photos    []photoResponse `json:"photos"`
}

// ListPersonalHandler 个人相册列表
func (h *Handler) ListPersonalHandler(c *gin.Context) {
	h.list(c, access.Personal())
}

// ListGroupHandler 群组相册列表
func (h *Handler) ListGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "groupId")
	if !ok {
		return
	}
	h.list(c, access.Group(groupID))
}

// CreatePersonalHandler 创建个人相册
func (h *Handler) CreatePersonalHandler(c *gin.Context) {
	h.create(c, access.Personal())
}

// CreateGroupHandler 创建群组相册
func (h *Handler) CreateGroupHandler(c *gin.Context) {
	groupID, ok := common.ParseIDParam(c, "groupId")
	if !ok {
		return
	}
	h.create(c, access.Group(groupID))
}

// GetAlbumHandler 相册详情和照片
func (h *Handler) GetAlbumHandler(c *gin.Context) {
	albumID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	album, err := h.svc.Get(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), albumID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, h.toResponse(album))
}

// DeleteAlbumHandler 删除相册
func (h *Handler) DeleteAlbumHandler(c *gin.Context) {
	albumID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), albumID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Album deleted", nil)
}

func (h *Handler) list(c *gin.Context, scope access.Scope) {
	albums, err := h.svc.List(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), scope)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, albums)
}

func (h *Handler) create(c *gin.Context, scope access.Scope) {
	var req createAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "album name is required")
		return
	}

	album, err := h.svc.Create(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), scope, req.Name)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondCreated(c, "Album created", album)
}

func (h *Handler) photoResponse(albumID uint, p models.AlbumPhoto) photoResponse {
	return photoResponse{AlbumPhoto: p, URL: utils.BuildPhotoURL(h.baseURL, albumID, p.Filename)}
}

func (h *Handler) toResponse(album *models.Album) albumResponse {
	photos := make([]photoResponse, 0, len(album.Photos))
	for _, p := range album.Photos {
		photos = append(photos, h.photoResponse(album.ID, p))
	}
	return albumResponse{
		ID:        album.ID,
		OwnerID:   album.OwnerID,
		GroupID:   album.GroupID,
		Name:      album.Name,
		CreatedAt: album.CreatedAt.Unix(),
		Photos:    photos,
	}
}
