package albums

import (
	"io"
	"net/http"

	"github.com/anoixa/pattern-vault/api/common"
	"github.com/anoixa/pattern-vault/api/middleware"
	"github.com/anoixa/pattern-vault/utils"
	"github.com/gin-gonic/gin"
)

// UploadPhotosHandler 上传照片，表单字段 photos
func (h *Handler) UploadPhotosHandler(c *gin.Context) {
	albumID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "multipart form with field 'photos' is required")
		return
	}
	files := form.File["photos"]

	photos, err := h.svc.UploadPhotos(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), albumID, files)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, h.photoResponse(albumID, *p))
	}
	common.RespondCreated(c, "Photos uploaded", out)
}

// GetPhotoHandler 返回照片内容
func (h *Handler) GetPhotoHandler(c *gin.Context) {
	albumID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	photo, reader, err := h.svc.OpenPhoto(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), albumID, c.Param("filename"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if closer, ok := reader.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	c.Header("Content-Type", photo.MimeType)
	c.Header("Cache-Control", "private, max-age=3600")
	http.ServeContent(c.Writer, c.Request, photo.Filename, photo.UploadedAt, reader)

	if err := c.Request.Context().Err(); err != nil && utils.IsClientDisconnect(err) {
		utils.LogIfDevf("[Albums] client disconnected while streaming %s", photo.Filename)
	}
}

// DeletePhotoHandler 删除照片
func (h *Handler) DeletePhotoHandler(c *gin.Context) {
	albumID, ok := common.ParseIDParam(c, "id")
	if !ok {
		return
	}

	err := h.svc.DeletePhoto(c.Request.Context(), c.GetUint(middleware.ContextUserIDKey), albumID, c.Param("filename"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Photo deleted", nil)
}
