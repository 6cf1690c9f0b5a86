package common

import (
	"log"
	"net/http"
	"strconv"

	"github.com/anoixa/pattern-vault/internal/errs"
	"github.com/gin-gonic/gin"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondSuccessMessage sends a success response with message and data.
func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", message, data)
}

// RespondCreated sends a 201 response with message and data.
func RespondCreated(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusCreated, "success", message, data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, nil)
}

// RespondErrorAbort sends an error response and aborts the handler chain.
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	RespondError(c, httpStatus, message)
	c.Abort()
}

// StatusFor 错误类别对应的 HTTP 状态码
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindDuplicate:
		return http.StatusBadRequest
	case errs.KindAuthentication:
		return http.StatusUnauthorized
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError 按错误类别返回响应，5xx 只记录日志不暴露内部信息
func RespondAppError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	RespondError(c, status, errs.Message(err))
}

// ParseIDParam 解析路径中的数字 ID，失败时直接返回 400
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		RespondError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
