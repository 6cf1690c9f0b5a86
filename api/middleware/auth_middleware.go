package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/anoixa/pattern-vault/api/common"
	"github.com/anoixa/pattern-vault/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "email"

	// TokenHeader 旧客户端使用的令牌请求头
	TokenHeader = "x-auth-token"
)

// TokenAuth 校验访问令牌，成功后将用户 ID 和邮箱写入上下文
// 缺失、格式错误、签名错误、过期统一返回 401
func TokenAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			log.Printf("[Auth] %s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
			common.RespondErrorAbort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := jwtService.ExtractClaims(token)
		if err != nil {
			log.Printf("[Auth] %s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
			common.RespondErrorAbort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errors.New("malformed Authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if token := strings.TrimSpace(c.GetHeader(TokenHeader)); token != "" {
		return token, nil
	}
	return "", errors.New("no token provided")
}

// GetUserID 读取已认证用户 ID，未经过 TokenAuth 时返回 false
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
