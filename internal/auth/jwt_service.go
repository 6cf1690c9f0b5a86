package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/pattern-vault/config"
	"github.com/anoixa/pattern-vault/database/models"
	"github.com/anoixa/pattern-vault/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

const (
	// MinSecretLength HS256 密钥最短长度
	MinSecretLength = 32
	// DefaultExpiresIn 默认有效期 30 天
	DefaultExpiresIn = 30 * 24 * time.Hour

	tokenTypeAccess = "access"
)

var (
	ErrSecretTooShort = fmt.Errorf("JWT secret must be at least %d characters long", MinSecretLength)
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenClaims JWT 令牌声明
type TokenClaims struct {
	UserID uint   `mapstructure:"user_id"`
	Email  string `mapstructure:"email"`
	Type   string `mapstructure:"type"`
	Exp    int64  `mapstructure:"exp"`
	Iat    int64  `mapstructure:"iat"`
}

// JWTService 无状态令牌服务，不支持吊销
type JWTService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewJWTService 创建新的 JWT 服务
func NewJWTService(secret string, expiresIn time.Duration) (*JWTService, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if expiresIn <= 0 {
		expiresIn = DefaultExpiresIn
	}
	return &JWTService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		now:       time.Now,
	}, nil
}

// NewJWTServiceFromConfig 开发环境未配置密钥时生成随机密钥，重启后旧令牌失效
func NewJWTServiceFromConfig(cfg *config.Config) (*JWTService, error) {
	secret := cfg.JWTSecret
	if secret == "" && config.IsDevelopment() {
		generated, err := utils.GenerateRandomToken(48)
		if err != nil {
			return nil, err
		}
		log.Println("[JWT] WARNING: jwt_secret not set, using a random secret for this process")
		secret = generated
	}
	return NewJWTService(secret, cfg.JWTExpiresIn)
}

// ExpiresIn 令牌有效期
func (s *JWTService) ExpiresIn() time.Duration {
	return s.expiresIn
}

// GenerateToken 生成访问令牌
func (s *JWTService) GenerateToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.expiresIn)

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"type":    tokenTypeAccess,
		"exp":     expiry.Unix(),
		"iat":     now.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, expiry, nil
}

// ParseToken 解析和验证 JWT 令牌，只接受 HMAC 签名
func (s *JWTService) ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractClaims 解析令牌并转换为 TokenClaims
func (s *JWTService) ExtractClaims(tokenString string) (*TokenClaims, error) {
	raw, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	var claims TokenClaims
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &claims,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Type != tokenTypeAccess || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
