package auth

import (
	"context"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"github.com/anoixa/pattern-vault/database/models"
	"github.com/anoixa/pattern-vault/database/repo/accounts"
	"github.com/anoixa/pattern-vault/internal/cipher"
	"github.com/anoixa/pattern-vault/internal/errs"
	"github.com/anoixa/pattern-vault/utils"
	cryptopackage "github.com/anoixa/pattern-vault/utils/crypto"
	"github.com/anoixa/pattern-vault/utils/validator"
)

// 密码长度按字符（rune）计算，上限只用于限制哈希输入的大小
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// 登录失败对外只返回这一种错误，具体原因仅记录在日志中
var errInvalidCredentials = errs.Authentication("invalid credentials")

// LoginResult 登录结果
type LoginResult struct {
	User        *models.User
	AccessToken string
	ExpiresAt   time.Time
}

// GroupMembership 用户所在群组摘要
type GroupMembership struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Profile 当前用户信息
type Profile struct {
	ID        uint              `json:"id"`
	Email     string            `json:"email"`
	CreatedAt time.Time         `json:"created_at"`
	Groups    []GroupMembership `json:"groups"`
}

// LoginService 注册与登录服务
type LoginService struct {
	accountsRepo *accounts.Repository
	jwtService   *JWTService
	hashPassword func(string) (string, error)
}

// NewLoginService 创建新的登录服务
func NewLoginService(accountsRepo *accounts.Repository, jwtService *JWTService) *LoginService {
	return &LoginService{
		accountsRepo: accountsRepo,
		jwtService:   jwtService,
		hashPassword: cryptopackage.GenerateFromPassword,
	}
}

// Register 注册新用户
func (s *LoginService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = accounts.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return nil, errs.Validation("invalid email address")
	}
	if n := utf8.RuneCountInString(password); n < MinPasswordLength || n > MaxPasswordLength {
		return nil, errs.Validation("password must be between 8 and 128 characters")
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, errs.Server("failed to hash password", err)
	}

	user, err := s.accountsRepo.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, accounts.ErrEmailTaken) {
			return nil, errs.Duplicate("email already registered")
		}
		return nil, errs.Server("failed to create user", err)
	}

	log.Printf("[Auth] User registered: %s", utils.SanitizeLogUsername(email))
	return user, nil
}

// Login 密码与行为图案同时匹配才签发令牌
// 期望图案由服务端根据邮箱重新计算，不信任客户端
func (s *LoginService) Login(ctx context.Context, email, password string, pattern []string) (*LoginResult, error) {
	email = accounts.NormalizeEmail(email)
	logEmail := utils.SanitizeLogUsername(email)

	user, err := s.accountsRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			log.Printf("[Auth] Login failed for %s: unknown email", logEmail)
			return nil, errInvalidCredentials
		}
		return nil, errs.Server("failed to get user", err)
	}

	ok, err := cryptopackage.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		log.Printf("[Auth] Stored hash for user %d is unreadable: %v", user.ID, err)
		return nil, errInvalidCredentials
	}
	if !ok {
		log.Printf("[Auth] Login failed for %s: password mismatch", logEmail)
		return nil, errInvalidCredentials
	}

	supplied, err := cipher.ParseSequence(pattern)
	if err != nil {
		log.Printf("[Auth] Login failed for %s: malformed pattern", logEmail)
		return nil, errInvalidCredentials
	}
	if !cipher.Pattern(user.Email).Equal(supplied) {
		log.Printf("[Auth] Login failed for %s: pattern mismatch", logEmail)
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, errs.Server("failed to generate token", err)
	}

	utils.LogIfDevf("[Auth] User %d logged in", user.ID)
	return &LoginResult{
		User:        user,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Me 当前用户及其群组
func (s *LoginService) Me(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.accountsRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, errs.NotFound("user not found")
		}
		return nil, errs.Server("failed to get user", err)
	}

	groups, err := s.accountsRepo.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, errs.Server("failed to list groups", err)
	}

	profile := &Profile{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		Groups:    make([]GroupMembership, 0, len(groups)),
	}
	for _, g := range groups {
		profile.Groups = append(profile.Groups, GroupMembership{
			ID:      g.ID,
			Name:    g.Name,
			IsAdmin: g.AdminID == userID,
		})
	}
	return profile, nil
}
