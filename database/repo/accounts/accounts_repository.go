package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anoixa/pattern-vault/database/models"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 用户不存在错误
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken 邮箱已被注册
	ErrEmailTaken = errors.New("email already registered")
)

// Repository 账户仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的账户仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeEmail 邮箱唯一性大小写不敏感
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser 创建用户，邮箱重复返回 ErrEmailTaken
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	user := &models.User{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByEmail 通过邮箱获取用户
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID 通过 ID 获取用户
func (r *Repository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserGroups 用户的群组列表，即 User.groups 视图
func (r *Repository) GetUserGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = vault_groups.id").
		Where("group_memberships.user_id = ?", userID).
		Order("group_memberships.joined_at ASC, vault_groups.id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	return groups, nil
}
