package pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/pattern-vault/database/models"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	"gorm.io/gorm"
)

// ErrPageNotFound 页面不存在
var ErrPageNotFound = errors.New("page not found")

// Repository 页面仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的页面仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建页面
// 群组页面在锁住群组后写入，所有者必须仍是成员，否则返回 groups.ErrGroupNotFound / ErrNotMember
func (r *Repository) Create(ctx context.Context, page *models.Page) error {
	if page.LastEdited.IsZero() {
		page.LastEdited = time.Now()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if page.GroupID != nil {
			if err := groupsRepo.LockMembership(tx, *page.GroupID, page.OwnerID); err != nil {
				return err
			}
		}
		if err := tx.Create(page).Error; err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
		return nil
	})
}

// GetByID 获取页面
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Page, error) {
	var page models.Page
	if err := r.db.WithContext(ctx).First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// ListPersonal 个人页面，最近编辑的在前
func (r *Repository) ListPersonal(ctx context.Context, ownerID uint) ([]models.Page, error) {
	var pages []models.Page
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND group_id IS NULL", ownerID).
		Order("last_edited DESC, id DESC").
		Find(&pages).Error
	return pages, err
}

// ListByGroup 群组页面，最近编辑的在前
func (r *Repository) ListByGroup(ctx context.Context, groupID uint) ([]models.Page, error) {
	var pages []models.Page
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("last_edited DESC, id DESC").
		Find(&pages).Error
	return pages, err
}

// Update 更新标题或内容，nil 表示不修改
func (r *Repository) Update(ctx context.Context, id uint, title, content *string) (*models.Page, error) {
	updates := map[string]interface{}{"last_edited": time.Now()}
	if title != nil {
		updates["title"] = *title
	}
	if content != nil {
		updates["content"] = *content
	}

	result := r.db.WithContext(ctx).Model(&models.Page{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update page: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrPageNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete 删除页面
func (r *Repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Page{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete page: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrPageNotFound
	}
	return nil
}
