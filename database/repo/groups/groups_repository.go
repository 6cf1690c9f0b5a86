package groups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/pattern-vault/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrNotMember       = errors.New("user is not a member of the group")
	ErrNotAdmin        = errors.New("user is not the admin of the group")
	ErrInviteCodeTaken = errors.New("invite code already in use")
	ErrAlreadyMember   = errors.New("user is already a member of the group")
)

// Repository 群组仓库，成员关系的唯一写入入口
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的群组仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Member 群组成员
type Member struct {
	UserID   uint      `json:"id"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joined_at"`
	IsAdmin  bool      `json:"is_admin" gorm:"-"`
}

// LeaveResult 退出群组的结果
type LeaveResult struct {
	GroupDeleted bool
	NewAdminID   uint
	// StorageKeys 群组被删除时需要异步清理的照片文件
	StorageKeys []string
}

// InviteCodeExists 邀请码是否已被占用
func (r *Repository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateWithAdmin 在同一事务中创建群组并写入管理员的成员关系
func (r *Repository) CreateWithAdmin(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrInviteCodeTaken
			}
			return fmt.Errorf("failed to create group: %w", err)
		}

		membership := &models.GroupMembership{
			UserID:   group.AdminID,
			GroupID:  group.ID,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("failed to add admin membership: %w", err)
		}
		return nil
	})
}

// GetByID 获取群组
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// GetByInviteCode 通过邀请码获取群组
func (r *Repository) GetByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// AddMember 不存在时才添加，已是成员返回 ErrAlreadyMember
// 依赖 idx_user_group 唯一索引，并发重复加入只会成功一次
func (r *Repository) AddMember(ctx context.Context, groupID, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, groupID); err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
			DoNothing: true,
		}).Create(&models.GroupMembership{
			UserID:   userID,
			GroupID:  groupID,
			JoinedAt: time.Now(),
		})
		if result.Error != nil {
			return fmt.Errorf("failed to add member: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyMember
		}
		return nil
	})
}

// LockMembership 在调用方事务内对群组加共享锁并复查成员关系
// 与 Delete/Leave 的 FOR UPDATE 互斥，级联删除提交后再写入会得到 ErrGroupNotFound
func LockMembership(tx *gorm.DB, groupID, userID uint) error {
	if err := lockGroup(tx, groupID); err != nil {
		return err
	}

	var count int64
	err := tx.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}

func lockGroup(tx *gorm.DB, groupID uint) error {
	var group models.Group
	if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}
	return nil
}

// IsMember 每次都直接查询数据库
func (r *Repository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMembers 群组成员，即 Group.members 视图
func (r *Repository) ListMembers(ctx context.Context, groupID uint) ([]Member, error) {
	group, err := r.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var members []Member
	err = r.db.WithContext(ctx).
		Table("group_memberships").
		Select("group_memberships.user_id AS user_id, users.email AS email, group_memberships.joined_at AS joined_at").
		Joins("JOIN users ON users.id = group_memberships.user_id").
		Where("group_memberships.group_id = ?", groupID).
		Order("group_memberships.joined_at ASC, group_memberships.id ASC").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	for i := range members {
		members[i].IsAdmin = members[i].UserID == group.AdminID
	}
	return members, nil
}

// ListForUser 用户所在群组，即 User.groups 视图
func (r *Repository) ListForUser(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.GroupMembership{}).Select("group_id").Where("user_id = ?", userID)).
		Order("id ASC").
		Find(&groups).Error
	return groups, err
}

// ListMemberIDs 成员 ID 列表
func (r *Repository) ListMemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ?", groupID).
		Order("joined_at ASC, id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Leave 退出群组
// 普通成员直接移除；管理员退出时由最早加入的成员接任，没有其他成员则删除群组
func (r *Repository) Leave(ctx context.Context, groupID, userID uint) (*LeaveResult, error) {
	result := &LeaveResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}

		var membership models.GroupMembership
		if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotMember
			}
			return err
		}

		if group.AdminID != userID {
			return tx.Delete(&membership).Error
		}

		var successor models.GroupMembership
		err := tx.Where("group_id = ? AND user_id <> ?", groupID, userID).
			Order("joined_at ASC, id ASC").
			First(&successor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			keys, err := deleteGroupCascade(tx, groupID)
			if err != nil {
				return err
			}
			result.GroupDeleted = true
			result.StorageKeys = keys
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Update("admin_id", successor.UserID).Error; err != nil {
			return fmt.Errorf("failed to promote new admin: %w", err)
		}
		if err := tx.Delete(&membership).Error; err != nil {
			return err
		}
		result.NewAdminID = successor.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete 管理员删除群组，级联删除成员关系和群组资源
// 返回需要清理的照片存储路径
func (r *Repository) Delete(ctx context.Context, groupID, requesterID uint) ([]string, error) {
	var keys []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if group.AdminID != requesterID {
			return ErrNotAdmin
		}

		var err error
		keys, err = deleteGroupCascade(tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func deleteGroupCascade(tx *gorm.DB, groupID uint) ([]string, error) {
	var albumIDs []uint
	if err := tx.Model(&models.Album{}).Where("group_id = ?", groupID).Pluck("id", &albumIDs).Error; err != nil {
		return nil, err
	}

	var keys []string
	if len(albumIDs) > 0 {
		if err := tx.Model(&models.AlbumPhoto{}).Where("album_id IN ?", albumIDs).Pluck("storage_key", &keys).Error; err != nil {
			return nil, err
		}
		if err := tx.Where("album_id IN ?", albumIDs).Delete(&models.AlbumPhoto{}).Error; err != nil {
			return nil, fmt.Errorf("failed to delete group photos: %w", err)
		}
		if err := tx.Where("id IN ?", albumIDs).Delete(&models.Album{}).Error; err != nil {
			return nil, fmt.Errorf("failed to delete group albums: %w", err)
		}
	}

	if err := tx.Where("group_id = ?", groupID).Delete(&models.Page{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete group pages: %w", err)
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete memberships: %w", err)
	}
	if err := tx.Delete(&models.Group{}, groupID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete group: %w", err)
	}
	return keys, nil
}
