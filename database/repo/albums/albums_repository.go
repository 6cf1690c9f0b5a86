package albums

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/pattern-vault/database/models"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlbumNotFound = errors.New("album not found")
	ErrPhotoNotFound = errors.New("photo not found")
)

// Repository 相册仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的相册仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建相册，群组相册的写入规则同 pages.Repository.Create
func (r *Repository) Create(ctx context.Context, album *models.Album) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if album.GroupID != nil {
			if err := groupsRepo.LockMembership(tx, *album.GroupID, album.OwnerID); err != nil {
				return err
			}
		}
		if err := tx.Create(album).Error; err != nil {
			return fmt.Errorf("failed to create album: %w", err)
		}
		return nil
	})
}

// GetByID 获取相册，不含照片
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Album, error) {
	var album models.Album
	if err := r.db.WithContext(ctx).First(&album, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, err
	}
	return &album, nil
}

// GetWithPhotos 获取相册及按上传顺序排列的照片
func (r *Repository) GetWithPhotos(ctx context.Context, id uint) (*models.Album, error) {
	var album models.Album
	err := r.db.WithContext(ctx).
		Preload("Photos", func(db *gorm.DB) *gorm.DB {
			return db.Order("album_photos.id ASC")
		}).
		First(&album, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlbumNotFound
		}
		return nil, err
	}
	return &album, nil
}

// ListPersonal 个人相册
func (r *Repository) ListPersonal(ctx context.Context, ownerID uint) ([]models.AlbumSummary, error) {
	var albums []models.Album
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND group_id IS NULL", ownerID).
		Order("created_at DESC, id DESC").
		Find(&albums).Error
	if err != nil {
		return nil, err
	}
	return r.summarize(ctx, albums)
}

// ListByGroup 群组相册
func (r *Repository) ListByGroup(ctx context.Context, groupID uint) ([]models.AlbumSummary, error) {
	var albums []models.Album
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		Find(&albums).Error
	if err != nil {
		return nil, err
	}
	return r.summarize(ctx, albums)
}

func (r *Repository) summarize(ctx context.Context, albums []models.Album) ([]models.AlbumSummary, error) {
	summaries := make([]models.AlbumSummary, 0, len(albums))
	if len(albums) == 0 {
		return summaries, nil
	}

	ids := make([]uint, len(albums))
	for i, a := range albums {
		ids[i] = a.ID
	}

	var rows []struct {
		AlbumID uint
		Total   int64
	}
	err := r.db.WithContext(ctx).Model(&models.AlbumPhoto{}).
		Select("album_id, COUNT(*) AS total").
		Where("album_id IN ?", ids).
		Group("album_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count photos: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.AlbumID] = row.Total
	}
	for _, a := range albums {
		summaries = append(summaries, models.AlbumSummary{Album: a, PhotoCount: counts[a.ID]})
	}
	return summaries, nil
}

// AppendPhotos 追加照片，每张照片一条 INSERT，并发追加不会丢失
func (r *Repository) AppendPhotos(ctx context.Context, albumID uint, photos []*models.AlbumPhoto) error {
	if len(photos) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var album models.Album
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("id").First(&album, albumID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlbumNotFound
			}
			return err
		}

		for _, photo := range photos {
			photo.AlbumID = albumID
			if err := tx.Create(photo).Error; err != nil {
				return fmt.Errorf("failed to append photo: %w", err)
			}
		}
		return nil
	})
}

// GetPhoto 获取相册中的照片
func (r *Repository) GetPhoto(ctx context.Context, albumID uint, filename string) (*models.AlbumPhoto, error) {
	var photo models.AlbumPhoto
	err := r.db.WithContext(ctx).
		Where("album_id = ? AND filename = ?", albumID, filename).
		First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhotoNotFound
		}
		return nil, err
	}
	return &photo, nil
}

// DeletePhoto 删除照片记录，返回存储路径
func (r *Repository) DeletePhoto(ctx context.Context, albumID uint, filename string) (string, error) {
	var key string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var photo models.AlbumPhoto
		if err := tx.Where("album_id = ? AND filename = ?", albumID, filename).First(&photo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPhotoNotFound
			}
			return err
		}
		key = photo.StorageKey
		return tx.Delete(&photo).Error
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Delete 删除相册及其照片记录，返回需要清理的存储路径
func (r *Repository) Delete(ctx context.Context, albumID uint) ([]string, error) {
	var keys []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var album models.Album
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&album, albumID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlbumNotFound
			}
			return err
		}

		if err := tx.Model(&models.AlbumPhoto{}).Where("album_id = ?", albumID).Pluck("storage_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", albumID).Delete(&models.AlbumPhoto{}).Error; err != nil {
			return fmt.Errorf("failed to delete photos: %w", err)
		}
		if err := tx.Delete(&album).Error; err != nil {
			return fmt.Errorf("failed to delete album: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
