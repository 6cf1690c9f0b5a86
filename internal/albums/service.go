package albums

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"mime/multipart"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/anoixa/pattern-vault/cache"
	"github.com/anoixa/pattern-vault/database/models"
	albumsRepo "github.com/anoixa/pattern-vault/database/repo/albums"
	"github.com/anoixa/pattern-vault/internal/access"
	"github.com/anoixa/pattern-vault/internal/errs"
	"github.com/anoixa/pattern-vault/storage"
	"github.com/anoixa/pattern-vault/utils"
	"github.com/anoixa/pattern-vault/utils/generator"
	"github.com/anoixa/pattern-vault/utils/validator"
)

const (
	// MaxNameLength 相册名称最大长度
	MaxNameLength = 100
	// DefaultMaxFiles 单次上传最多文件数
	DefaultMaxFiles = 20
	// DefaultMaxFileSize 单个文件最大字节数
	DefaultMaxFileSize = 20 << 20
)

var (
	errAlbumNotFound = errs.NotFound("album not found")
	errPhotoNotFound = errs.NotFound("photo not found")
)

// FileRemover 异步清理存储文件
type FileRemover interface {
	RemoveFiles(keys []string)
}

// Options 上传限制
type Options struct {
	MaxFiles    int
	MaxFileSize int64
}

// Service 相册服务，所有操作先经过访问控制
type Service struct {
	repo    *albumsRepo.Repository
	guard   *access.Guard
	storage storage.Provider
	remover FileRemover
	cache   *cache.Helper
	paths   *generator.PathGenerator
	opts    Options
	nowFunc func() time.Time
}

// NewService 创建相册服务
func NewService(
	repo *albumsRepo.Repository,
	guard *access.Guard,
	provider storage.Provider,
	remover FileRemover,
	cacheHelper *cache.Helper,
	opts Options,
) *Service {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Service{
		repo:    repo,
		guard:   guard,
		storage: provider,
		remover: remover,
		cache:   cacheHelper,
		paths:   generator.NewPathGenerator(),
		opts:    opts,
		nowFunc: time.Now,
	}
}

// List 作用域内的相册，最新的在前
func (s *Service) List(ctx context.Context, callerID uint, scope access.Scope) ([]models.AlbumSummary, error) {
	if err := s.guard.ResolveScope(ctx, callerID, scope); err != nil {
		return nil, err
	}

	var (
		albums []models.AlbumSummary
		err    error
	)
	if scope.IsPersonal() {
		albums, err = s.repo.ListPersonal(ctx, callerID)
	} else {
		albums, err = s.repo.ListByGroup(ctx, *scope.GroupID)
	}
	if err != nil {
		return nil, errs.Server("failed to list albums", err)
	}
	return albums, nil
}

// Create 在作用域内创建相册
func (s *Service) Create(ctx context.Context, callerID uint, scope access.Scope, name string) (*models.Album, error) {
	if err := s.guard.ResolveScope(ctx, callerID, scope); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, errs.Validation("album name must be between 1 and 100 characters")
	}

	album := &models.Album{OwnerID: callerID, GroupID: scope.GroupID, Name: name}
	if err := s.repo.Create(ctx, album); err != nil {
		if scopeErr := access.ScopeError(err); scopeErr != nil {
			return nil, scopeErr
		}
		return nil, errs.Server("failed to create album", err)
	}

	log.Printf("[Albums] Album %d created by user %d (%s)", album.ID, callerID, scope)
	return album, nil
}

// Get 相册详情和按上传顺序排列的照片
// 先做权限检查再读缓存，缓存中只有数据
func (s *Service) Get(ctx context.Context, callerID, albumID uint) (*models.Album, error) {
	if _, err := s.authorized(ctx, callerID, albumID); err != nil {
		return nil, err
	}

	var cached models.Album
	if err := s.cache.GetCachedAlbum(ctx, albumID, &cached); err == nil {
		if cached.Photos == nil {
			cached.Photos = []models.AlbumPhoto{}
		}
		return &cached, nil
	}

	rev := s.cache.CurrentAlbumRevision(ctx, albumID)
	album, err := s.repo.GetWithPhotos(ctx, albumID)
	if err != nil {
		if errors.Is(err, albumsRepo.ErrAlbumNotFound) {
			return nil, errAlbumNotFound
		}
		return nil, errs.Server("failed to load album", err)
	}
	if album.Photos == nil {
		album.Photos = []models.AlbumPhoto{}
	}

	if err := s.cache.CacheAlbum(ctx, albumID, rev, album); err != nil {
		utils.LogIfDevf("[Albums] Failed to cache album %d: %v", albumID, err)
	}
	return album, nil
}

// UploadPhotos 上传照片并追加到相册
// 文件并发写入存储，任一文件失败则整批失败并清理已写入的文件
func (s *Service) UploadPhotos(ctx context.Context, callerID, albumID uint, files []*multipart.FileHeader) ([]*models.AlbumPhoto, error) {
	if _, err := s.authorized(ctx, callerID, albumID); err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, errs.Validation("no photos uploaded")
	}
	if len(files) > s.opts.MaxFiles {
		return nil, errs.Validation(fmt.Sprintf("at most %d photos per upload", s.opts.MaxFiles))
	}

	photos := make([]*models.AlbumPhoto, len(files))
	var (
		savedMu sync.Mutex
		saved   []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			photo, err := s.savePhoto(gctx, fh)
			if err != nil {
				return err
			}
			savedMu.Lock()
			saved = append(saved, photo.StorageKey)
			savedMu.Unlock()
			photos[i] = photo
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.removeFiles(saved)
		if errs.KindOf(err) == errs.KindUnknown {
			return nil, errs.Server("failed to save photos", err)
		}
		return nil, err
	}

	if err := s.repo.AppendPhotos(ctx, albumID, photos); err != nil {
		s.removeFiles(saved)
		if errors.Is(err, albumsRepo.ErrAlbumNotFound) {
			return nil, errAlbumNotFound
		}
		return nil, errs.Server("failed to save photo records", err)
	}

	s.cache.InvalidateAlbum(ctx, albumID)
	log.Printf("[Albums] User %d uploaded %d photos to album %d", callerID, len(photos), albumID)
	return photos, nil
}

// savePhoto 校验并写入单个文件
func (s *Service) savePhoto(ctx context.Context, fh *multipart.FileHeader) (*models.AlbumPhoto, error) {
	if fh.Size > s.opts.MaxFileSize {
		return nil, errs.Validation(fmt.Sprintf("%s exceeds the maximum file size", fh.Filename))
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer func() { _ = file.Close() }()

	mimeType, ok, err := validator.DetectImage(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	if !ok {
		return nil, errs.Validation(fmt.Sprintf("%s is not a supported image", fh.Filename))
	}

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, errs.Validation(fmt.Sprintf("%s is not a valid image", fh.Filename))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", fh.Filename, err)
	}

	now := s.nowFunc()
	ids := s.paths.GeneratePhotoIdentifiers(utils.GetSafeExtension(mimeType), now)
	if err := s.storage.SaveWithContext(ctx, ids.StoragePath, file); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", fh.Filename, err)
	}

	return &models.AlbumPhoto{
		Filename:     ids.Filename,
		StorageKey:   ids.StoragePath,
		OriginalName: utils.SanitizeLogMessage(fh.Filename),
		MimeType:     mimeType,
		Size:         fh.Size,
		Width:        cfg.Width,
		Height:       cfg.Height,
		UploadedAt:   now,
	}, nil
}

// OpenPhoto 读取照片内容，调用方负责关闭实现了 io.Closer 的返回值
func (s *Service) OpenPhoto(ctx context.Context, callerID, albumID uint, filename string) (*models.AlbumPhoto, io.ReadSeeker, error) {
	if !generator.IsValidFilename(filename) {
		return nil, nil, errPhotoNotFound
	}
	if _, err := s.authorized(ctx, callerID, albumID); err != nil {
		return nil, nil, err
	}

	photo, err := s.repo.GetPhoto(ctx, albumID, filename)
	if err != nil {
		if errors.Is(err, albumsRepo.ErrPhotoNotFound) {
			return nil, nil, errPhotoNotFound
		}
		return nil, nil, errs.Server("failed to load photo", err)
	}

	reader, err := s.storage.GetWithContext(ctx, photo.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("[Albums] Photo %s has a record but no stored file", photo.Filename)
			return nil, nil, errPhotoNotFound
		}
		return nil, nil, errs.Server("failed to read photo", err)
	}
	return photo, reader, nil
}

// DeletePhoto 删除照片，文件异步清理
func (s *Service) DeletePhoto(ctx context.Context, callerID, albumID uint, filename string) error {
	if !generator.IsValidFilename(filename) {
		return errPhotoNotFound
	}
	if _, err := s.authorized(ctx, callerID, albumID); err != nil {
		return err
	}

	key, err := s.repo.DeletePhoto(ctx, albumID, filename)
	if err != nil {
		if errors.Is(err, albumsRepo.ErrPhotoNotFound) {
			return errPhotoNotFound
		}
		return errs.Server("failed to delete photo", err)
	}

	s.cache.InvalidateAlbum(ctx, albumID)
	s.removeFiles([]string{key})
	return nil
}

// Delete 删除相册及其全部照片
func (s *Service) Delete(ctx context.Context, callerID, albumID uint) error {
	if _, err := s.authorized(ctx, callerID, albumID); err != nil {
		return err
	}

	keys, err := s.repo.Delete(ctx, albumID)
	if err != nil {
		if errors.Is(err, albumsRepo.ErrAlbumNotFound) {
			return errAlbumNotFound
		}
		return errs.Server("failed to delete album", err)
	}

	s.cache.InvalidateAlbum(ctx, albumID)
	s.removeFiles(keys)
	log.Printf("[Albums] Album %d deleted by user %d (%d photos)", albumID, callerID, len(keys))
	return nil
}

func (s *Service) authorized(ctx context.Context, callerID, albumID uint) (*models.Album, error) {
	album, err := s.repo.GetByID(ctx, albumID)
	if err != nil {
		if errors.Is(err, albumsRepo.ErrAlbumNotFound) {
			return nil, errAlbumNotFound
		}
		return nil, errs.Server("failed to load album", err)
	}
	if err := s.guard.AuthorizeResource(ctx, callerID, album.OwnerID, album.GroupID); err != nil {
		return nil, err
	}
	return album, nil
}

func (s *Service) removeFiles(keys []string) {
	if len(keys) == 0 || s.remover == nil {
		return
	}
	s.remover.RemoveFiles(keys)
}
