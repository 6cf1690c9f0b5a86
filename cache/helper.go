package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// DefaultAlbumCacheExpiration 相册详情缓存过期时间
const DefaultAlbumCacheExpiration = 10 * time.Minute

// addJitter 添加 0~10% 的随机抖动，避免同时过期
func addJitter(duration time.Duration) time.Duration {
	if duration < 10 {
		return duration
	}
	return duration + time.Duration(rand.Int63n(int64(duration)/10))
}

// Helper 业务缓存辅助工具
// 只缓存数据，不缓存权限判断结果
type Helper struct {
	provider Provider
	albumTTL time.Duration
}

// NewHelper 创建缓存辅助工具，provider 为 nil 时所有操作都视为未命中
func NewHelper(provider Provider, albumTTL time.Duration) *Helper {
	if albumTTL <= 0 {
		albumTTL = DefaultAlbumCacheExpiration
	}
	return &Helper{provider: provider, albumTTL: albumTTL}
}

// albumEntry 缓存中的相册详情，Revision 与当前版本不一致时视为未命中
type albumEntry struct {
	Revision string          `json:"rev"`
	Detail   json.RawMessage `json:"detail"`
}

var errNoRevision = errors.New("album cache revision unavailable")

// CurrentAlbumRevision 读数据库之前获取相册缓存版本，不存在时生成新版本
// InvalidateAlbum 会删除版本，失效前读到的数据即使之后才写入缓存也不会再命中
func (h *Helper) CurrentAlbumRevision(ctx context.Context, albumID uint) string {
	if h == nil || h.provider == nil {
		return ""
	}
	key := AlbumRevision.BuildID(albumID)

	var rev string
	if err := h.provider.Get(ctx, key, &rev); err == nil && rev != "" {
		return rev
	}

	rev = uuid.NewString()
	if err := h.provider.Set(ctx, key, rev, 2*h.albumTTL); err != nil {
		log.Printf("[Cache] failed to set revision for album %d: %v", albumID, err)
		return ""
	}
	return rev
}

// CacheAlbum 以读取前获得的版本缓存相册详情
func (h *Helper) CacheAlbum(ctx context.Context, albumID uint, rev string, detail interface{}) error {
	if h == nil || h.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	if rev == "" {
		return errNoRevision
	}

	data, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	entry := albumEntry{Revision: rev, Detail: data}
	return h.provider.Set(ctx, AlbumDetail.BuildID(albumID), entry, addJitter(h.albumTTL))
}

// GetCachedAlbum 获取缓存的相册详情
func (h *Helper) GetCachedAlbum(ctx context.Context, albumID uint, dest interface{}) error {
	if h == nil || h.provider == nil {
		return ErrCacheMiss
	}

	var entry albumEntry
	if err := h.provider.Get(ctx, AlbumDetail.BuildID(albumID), &entry); err != nil {
		return err
	}

	var current string
	if err := h.provider.Get(ctx, AlbumRevision.BuildID(albumID), &current); err != nil || current != entry.Revision {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(entry.Detail, dest); err != nil {
		return ErrCacheMiss
	}
	return nil
}

// InvalidateAlbum 删除相册版本和详情缓存，失败只记录日志
func (h *Helper) InvalidateAlbum(ctx context.Context, albumID uint) {
	if h == nil || h.provider == nil {
		return
	}
	if err := h.provider.Delete(ctx, AlbumRevision.BuildID(albumID)); err != nil {
		log.Printf("[Cache] failed to drop revision for album %d: %v", albumID, err)
	}
	if err := h.provider.Delete(ctx, AlbumDetail.BuildID(albumID)); err != nil {
		log.Printf("[Cache] failed to invalidate album %d: %v", albumID, err)
	}
}
