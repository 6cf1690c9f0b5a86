package albums

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/anoixa/pattern-vault/cache"
	"github.com/anoixa/pattern-vault/cache/memory"
	"github.com/anoixa/pattern-vault/database/dbtest"
	"github.com/anoixa/pattern-vault/database/models"
	albumsRepo "github.com/anoixa/pattern-vault/database/repo/albums"
	groupsRepo "github.com/anoixa/pattern-vault/database/repo/groups"
	"github.com/anoixa/pattern-vault/internal/access"
	"github.com/anoixa/pattern-vault/internal/errs"
	"github.com/anoixa/pattern-vault/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type syncRemover struct {
	mu      sync.Mutex
	storage storage.Provider
	keys    []string
}

func (r *syncRemover) RemoveFiles(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		_ = r.storage.DeleteWithContext(context.Background(), k)
		r.keys = append(r.keys, k)
	}
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	groups  *groupsRepo.Repository
	storage storage.Provider
	remover *syncRemover
	users   []models.User
	group   *models.Group
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	groups := groupsRepo.NewRepository(db)
	users := dbtest.SeedUsers(t, db, 3)

	g := &models.Group{Name: "trip", InviteCode: "TRIP01", AdminID: users[0].ID}
	require.NoError(t, groups.CreateWithAdmin(context.Background(), g))
	require.NoError(t, groups.AddMember(context.Background(), g.ID, users[1].ID))

	provider, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	mem, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	remover := &syncRemover{storage: provider}
	svc := NewService(albumsRepo.NewRepository(db), access.NewGuard(groups), provider, remover,
		cache.NewHelper(mem, time.Minute), Options{MaxFiles: 3})
	return fixture{db: db, svc: svc, groups: groups, storage: provider, remover: remover, users: users, group: g}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fileHeaders 构造 multipart 文件头，与 gin 解析出的结构一致
func fileHeaders(t *testing.T, files map[string][]byte) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile("photos", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["photos"]
}

func TestUploadAndGet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	album, err := f.svc.Create(ctx, f.users[0].ID, access.Group(f.group.ID), "Summer")
	require.NoError(t, err)

	photos, err := f.svc.UploadPhotos(ctx, f.users[1].ID, album.ID, fileHeaders(t, map[string][]byte{
		"beach.png": pngBytes(t, 4, 3),
	}))
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "image/png", photos[0].MimeType)
	assert.Equal(t, 4, photos[0].Width)
	assert.Equal(t, 3, photos[0].Height)
	assert.Equal(t, "beach.png", photos[0].OriginalName)

	got, err := f.svc.Get(ctx, f.users[0].ID, album.ID)
	require.NoError(t, err)
	require.Len(t, got.Photos, 1)

	// 第二次读取走缓存，但权限检查依旧生效
	_, err = f.svc.Get(ctx, f.users[2].ID, album.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	meta, r, err := f.svc.OpenPhoto(ctx, f.users[1].ID, album.ID, photos[0].Filename)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
	assert.Equal(t, meta.Size, int64(len(data)))

	// 上传后缓存失效
	_, err = f.svc.UploadPhotos(ctx, f.users[0].ID, album.ID, fileHeaders(t, map[string][]byte{
		"sunset.png": pngBytes(t, 2, 2),
	}))
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, f.users[0].ID, album.ID)
	require.NoError(t, err)
	assert.Len(t, got.Photos, 2)
}

func TestUploadRejectsInvalidFiles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	album, err := f.svc.Create(ctx, f.users[0].ID, access.Personal(), "Mine")
	require.NoError(t, err)

	_, err = f.svc.UploadPhotos(ctx, f.users[0].ID, album.ID, nil)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.svc.UploadPhotos(ctx, f.users[0].ID, album.ID, fileHeaders(t, map[string][]byte{
		"good.png":  pngBytes(t, 1, 1),
		"notes.txt": []byte("just text"),
	}))
	assert.ErrorIs(t, err, errs.ErrValidation)

	many := map[string][]byte{}
	for i := 0; i < 4; i++ {
		many[fmt.Sprintf("p%d.png", i)] = pngBytes(t, 1, 1)
	}
	_, err = f.svc.UploadPhotos(ctx, f.users[0].ID, album.ID, fileHeaders(t, many))
	assert.ErrorIs(t, err, errs.ErrValidation)

	got, err := f.svc.Get(ctx, f.users[0].ID, album.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Photos)

	// 失败批次中已写入的文件会被清理
	for _, k := range f.remover.keys {
		ok, err := f.storage.Exists(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestPersonalAlbumIsOwnerOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	album, err := f.svc.Create(ctx, f.users[0].ID, access.Personal(), "Private")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.users[1].ID, album.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	_, err = f.svc.UploadPhotos(ctx, f.users[1].ID, album.ID, fileHeaders(t, map[string][]byte{"x.png": pngBytes(t, 1, 1)}))
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.users[1].ID, album.ID), errs.ErrAuthorization)

	_, err = f.svc.Create(ctx, f.users[2].ID, access.Group(f.group.ID), "Sneaky")
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	_, err = f.svc.List(ctx, f.users[2].ID, access.Group(f.group.ID))
	assert.ErrorIs(t, err, errs.ErrAuthorization)
}

func TestDeletePhotoAndAlbum(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	album, err := f.svc.Create(ctx, f.users[0].ID, access.Group(f.group.ID), "Shared")
	require.NoError(t, err)
	photos, err := f.svc.UploadPhotos(ctx, f.users[0].ID, album.ID, fileHeaders(t, map[string][]byte{
		"a.png": pngBytes(t, 1, 1),
		"b.png": pngBytes(t, 1, 1),
	}))
	require.NoError(t, err)
	require.Len(t, photos, 2)

	// 群组成员可以删除其他成员上传的照片
	require.NoError(t, f.svc.DeletePhoto(ctx, f.users[1].ID, album.ID, photos[0].Filename))
	ok, err := f.storage.Exists(ctx, photos[0].StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, f.svc.DeletePhoto(ctx, f.users[1].ID, album.ID, photos[0].Filename), errs.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeletePhoto(ctx, f.users[1].ID, album.ID, "../../etc/passwd"), errs.ErrNotFound)

	list, err := f.svc.List(ctx, f.users[1].ID, access.Group(f.group.ID))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].PhotoCount)

	require.NoError(t, f.svc.Delete(ctx, f.users[1].ID, album.ID))
	ok, err = f.storage.Exists(ctx, photos[1].StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Get(ctx, f.users[0].ID, album.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(context.Background(), f.users[0].ID, access.Personal(), " ")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCreateAfterConcurrentGroupDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	fired := false
	err := f.db.Callback().Query().After("gorm:query").Register("test:delete_group", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "group_memberships" {
			return
		}
		fired = true
		_, err := f.groups.Delete(context.Background(), f.group.ID, f.users[0].ID)
		assert.NoError(t, err)
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.users[1].ID, access.Group(f.group.ID), "Late")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, f.db.Callback().Query().Remove("test:delete_group"))

	violations, err := f.groups.CheckInvariants(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestGetDoesNotCacheSnapshotOlderThanUpload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	album, err := f.svc.Create(ctx, f.users[0].ID, access.Personal(), "Race")
	require.NoError(t, err)

	// 照片列表读出之后、写回缓存之前，另一次上传完成并使缓存失效
	fired := false
	err = f.db.Callback().Query().After("gorm:query").Register("test:append_during_get", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "album_photos" {
			return
		}
		fired = true
		late := &models.AlbumPhoto{Filename: "late.png", StorageKey: "photos/late.png", MimeType: "image/png", UploadedAt: time.Now()}
		assert.NoError(t, f.svc.repo.AppendPhotos(context.Background(), album.ID, []*models.AlbumPhoto{late}))
		f.svc.cache.InvalidateAlbum(context.Background(), album.ID)
	})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.users[0].ID, album.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Photos)
	require.True(t, fired)
	require.NoError(t, f.db.Callback().Query().Remove("test:append_during_get"))

	got, err = f.svc.Get(ctx, f.users[0].ID, album.ID)
	require.NoError(t, err)
	require.Len(t, got.Photos, 1)
	assert.Equal(t, "late.png", got.Photos[0].Filename)
}
