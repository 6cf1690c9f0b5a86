package cache

import (
	"context"
	"testing"
	"time"

	"github.com/anoixa/pattern-vault/cache/memory"
	"github.com/anoixa/pattern-vault/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type albumDetail struct {
	ID     uint     `json:"id"`
	Name   string   `json:"name"`
	Photos []string `json:"photos"`
}

func newMemory(t *testing.T) Provider {
	t.Helper()
	m, err := memory.NewMemory(memory.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMemoryProvider(t *testing.T) {
	p := newMemory(t)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, "k", albumDetail{ID: 1, Name: "trip"}, time.Minute))

	var got albumDetail
	require.NoError(t, p.Get(ctx, "k", &got))
	assert.Equal(t, "trip", got.Name)

	ok, err := p.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Delete(ctx, "k"))
	err = p.Get(ctx, "k", &got)
	assert.True(t, IsCacheMiss(err))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestHelper_AlbumRoundTrip(t *testing.T) {
	h := NewHelper(newMemory(t), time.Minute)
	ctx := context.Background()

	var got albumDetail
	assert.True(t, IsCacheMiss(h.GetCachedAlbum(ctx, 7, &got)))

	rev := h.CurrentAlbumRevision(ctx, 7)
	require.NotEmpty(t, rev)
	assert.Equal(t, rev, h.CurrentAlbumRevision(ctx, 7))

	require.NoError(t, h.CacheAlbum(ctx, 7, rev, albumDetail{ID: 7, Photos: []string{"a.png"}}))
	require.NoError(t, h.GetCachedAlbum(ctx, 7, &got))
	assert.Equal(t, []string{"a.png"}, got.Photos)

	h.InvalidateAlbum(ctx, 7)
	assert.True(t, IsCacheMiss(h.GetCachedAlbum(ctx, 7, &got)))
}

func TestHelper_StaleWriteAfterInvalidate(t *testing.T) {
	h := NewHelper(newMemory(t), time.Minute)
	ctx := context.Background()

	// 读数据库前取得版本，写回缓存前相册已被修改并失效
	rev := h.CurrentAlbumRevision(ctx, 3)
	h.InvalidateAlbum(ctx, 3)
	require.NoError(t, h.CacheAlbum(ctx, 3, rev, albumDetail{ID: 3}))

	var got albumDetail
	assert.True(t, IsCacheMiss(h.GetCachedAlbum(ctx, 3, &got)))

	fresh := h.CurrentAlbumRevision(ctx, 3)
	assert.NotEqual(t, rev, fresh)
	require.NoError(t, h.CacheAlbum(ctx, 3, fresh, albumDetail{ID: 3, Photos: []string{"new.png"}}))
	require.NoError(t, h.GetCachedAlbum(ctx, 3, &got))
	assert.Equal(t, []string{"new.png"}, got.Photos)
}

func TestHelper_NilProvider(t *testing.T) {
	h := NewHelper(nil, 0)
	ctx := context.Background()

	assert.Empty(t, h.CurrentAlbumRevision(ctx, 1))
	assert.Error(t, h.CacheAlbum(ctx, 1, "", albumDetail{}))
	assert.True(t, IsCacheMiss(h.GetCachedAlbum(ctx, 1, &albumDetail{})))
	h.InvalidateAlbum(ctx, 1)
}

func TestKeyBuilder(t *testing.T) {
	assert.Equal(t, "album_detail:42", AlbumDetail.BuildID(uint(42)))
	assert.Equal(t, "album_rev:42", AlbumRevision.BuildID(uint(42)))
	assert.Equal(t, "x:a:b", NewKeyBuilder("x").Build("a", "b"))
	assert.Equal(t, "x", NewKeyBuilder("x").Build())
}

func TestAddJitter(t *testing.T) {
	for i := 0; i < 20; i++ {
		d := addJitter(time.Minute)
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.Less(t, d, time.Minute+6*time.Second)
	}
	assert.Equal(t, time.Duration(0), addJitter(0))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&config.Config{CacheType: TypeMemory})
	require.NoError(t, err)
	assert.Equal(t, "memory", p.Name())
	_ = p.Close()

	_, err = NewProvider(&config.Config{CacheType: "memcached"})
	assert.Error(t, err)
}
