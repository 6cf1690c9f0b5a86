package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anoixa/pattern-vault/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Memory 内存缓存实现
type Memory struct {
	client *ristretto.Cache
}

// Config 内存缓存配置
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

// NewMemory 创建新的内存缓存提供者
func NewMemory(config Config) (*Memory, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: config.BufferItems,
		Metrics:     config.Metrics,
	})

	if err != nil {
		return nil, err
	}

	return &Memory{
		client: client,
	}, nil
}

// DefaultConfig 默认配置，MaxCost 按条目数计算
func DefaultConfig() Config {
	return Config{
		NumCounters: 100000,
		MaxCost:     10000,
		BufferItems: 64,
	}
}

// Set 设置缓存项
// 值先序列化为 JSON，之后对返回值的修改不会影响缓存
func (m *Memory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, ok := value.([]byte)
	if !ok {
		var err error
		if data, err = json.Marshal(value); err != nil {
			return err
		}
	}

	set := m.client.SetWithTTL(key, data, 1, expiration)
	if set {
		// 等待值被实际设置
		m.client.Wait()
	}
	return nil
}

// Get 获取缓存项
func (m *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	value, found := m.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}

	data, ok := value.([]byte)
	if !ok {
		return types.ErrCacheMiss
	}

	if out, ok := dest.(*[]byte); ok {
		*out = data
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return types.ErrCacheMiss
	}
	return nil
}

// Delete 删除缓存项
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.client.Del(key)
	return nil
}

// Exists 检查缓存项是否存在
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.client.Get(key)
	return found, nil
}

// Close 关闭缓存连接
func (m *Memory) Close() error {
	m.client.Close()
	return nil
}

// Name 返回缓存提供者名称
func (m *Memory) Name() string {
	return "memory"
}
