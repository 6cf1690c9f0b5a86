package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("storage: file not found")

// Provider 存储提供者接口
// identifier 为相对存储路径，如 photos/2026/10/18/<uuid>.png
type Provider interface {
	// SaveWithContext 保存文件到存储
	SaveWithContext(ctx context.Context, identifier string, file io.Reader) error

	// GetWithContext 从存储获取文件，不存在时返回 ErrNotFound
	GetWithContext(ctx context.Context, identifier string) (io.ReadSeeker, error)

	// DeleteWithContext 从存储删除文件
	DeleteWithContext(ctx context.Context, identifier string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, identifier string) (bool, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}
