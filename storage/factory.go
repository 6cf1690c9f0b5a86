package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/anoixa/pattern-vault/config"
)

const (
	TypeLocal  = "local"
	TypeMinio  = "minio"
	TypeWebDAV = "webdav"
)

// NewProvider 根据 storage_type 创建存储提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.StorageType {
	case "", TypeLocal:
		provider, err = NewLocalStorage(cfg.StorageLocalPath)
	case TypeMinio:
		provider, err = NewMinioStorage(MinioConfig{
			Endpoint:        cfg.StorageMinioEndpoint,
			AccessKeyID:     cfg.StorageMinioAccessKey,
			SecretAccessKey: cfg.StorageMinioSecretKey,
			BucketName:      cfg.StorageMinioBucket,
			UseSSL:          cfg.StorageMinioUseSSL,
		})
	case TypeWebDAV:
		provider, err = NewWebDAVStorage(WebDAVConfig{
			URL:      cfg.StorageWebDAVURL,
			Username: cfg.StorageWebDAVUsername,
			Password: cfg.StorageWebDAVPassword,
			RootPath: cfg.StorageWebDAVRoot,
			Timeout:  30 * time.Second,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageType, err)
	}

	log.Printf("[Storage] using provider %s", provider.Name())
	return provider, nil
}
