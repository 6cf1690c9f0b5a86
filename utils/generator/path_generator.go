package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PathGenerator 照片存储路径生成器
type PathGenerator struct {
	newID func() string
}

// NewPathGenerator 创建路径生成器
func NewPathGenerator() *PathGenerator {
	return &PathGenerator{newID: func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}}
}

// StorageIdentifiers 存储标识对
type StorageIdentifiers struct {
	Filename    string // 对外暴露的文件名，如 3f2a...e1.jpg
	StoragePath string // 存储路径，如 photos/2024/01/15/3f2a...e1.jpg
}

// GeneratePhotoIdentifiers 生成照片文件名和按日期分层的存储路径
func (pg *PathGenerator) GeneratePhotoIdentifiers(ext string, uploadTime time.Time) StorageIdentifiers {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	filename := pg.newID() + strings.ToLower(ext)

	return StorageIdentifiers{
		Filename:    filename,
		StoragePath: fmt.Sprintf("photos/%s/%s", uploadTime.Format("2006/01/02"), filename),
	}
}

// IsValidFilename 文件名只允许字母数字和一个扩展名，防止路径穿越
func IsValidFilename(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	dots := 0
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return dots <= 1 && !strings.HasPrefix(name, ".")
}
