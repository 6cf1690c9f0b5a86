package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/anoixa/pattern-vault/storage"
)

const (
	removeTimeout = 30 * time.Second
	// submitWait 队列满时最多等待的时间
	submitWait = time.Second
)

// FileRemover 在协程池中异步删除存储文件
type FileRemover struct {
	pool    *Pool
	storage storage.Provider
}

// NewFileRemover 创建文件清理器
func NewFileRemover(pool *Pool, provider storage.Provider) *FileRemover {
	return &FileRemover{pool: pool, storage: provider}
}

// RemoveFiles 提交删除任务，文件已不存在时忽略
func (r *FileRemover) RemoveFiles(keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		key := key
		ok := r.pool.SubmitBlocking(func() {
			ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
			defer cancel()

			if err := r.storage.DeleteWithContext(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Printf("[Worker] failed to remove file %s: %v", key, err)
			}
		}, submitWait)
		if !ok {
			log.Printf("[Worker] remove task for %s was dropped", key)
		}
	}
}
