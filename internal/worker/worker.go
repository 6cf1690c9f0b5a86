package worker

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Task 异步任务
type Task func()

const (
	defaultQueueSize = 1000
)

// Stats 协程池运行统计
type Stats struct {
	WorkerCount int    `json:"worker_count"`
	QueueLen    int    `json:"queue_len"`
	QueueCap    int    `json:"queue_cap"`
	Submitted   uint64 `json:"submitted"`
	Executed    uint64 `json:"executed"`
	Failed      uint64 `json:"failed"`
	Dropped     uint64 `json:"dropped"`
}

// Pool 协程池，停止时会执行完队列中剩余的任务
type Pool struct {
	workers int
	queue   chan Task
	wg      sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	submitted atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

var (
	globalPool *Pool
	globalMu   sync.Mutex
)

// InitGlobalPool 初始化全局协程池
func InitGlobalPool(workers, queueSize int) *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		globalPool = NewPool(workers, queueSize)
	}
	return globalPool
}

// StopGlobalPool 停止全局协程池
func StopGlobalPool() {
	globalMu.Lock()
	pool := globalPool
	globalPool = nil
	globalMu.Unlock()

	if pool != nil {
		pool.Stop()
	}
}

// NewPool 创建并启动协程池
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	log.Printf("[Worker] pool started with %d workers (queue %d)", workers, queueSize)
	return p
}

// Stop 停止接收新任务并等待队列清空，可重复调用
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	log.Printf("[Worker] pool stopped, executed=%d failed=%d dropped=%d",
		p.executed.Load(), p.failed.Load(), p.dropped.Load())
}

// Submit 非阻塞提交，队列满或已停止时丢弃
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		log.Println("[Worker] WARN: queue is full, task dropped")
		return false
	}
}

// SubmitBlocking 队列满时等待，timeout <= 0 表示一直等待
func (p *Pool) SubmitBlocking(task Task, timeout time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		return false
	}

	if timeout <= 0 {
		p.queue <- task
		p.submitted.Add(1)
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return true
	case <-timer.C:
		p.dropped.Add(1)
		return false
	}
}

// GetStats 获取统计信息
func (p *Pool) GetStats() Stats {
	return Stats{
		WorkerCount: p.workers,
		QueueLen:    len(p.queue),
		QueueCap:    cap(p.queue),
		Submitted:   p.submitted.Load(),
		Executed:    p.executed.Load(),
		Failed:      p.failed.Load(),
		Dropped:     p.dropped.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		if task == nil {
			continue
		}
		p.execute(task)
	}
}

// execute 执行任务并捕获 panic
func (p *Pool) execute(task Task) {
	defer func() {
		p.executed.Add(1)
		if r := recover(); r != nil {
			p.failed.Add(1)
			log.Printf("[Worker] panic recovered in task: %v", r)
		}
	}()
	task()
}
