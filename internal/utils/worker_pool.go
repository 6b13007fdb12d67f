package utils

import (
	"log"
	"sync"
)

// WorkerPool 通用协程池，用于归档落库等异步任务，
// 防止高并发下 Goroutine 暴涨
type WorkerPool struct {
	jobQueue  chan func()
	workerNum int
	wg        sync.WaitGroup
	quit      chan struct{}
	stopOnce  sync.Once
}

// NewWorkerPool 创建一个新的协程池
func NewWorkerPool(workerNum int, queueSize int) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &WorkerPool{
		jobQueue:  make(chan func(), queueSize),
		workerNum: workerNum,
		quit:      make(chan struct{}),
	}
}

// Start 启动协程池
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.jobQueue:
					// 使用 defer recover 防止单个任务 panic 导致 worker 挂掉
					func() {
						defer func() {
							if r := recover(); r != nil {
								log.Printf("worker %d panic: %v", workerID, r)
							}
						}()
						job()
					}()
				case <-p.quit:
					return
				}
			}
		}(i)
	}
}

// Submit 提交任务到协程池；队列已满时阻塞直到有空位
func (p *WorkerPool) Submit(job func()) {
	p.jobQueue <- job
}

// TrySubmit 尝试提交任务；队列已满时立即返回 false，由调用方决定降级策略
func (p *WorkerPool) TrySubmit(job func()) bool {
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// Stop 停止协程池并等待所有 worker 退出
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
