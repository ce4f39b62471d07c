package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull 队列已满，任务被丢弃
var ErrQueueFull = errors.New("worker queue full")

// Task 异步任务
type Task struct {
	Name  string
	Key   string // 业务标识，用于日志
	Retry int    // 已重试次数
	Fn    func(ctx context.Context) error
	// OnDone 任务最终结果回调（成功、超过重试次数或被丢弃时各调用一次）
	OnDone func(err error)
}

// Pool 固定数量 worker + 重试队列
type Pool struct {
	taskQueue  chan Task
	retryQueue chan Task
	workerNum  int
	maxRetry   int
	backoff    time.Duration
	logger     *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool 创建 worker pool
func NewPool(workerNum, bufferSize, maxRetry int, logger *zap.Logger) *Pool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Pool{
		taskQueue:  make(chan Task, bufferSize),
		retryQueue: make(chan Task, bufferSize/2+1),
		workerNum:  workerNum,
		maxRetry:   maxRetry,
		backoff:    time.Second,
		logger:     logger,
	}
}

// WithBackoff 设置重试间隔基数（第 n 次重试等待 n*backoff）
func (p *Pool) WithBackoff(d time.Duration) *Pool {
	p.backoff = d
	return p
}

// Start 启动 worker 与重试协程
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workerNum; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Add(1)
	go p.retryWorker(ctx)
	p.logger.Info("worker pool started", zap.Int("workers", p.workerNum))
}

// Stop 停止所有 worker 并等待退出，未处理的任务不会执行
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Submit 提交任务，队列满时立即回调 OnDone(ErrQueueFull)
func (p *Pool) Submit(task Task) error {
	select {
	case p.taskQueue <- task:
		return nil
	default:
		p.logger.Warn("worker queue full, task dropped", zap.String("task", task.Name), zap.String("key", task.Key))
		p.finish(task, ErrQueueFull)
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.taskQueue:
			p.process(ctx, id, task)
		}
	}
}

func (p *Pool) process(ctx context.Context, id int, task Task) {
	err := task.Fn(ctx)
	if err == nil {
		p.finish(task, nil)
		return
	}

	log := p.logger.With(zap.Int("worker", id), zap.String("task", task.Name), zap.String("key", task.Key))
	log.Warn("task failed", zap.Int("retry", task.Retry), zap.Error(err))

	// 未达到最大重试次数，加入重试队列
	if task.Retry < p.maxRetry {
		task.Retry++
		select {
		case p.retryQueue <- task:
			return
		default:
			log.Error("retry queue full, task dropped")
		}
	}
	p.finish(task, err)
}

func (p *Pool) retryWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.retryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(task.Retry) * p.backoff):
			}

			select {
			case p.taskQueue <- task:
			default:
				p.logger.Error("main queue full, retry dropped", zap.String("task", task.Name), zap.String("key", task.Key))
				p.finish(task, ErrQueueFull)
			}
		}
	}
}

func (p *Pool) finish(task Task, err error) {
	if task.OnDone != nil {
		task.OnDone(err)
	}
}
