package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"course_market/internal/domain/notification/model"
	"course_market/internal/domain/notification/repository"
	"course_market/internal/pkg/config"
	"course_market/internal/pkg/worker"
	"course_market/pkg/metrics"

	"go.uber.org/zap"
)

// ErrPermanent 不可重试的失败，事件直接标记为 FAILED
var ErrPermanent = errors.New("permanent outbox failure")

const maxRetryDelay = 10 * time.Minute

// Handler 事件处理函数
type Handler func(ctx context.Context, e *model.OutboxEvent) error

// Relay 轮询发件箱并交给 worker pool 投递
type Relay struct {
	repo     repository.OutboxRepository
	locker   Locker
	pool     *worker.Pool
	handlers map[string]Handler
	cfg      config.OutboxConfig
	lease    time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

func NewRelay(
	repo repository.OutboxRepository,
	locker Locker,
	pool *worker.Pool,
	cfg config.OutboxConfig,
	m *metrics.Collector,
	logger *zap.Logger,
) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Relay{
		repo:     repo,
		locker:   locker,
		pool:     pool,
		handlers: make(map[string]Handler),
		cfg:      cfg,
		lease:    time.Minute,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle 注册事件处理函数
func (r *Relay) Handle(eventType string, h Handler) {
	r.handlers[eventType] = h
}

// Run 阻塞运行直到 ctx 取消
func (r *Relay) Run(ctx context.Context) error {
	r.pool.Start(ctx)
	defer r.pool.Stop()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.Duration("interval", r.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				r.logger.Error("outbox tick failed", zap.Error(err))
			}
		}
	}
}

// Tick 领取一批事件并等待本批处理完成，返回领取数量
func (r *Relay) Tick(ctx context.Context) (int, error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		r.logger.Debug("outbox lock not acquired", zap.Error(err))
		return 0, nil
	}
	if unlock == nil {
		return 0, nil
	}
	defer unlock()

	events, err := r.repo.ClaimPending(ctx, r.cfg.BatchSize, r.lease, r.now())
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}

	var wg sync.WaitGroup
	for i := range events {
		e := events[i]
		wg.Add(1)
		_ = r.pool.Submit(worker.Task{
			Name: e.EventType,
			Key:  e.ID,
			Fn: func(ctx context.Context) error {
				return r.dispatch(ctx, &e)
			},
			OnDone: func(err error) {
				defer wg.Done()
				r.complete(ctx, &e, err)
			},
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// 未完成的事件租约到期后会被重新领取
		return len(events), ctx.Err()
	}

	r.refreshBacklog(ctx)
	return len(events), nil
}

func (r *Relay) dispatch(ctx context.Context, e *model.OutboxEvent) error {
	h, ok := r.handlers[e.EventType]
	if !ok {
		return fmt.Errorf("%w: no handler for %s", ErrPermanent, e.EventType)
	}
	return h(ctx, e)
}

func (r *Relay) complete(ctx context.Context, e *model.OutboxEvent, err error) {
	// 关闭过程中也要落库投递结果
	ctx = context.WithoutCancel(ctx)
	log := r.logger.With(zap.String("event_id", e.ID), zap.String("event_type", e.EventType))

	if errors.Is(err, worker.ErrQueueFull) {
		log.Warn("outbox event deferred, worker queue full")
		return
	}
	r.metrics.OutboxDispatched(e.EventType, err)

	if err == nil {
		if mErr := r.repo.MarkDispatched(ctx, e.ID, r.now()); mErr != nil {
			log.Error("mark outbox event dispatched failed", zap.Error(mErr))
		}
		return
	}

	attempts := e.Attempts + 1
	if errors.Is(err, ErrPermanent) || attempts >= r.cfg.MaxAttempts {
		log.Error("outbox event failed", zap.Int("attempts", attempts), zap.Error(err))
		if mErr := r.repo.MarkFailed(ctx, e.ID, attempts, err.Error()); mErr != nil {
			log.Error("mark outbox event failed", zap.Error(mErr))
		}
		return
	}

	next := r.now().Add(retryDelay(attempts))
	log.Warn("outbox event will retry", zap.Int("attempts", attempts), zap.Time("next", next), zap.Error(err))
	if mErr := r.repo.MarkRetry(ctx, e.ID, attempts, err.Error(), next); mErr != nil {
		log.Error("mark outbox event retry failed", zap.Error(mErr))
	}
}

func (r *Relay) refreshBacklog(ctx context.Context) {
	n, err := r.repo.CountPending(ctx)
	if err != nil {
		r.logger.Warn("count outbox backlog failed", zap.Error(err))
		return
	}
	r.metrics.SetOutboxBacklog(int(n))
}

// retryDelay 指数退避：2s, 4s, 8s ... 最长 10 分钟
func retryDelay(attempts int) time.Duration {
	if attempts > 10 {
		return maxRetryDelay
	}
	d := time.Duration(1<<attempts) * time.Second
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
