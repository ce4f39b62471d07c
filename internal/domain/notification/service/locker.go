package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
)

// Locker 保证同一时刻只有一个实例轮询发件箱
type Locker interface {
	// TryLock 不等待，未获取到时返回 nil unlock
	TryLock(ctx context.Context) (unlock func(), err error)
}

type redsyncLocker struct {
	rs     *redsync.Redsync
	name   string
	expiry time.Duration
}

// NewRedsyncLocker 基于 Redis 的分布式锁
func NewRedsyncLocker(rs *redsync.Redsync, name string, expiry time.Duration) Locker {
	return &redsyncLocker{rs: rs, name: name, expiry: expiry}
}

func (l *redsyncLocker) TryLock(ctx context.Context) (func(), error) {
	mutex := l.rs.NewMutex(l.name, redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		// 锁过期后解锁会失败，忽略即可
		_, _ = mutex.UnlockContext(context.Background())
	}, nil
}

type localLocker struct {
	mu sync.Mutex
}

// NewLocalLocker 单实例部署（未配置 Redis）时使用
func NewLocalLocker() Locker {
	return &localLocker{}
}

func (l *localLocker) TryLock(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, nil
	}
	return l.mu.Unlock, nil
}
