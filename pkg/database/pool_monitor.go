package database

import (
	"context"
	"database/sql"
	"time"
	"course_market/pkg/metrics"

	"go.uber.org/zap"
)

// StatsSource 提供连接池统计，*sql.DB 满足该接口
type StatsSource interface {
	Stats() sql.DBStats
}

// PoolMonitor 定期采集连接池状态写入指标，使用率过高时告警
type PoolMonitor struct {
	db             StatsSource
	metrics        *metrics.Collector
	logger         *zap.Logger
	interval       time.Duration
	alertThreshold float64 // 占用连接数 / 最大连接数
}

func NewPoolMonitor(db StatsSource, m *metrics.Collector, logger *zap.Logger, interval time.Duration) *PoolMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolMonitor{
		db:             db,
		metrics:        m,
		logger:         logger,
		interval:       interval,
		alertThreshold: 0.8,
	}
}

// Run 直到 ctx 取消
func (pm *PoolMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		pm.Collect()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Collect 采集一次，返回本次快照
func (pm *PoolMonitor) Collect() sql.DBStats {
	stats := pm.db.Stats()
	pm.metrics.ObserveDBPool(stats)

	if stats.MaxOpenConnections > 0 {
		usage := float64(stats.InUse) / float64(stats.MaxOpenConnections)
		if usage >= pm.alertThreshold {
			pm.logger.Warn("database pool usage high",
				zap.Int("in_use", stats.InUse),
				zap.Int("max_open", stats.MaxOpenConnections),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait_duration", stats.WaitDuration))
		}
	}
	return stats
}
