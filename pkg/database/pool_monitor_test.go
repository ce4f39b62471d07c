package database

import (
	"context"
	"database/sql"
	"testing"
	"time"
	"course_market/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStats struct {
	stats sql.DBStats
}

func (f fakeStats) Stats() sql.DBStats {
	return f.stats
}

func TestPoolMonitorWarnsOnHighUsage(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := fakeStats{stats: sql.DBStats{MaxOpenConnections: 10, OpenConnections: 10, InUse: 9, Idle: 1}}

	pm := NewPoolMonitor(src, metrics.NewCollector(prometheus.NewRegistry()), zap.New(core), time.Second)
	stats := pm.Collect()

	assert.Equal(t, 9, stats.InUse)
	assert.Equal(t, 1, logs.FilterMessage("database pool usage high").Len())
}

func TestPoolMonitorQuietWhenHealthy(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	src := fakeStats{stats: sql.DBStats{MaxOpenConnections: 100, OpenConnections: 10, InUse: 2, Idle: 8}}

	pm := NewPoolMonitor(src, metrics.NewCollector(prometheus.NewRegistry()), zap.New(core), time.Second)
	pm.Collect()

	assert.Zero(t, logs.Len())
}

func TestPoolMonitorRunStopsOnCancel(t *testing.T) {
	pm := NewPoolMonitor(fakeStats{}, metrics.NewCollector(prometheus.NewRegistry()), zap.NewNop(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pm.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
