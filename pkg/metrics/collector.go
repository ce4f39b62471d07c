package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 缓存指标
	cacheLookups *prometheus.CounterVec

	// 收银台指标
	ordersCreated        *prometheus.CounterVec
	orderCancellations   prometheus.Counter
	paymentConfirmations *prometheus.CounterVec
	verificationFailures *prometheus.CounterVec
	gatewayCallDuration  *prometheus.HistogramVec
	refundsTotal         *prometheus.CounterVec

	// 发件箱指标
	outboxDispatched *prometheus.CounterVec
	outboxBacklog    prometheus.Gauge

	// 连接池指标
	dbConnections *prometheus.GaugeVec
	dbWaitCount   prometheus.Gauge
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_lookups_total",
				Help: "Cache lookups by key prefix and result",
			},
			[]string{"key_prefix", "result"},
		),
		ordersCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_orders_created_total",
				Help: "Orders created by payment gateway",
			},
			[]string{"gateway"},
		),
		orderCancellations: f.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_orders_cancelled_total",
				Help: "Orders cancelled by their owner",
			},
		),
		paymentConfirmations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_payment_confirmations_total",
				Help: "Payment confirmations by gateway, source and outcome",
			},
			[]string{"gateway", "source", "outcome"},
		),
		verificationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_verification_failures_total",
				Help: "Gateway notifications rejected by signature verification",
			},
			[]string{"gateway", "source"},
		),
		gatewayCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_gateway_call_duration_seconds",
				Help:    "Outbound gateway call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"gateway", "operation", "status"},
		),
		refundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_refunds_total",
				Help: "Refunds by gateway and status",
			},
			[]string{"gateway", "status"},
		),
		outboxDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_events_dispatched_total",
				Help: "Outbox events processed by type and result",
			},
			[]string{"event_type", "result"},
		),
		outboxBacklog: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "outbox_events_backlog",
				Help: "Pending outbox events fetched in the last poll",
			},
		),
		dbConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db_pool_connections",
				Help: "Database pool connections by state",
			},
			[]string{"state"},
		),
		dbWaitCount: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_pool_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Collector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCategory(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup 记录缓存命中情况
func (m *Collector) RecordCacheLookup(keyPrefix string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(keyPrefix, result).Inc()
}

func (m *Collector) OrderCreated(gateway string) {
	m.ordersCreated.WithLabelValues(gateway).Inc()
}

func (m *Collector) OrderCancelled() {
	m.orderCancellations.Inc()
}

// PaymentConfirmed 记录一次回调/通知的处理结果
func (m *Collector) PaymentConfirmed(gateway, source, outcome string) {
	m.paymentConfirmations.WithLabelValues(gateway, source, outcome).Inc()
}

func (m *Collector) VerificationFailed(gateway, source string) {
	m.verificationFailures.WithLabelValues(gateway, source).Inc()
}

// ObserveGatewayCall 记录调用网关的耗时
func (m *Collector) ObserveGatewayCall(gateway, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.gatewayCallDuration.WithLabelValues(gateway, operation, status).Observe(time.Since(start).Seconds())
}

func (m *Collector) Refunded(gateway string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.refundsTotal.WithLabelValues(gateway, status).Inc()
}

func (m *Collector) OutboxDispatched(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.outboxDispatched.WithLabelValues(eventType, result).Inc()
}

func (m *Collector) SetOutboxBacklog(n int) {
	m.outboxBacklog.Set(float64(n))
}

// ObserveDBPool 记录连接池快照
func (m *Collector) ObserveDBPool(stats sql.DBStats) {
	m.dbConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	m.dbConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.dbConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	m.dbWaitCount.Set(float64(stats.WaitCount))
}

// statusCategory 获取状态分类
func statusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return strconv.Itoa(status)
	}
}
