package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 访问验证指标
	VerifyAttemptsTotal *prometheus.CounterVec

	// 自动化网关指标
	GatewayActionsTotal  *prometheus.CounterVec
	TokenRejectionsTotal prometheus.Counter

	// 账本同步指标
	LedgerSyncTotal    *prometheus.CounterVec
	LedgerSyncDuration prometheus.Histogram

	// 测试邮箱池指标
	PoolRecordsRegistered prometheus.Counter
	PoolRecordsAvailable  prometheus.Gauge

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailpool_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailpool_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		VerifyAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailpool_verify_attempts_total",
				Help: "Mailbox verification attempts by result",
			},
			[]string{"result"},
		),

		GatewayActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailpool_gateway_actions_total",
				Help: "Automation gateway calls by action and outcome",
			},
			[]string{"action", "outcome"},
		),

		TokenRejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailpool_token_rejections_total",
				Help: "Automation requests rejected for unusable tokens",
			},
		),

		LedgerSyncTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailpool_ledger_sync_total",
				Help: "Ledger balance sync attempts by outcome",
			},
			[]string{"outcome"},
		),

		LedgerSyncDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailpool_ledger_sync_duration_seconds",
				Help:    "Duration of a single ledger balance sync",
				Buckets: prometheus.DefBuckets,
			},
		),

		PoolRecordsRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailpool_pool_records_registered_total",
				Help: "Pool records marked as registered",
			},
		),

		PoolRecordsAvailable: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailpool_pool_records_available",
				Help: "Pool records currently available for claiming",
			},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailpool_panics_total",
				Help: "Recovered panics in HTTP handlers",
			},
		),
	}
}

// ObserveRequest 记录一次 HTTP 请求
func (m *Metrics) ObserveRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveLedgerSync 记录一次账本同步
func (m *Metrics) ObserveLedgerSync(outcome string, duration time.Duration) {
	m.LedgerSyncTotal.WithLabelValues(outcome).Inc()
	m.LedgerSyncDuration.Observe(duration.Seconds())
}

// HTTPHandler 返回 Prometheus 抓取端点的处理器
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
