package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for the service. Metrics are
// registered in a dedicated registry so tests can create collectors freely
// without colliding with the default global registry.
type Collector struct {
	registry *prometheus.Registry

	txSubmitted    *prometheus.CounterVec
	txConfirmed    *prometheus.CounterVec
	txFailed       *prometheus.CounterVec
	txRetries      *prometheus.CounterVec
	txTimeouts     *prometheus.CounterVec
	confirmLatency *prometheus.HistogramVec

	readFailures *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with all instruments registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	txSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "chain_tx_submitted_total",
		Help:      "Transactions broadcast to the contract by operation.",
	}, []string{"operation"})

	txConfirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "chain_tx_confirmed_total",
		Help:      "Transactions confirmed on-chain by operation.",
	}, []string{"operation"})

	txFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "chain_tx_failed_total",
		Help:      "Write operations that failed terminally by operation.",
	}, []string{"operation"})

	txRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "chain_tx_retries_total",
		Help:      "Retry attempts absorbed by the transaction client by operation.",
	}, []string{"operation"})

	txTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "chain_tx_confirmation_timeouts_total",
		Help:      "Confirmation waits that exceeded the transaction timeout.",
	}, []string{"operation"})

	confirmLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rewardhub",
		Name:      "chain_tx_confirm_seconds",
		Help:      "Time from broadcast to confirmation by operation.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
	}, []string{"operation"})

	readFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "chain_read_failures_total",
		Help:      "Read operations that returned a fallback default by operation.",
	}, []string{"operation"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewardhub",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rewardhub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route"})

	startTime := time.Now()
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rewardhub",
		Name:      "uptime_seconds",
		Help:      "Seconds since the service started.",
	}, func() float64 { return time.Since(startTime).Seconds() })

	reg.MustRegister(txSubmitted, txConfirmed, txFailed, txRetries, txTimeouts,
		confirmLatency, readFailures, httpRequests, httpDuration, uptime)

	return &Collector{
		registry:       reg,
		txSubmitted:    txSubmitted,
		txConfirmed:    txConfirmed,
		txFailed:       txFailed,
		txRetries:      txRetries,
		txTimeouts:     txTimeouts,
		confirmLatency: confirmLatency,
		readFailures:   readFailures,
		httpRequests:   httpRequests,
		httpDuration:   httpDuration,
	}
}

// Handler returns the exposition handler for the metrics listener.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordTxSubmitted(op string) {
	c.txSubmitted.WithLabelValues(op).Inc()
}

func (c *Collector) RecordTxConfirmed(op string, latency time.Duration) {
	c.txConfirmed.WithLabelValues(op).Inc()
	c.confirmLatency.WithLabelValues(op).Observe(latency.Seconds())
}

func (c *Collector) RecordTxFailed(op string) {
	c.txFailed.WithLabelValues(op).Inc()
}

func (c *Collector) RecordTxRetry(op string) {
	c.txRetries.WithLabelValues(op).Inc()
}

func (c *Collector) RecordTxTimeout(op string) {
	c.txTimeouts.WithLabelValues(op).Inc()
}

func (c *Collector) RecordReadFallback(op string) {
	c.readFailures.WithLabelValues(op).Inc()
}

func (c *Collector) RecordHTTPRequest(route, status string, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, status).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
