package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	txRetries      prometheus.Counter
	txExhausted    prometheus.Counter
	settlements    prometheus.Counter
	cashOperations *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP responses carrying an error code.",
		}, []string{"method", "path", "code"}),
		txRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_tx_retries_total",
			Help: "Transactions rerun after a write conflict.",
		}),
		txExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_tx_conflicts_exhausted_total",
			Help: "Transactions abandoned after exhausting the retry budget.",
		}),
		settlements: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_settlements_total",
			Help: "Committed ticket settlements.",
		}),
		cashOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_cash_operations_total",
			Help: "Committed cash request operations.",
		}, []string{"kind", "op"}),
	}
}

// RecordRequest observes a completed HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

// RecordTxRetry counts one rerun of a conflicting transaction.
func (m *Metrics) RecordTxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// RecordTxExhausted counts a transaction that ran out of attempts.
func (m *Metrics) RecordTxExhausted() {
	if m == nil {
		return
	}
	m.txExhausted.Inc()
}

// RecordSettlement counts a committed settlement.
func (m *Metrics) RecordSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}

// RecordCashOperation counts a committed cash request operation.
func (m *Metrics) RecordCashOperation(kind, op string) {
	if m == nil {
		return
	}
	m.cashOperations.WithLabelValues(kind, op).Inc()
}
