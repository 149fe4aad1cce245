package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordLedgerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordTxRetry()
	m.RecordTxRetry()
	m.RecordTxExhausted()
	m.RecordSettlement()
	m.RecordCashOperation("CASH_IN", "resolve")
	m.RecordRequest("/v1/tickets", "GET", 200, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.txRetries); got != 2 {
		t.Fatalf("expected 2 retries, got %v", got)
	}
	if got := testutil.ToFloat64(m.txExhausted); got != 1 {
		t.Fatalf("expected 1 exhaustion, got %v", got)
	}
	if got := testutil.ToFloat64(m.cashOperations.WithLabelValues("CASH_IN", "resolve")); got != 1 {
		t.Fatalf("expected 1 cash operation, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/tickets", "200")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordTxRetry()
	m.RecordSettlement()
	m.RecordCashOperation("CASH_OUT", "unresolve")
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "INTERNAL_ERROR")
}
