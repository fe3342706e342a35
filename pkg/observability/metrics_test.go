package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.AuditWritesTotal.WithLabelValues("account-manager", "4").Inc()
	metrics.AuditWriteFailuresTotal.Inc()
	metrics.AccountOperationsTotal.WithLabelValues("register", "success").Inc()
	metrics.SessionTokensIssuedTotal.Inc()

	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.AuditWritesTotal.WithLabelValues("account-manager", "4")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuditWriteFailuresTotal))
}

func TestMetrics_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AuditQueriesTotal.WithLabelValues("status").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warden_audit_queries_total")
}

func TestMetrics_InstrumentHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := metrics.InstrumentHandler("/audit/logs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/audit/logs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/audit/logs", "418")))
}
