package diag

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzReportsReadyStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := New(":0", reg, func() (int, bool) { return 3, true })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applications":3`)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestHealthzReportsUnreadyStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := New(":0", reg, func() (int, bool) { return 0, false })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recovering"`)
}

func TestMetricsServesRegisteredCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "agora_test_diag_total"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := New(":0", reg, func() (int, bool) { return 0, true })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agora_test_diag_total 1")
}
