package metricsvc

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New("askante")
	m.ObserveRequest(http.MethodGet, "/api/students", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/students", http.StatusOK, 30*time.Millisecond)
	m.ObserveInvoiceRun(2, nil)
	m.ObserveInvoiceRun(0, errors.New("db down"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `askante_http_requests_total{code="200",method="GET",route="/api/students"} 2`)
	assert.Contains(t, body, `askante_invoice_runs_total{result="ok"} 1`)
	assert.Contains(t, body, `askante_invoice_runs_total{result="error"} 1`)
	assert.Contains(t, body, `askante_invoices_created_total 2`)
	assert.Contains(t, body, "go_goroutines")
}
