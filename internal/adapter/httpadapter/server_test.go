package httpadapter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) (*httpadapter.Server, *observability.Metrics) {
	metrics := observability.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, metrics.Registry, logger), metrics
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusOK, serve(srv, "/healthz").Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(errors.New("pipeline has not completed a run"))
	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/readyz").Code)
}

func TestMetricsEndpointServesRunRegistry(t *testing.T) {
	srv, metrics := newTestServer(nil)
	metrics.LastRunSuccess.Set(1)
	metrics.RowsWritten.WithLabelValues("csv").Add(3)

	rec := serve(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "dst_etl_last_run_success 1")
	assert.Contains(t, body, `dst_etl_rows_written_total{sink="csv"} 3`)
	assert.NotContains(t, body, "go_goroutines")
}

func TestUnknownMethodIsRejected(t *testing.T) {
	srv, _ := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartShutdown_NoLeakedGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv, _ := newTestServer(nil)
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-ctx.Done():
		t.Fatal("server did not stop")
	}
}
