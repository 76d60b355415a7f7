package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticStatus struct {
	status *Status
	err    error
}

func (s *staticStatus) Status(ctx context.Context) (*Status, error) {
	return s.status, s.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics("", registry)
	metrics.OffersSent.WithLabelValues("place").Inc()
	metrics.Slot.Set(42)

	provider := &staticStatus{status: &Status{
		Slot:        42,
		KnownOrders: 3,
		Payers:      []PayerStatus{{Address: "abc", Enabled: true, Lamports: 1, Tokens: 2}},
	}}
	h := NewServer("127.0.0.1:0", provider, registry, zaptest.NewLogger(t).Sugar()).Handler()

	rec := get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, *provider.status, status)

	rec = get(t, h, "/api/payers")
	require.Equal(t, http.StatusOK, rec.Code)
	var payers []PayerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payers))
	assert.Equal(t, provider.status.Payers, payers)

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fast_transfer_solver_auction_offers_sent_total{kind="place"} 1`)
	assert.Contains(t, rec.Body.String(), "fast_transfer_solver_solana_slot 42")

	provider.err = errors.New("solver stopped")
	rec = get(t, h, "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerRunStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer("127.0.0.1:0", &staticStatus{}, prometheus.NewRegistry(), zaptest.NewLogger(t).Sugar())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
