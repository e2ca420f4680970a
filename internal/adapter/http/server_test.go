package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/retail-sales-etl/internal/adapter/http"
	"github.com/couchcryptid/retail-sales-etl/internal/pipeline"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunReporter struct {
	channels  []string
	summaries []pipeline.RunSummary
}

func (m *mockRunReporter) ChannelNames() []string               { return m.channels }
func (m *mockRunReporter) LastSummaries() []pipeline.RunSummary { return m.summaries }

func newTestServer(readyErr error, runs *mockRunReporter) *httpadapter.Server {
	if runs == nil {
		runs = &mockRunReporter{channels: []string{"pos"}, summaries: []pipeline.RunSummary{}}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, runs, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("no channel run has completed yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no channel run has completed yet", body["error"])
}

func TestStatusReturnsRunHistory(t *testing.T) {
	runs := &mockRunReporter{
		channels: []string{"market", "online", "crypto", "pos"},
		summaries: []pipeline.RunSummary{
			{
				RunID:     "6f1b0a1e",
				Channel:   "market",
				StartedAt: time.Date(2023, 1, 16, 6, 0, 0, 0, time.UTC),
				Duration:  "1.2s",
				Extracted: 40,
				Accepted:  38,
				Rejected:  2,
			},
			{
				RunID:    "9c2d4e10",
				Channel:  "pos",
				Duration: "300ms",
				Error:    "load pos transactions: connection refused",
			},
		},
	}
	srv := newTestServer(nil, runs)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Channels []string `json:"channels"`
		Runs     []struct {
			RunID    string `json:"run_id"`
			Channel  string `json:"channel"`
			Accepted int    `json:"accepted"`
			Error    string `json:"error"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"market", "online", "crypto", "pos"}, body.Channels)
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "6f1b0a1e", body.Runs[0].RunID)
	assert.Equal(t, 38, body.Runs[0].Accepted)
	assert.Equal(t, "load pos transactions: connection refused", body.Runs[1].Error)
}

func TestStatusEmptyHistory(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"channels":["pos"],"runs":[]}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
