package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/receipt-reconciler/internal/api"
	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/metrics"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
)

const batchBody = `{
	"transactions": [
		{"id": "t1", "posted_date": "2025-01-15T00:00:00Z", "amount": "-4.50", "raw_description": "Coffee Shop LLC"},
		{"id": "t2", "posted_date": "2025-01-16T00:00:00Z", "amount": "-61.20", "raw_description": "SHELL OIL 5512"}
	],
	"receipts": [
		{"id": "r1", "raw_merchant_text": "SQ *COFFEE SHOP", "amount": "4.50", "date": "2025-01-15T00:00:00Z", "extraction_confidence": 0.9}
	]
}`

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewRecorder()
	svc, err := service.NewReconcileService(config.Default(), repo, recorder, logger)
	require.NoError(t, err)
	server := api.NewServer(api.DefaultConfig(), svc, recorder, logger)
	return server, repo
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response.Status)
	assert.NotEmpty(t, response.RulesVersion)
}

func TestServer_ReconcileThenInspect(t *testing.T) {
	server, _ := newTestServer(t)

	// Reconcile
	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(batchBody))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result dto.ReconcileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result.Summary.AutoAccepted)
	assert.Equal(t, []string{"t2"}, result.UnmatchedTransactions)

	// Run history
	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+result.RunID, nil)
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail dto.RunDetailResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, 1, detail.UnmatchedTransactions)
	assert.Len(t, detail.Assignments, 1)

	// Learned alias
	req = httptest.NewRequest(http.MethodGet, "/api/aliases/normalize?q=SQ+*COFFEE+SHOP", nil)
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var norm dto.NormalizeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&norm))
	assert.Equal(t, "Coffee Shop LLC", norm.Name)
}

func TestServer_RunsEndpoints(t *testing.T) {
	t.Run("GET /api/runs returns runs", func(t *testing.T) {
		server, repo := newTestServer(t)
		run := &storage.Run{ID: "run-1"}
		require.NoError(t, repo.StartRun(run))

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, 1, response.TotalCount)
		assert.Equal(t, storage.RunStatusRunning, response.Runs[0].Status)
	})

	t.Run("GET /api/runs/:id returns 404 for unknown run", func(t *testing.T) {
		server, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_Classify(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(`{"merchant": "DELTA AIR LINES", "amount": "425.00"}`))
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response dto.ClassifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "Travel", response.Category)
}

func TestServer_Metrics(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(batchBody))
	server.Router().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `reconciler_runs_total{dry_run="false",status="completed"} 1`)
	assert.Contains(t, body, `reconciler_unmatched_total{kind="transaction"} 1`)
}

func TestServer_UnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("sets CORS headers for allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("handles OPTIONS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/reconcile", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("exposes the request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, "X-Request-Id", rec.Header().Get("Access-Control-Expose-Headers"))
	})
}
