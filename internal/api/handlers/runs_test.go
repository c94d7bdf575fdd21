package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/api/handlers"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func recordRun(t *testing.T, repo *storage.MockRepository, id string, dryRun bool) {
	t.Helper()
	run := &storage.Run{ID: id, DryRun: dryRun}
	require.NoError(t, repo.StartRun(run))
	run.Status = storage.RunStatusCompleted
	run.AutoAccepted = 1
	require.NoError(t, repo.CompleteRun(run))
}

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Empty(t, response.Runs)
		assert.Equal(t, 0, response.TotalCount)
	})

	t.Run("returns runs from repository", func(t *testing.T) {
		svc, repo := newTestService(t)
		recordRun(t, repo, "run-a", false)
		recordRun(t, repo, "run-b", true)

		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, 2, response.TotalCount)
		assert.Len(t, response.Runs, 2)
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		svc, repo := newTestService(t)
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			recordRun(t, repo, id, false)
		}

		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Len(t, response.Runs, 2)
		assert.Equal(t, 5, response.TotalCount)
		assert.Equal(t, 2, response.Limit)
	})

	t.Run("rejects negative offset", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs?offset=-1", nil)
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	t.Run("returns run with assignments", func(t *testing.T) {
		svc, _ := newTestService(t)
		report, err := svc.Reconcile(context.Background(), service.ReconcileRequest{Batch: decodeBatch(t, coffeeBatch)})
		require.NoError(t, err)

		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/"+report.RunID, nil)
		req = withURLParam(req, "id", report.RunID)
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunDetailResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, report.RunID, response.ID)
		assert.Equal(t, storage.RunStatusCompleted, response.Status)
		assert.NotEmpty(t, response.CompletedAt)
		require.Len(t, response.Assignments, 1)
		assert.Equal(t, "t1", response.Assignments[0].TransactionID)
		assert.Empty(t, response.SkippedRows)
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
		req = withURLParam(req, "id", "missing")
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var response dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, dto.ErrCodeNotFound, response.Code)
	})

	t.Run("returns 400 without an id", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewRunsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/", nil)
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
