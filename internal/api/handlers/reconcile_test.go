package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/api/handlers"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
)

const coffeeBatch = `{
	"transactions": [
		{"id": "t1", "posted_date": "2025-01-15T00:00:00Z", "amount": "-4.50", "raw_description": "Coffee Shop LLC", "account_id": "acct_1"}
	],
	"receipts": [
		{"id": "r1", "raw_merchant_text": "SQ *COFFEE SHOP", "amount": "4.50", "date": "2025-01-15T00:00:00Z", "extraction_confidence": 0.9, "source_kind": "email"}
	]
}`

func newTestService(t *testing.T) (*service.ReconcileService, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	svc, err := service.NewReconcileService(config.Default(), repo, nil, nil)
	require.NoError(t, err)
	return svc, repo
}

func TestReconcileHandler_Create(t *testing.T) {
	t.Run("reconciles a batch", func(t *testing.T) {
		svc, repo := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(coffeeBatch))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var response dto.ReconcileResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.NotEmpty(t, response.RunID)
		assert.False(t, response.DryRun)
		assert.Equal(t, 1, response.Summary.AutoAccepted)
		require.Len(t, response.Assignments, 1)
		assert.Equal(t, "r1", response.Assignments[0].ReceiptID)
		require.Len(t, response.Transactions, 1)
		require.NotNil(t, response.Transactions[0].MatchedReceiptID)
		assert.Equal(t, "r1", *response.Transactions[0].MatchedReceiptID)
		assert.Empty(t, response.Skipped)
		assert.Equal(t, 1, repo.SaveAliasesCalls)
	})

	t.Run("dry_run query parameter wins", func(t *testing.T) {
		svc, repo := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile?dry_run=true", strings.NewReader(coffeeBatch))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var response dto.ReconcileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.True(t, response.DryRun)
		assert.Equal(t, 0, repo.SaveAliasesCalls)
		assert.Empty(t, svc.Aliases())
	})

	t.Run("returns 400 for an empty batch", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var response dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, dto.ErrCodeValidation, response.Code)
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{"transactions": [`))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var response dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, dto.ErrCodeBadRequest, response.Code)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{"orders": []}`))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("records that fail to parse are skipped and the rest reconciled", func(t *testing.T) {
		svc, repo := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		body := `{
			"transactions": [
				{"id": "t2", "posted_date": "15/01/2025", "amount": "-9.99", "raw_description": "Bad Date Store"},
				{"id": "t1", "posted_date": "2025-01-15", "amount": "-4.50", "raw_description": "Coffee Shop LLC"}
			],
			"receipts": [
				{"id": "r1", "raw_merchant_text": "SQ *COFFEE SHOP", "amount": "4.50", "date": "2025-01-15"},
				{"id": "r2", "raw_merchant_text": "Somewhere", "amount": "abc", "date": "2025-01-15"},
				{"id": "r3", "raw_merchant_text": "Nowhere", "amount": "0", "date": "2025-01-15"}
			]
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var response dto.ReconcileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

		require.Len(t, response.Assignments, 1)
		assert.Equal(t, "t1", response.Assignments[0].TransactionID)
		assert.Equal(t, "r1", response.Assignments[0].ReceiptID)

		require.Len(t, response.Skipped, 3)
		assert.Equal(t, "t2", response.Skipped[0].ID)
		assert.Equal(t, 0, response.Skipped[0].Index)
		assert.Equal(t, "r2", response.Skipped[1].ID)
		assert.Equal(t, 1, response.Skipped[1].Index)
		assert.Contains(t, response.Skipped[1].Reason, "amount")
		assert.Equal(t, "r3", response.Skipped[2].ID)
		assert.Equal(t, 2, response.Skipped[2].Index, "engine index mapped back to the request position")
		assert.Equal(t, 3, response.Summary.Skipped)
		assert.Equal(t, 1, repo.SaveAssignmentsCalls)
	})

	t.Run("malformed records are reported, not fatal", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewReconcileHandler(svc)

		body := `{"receipts": [{"id": "r_bad", "raw_merchant_text": "Nowhere", "amount": "0", "date": "2025-01-15T00:00:00Z"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var response dto.ReconcileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Len(t, response.Skipped, 1)
		assert.Equal(t, "r_bad", response.Skipped[0].ID)
		assert.Empty(t, response.Assignments)
	})

	t.Run("returns 500 when storage fails", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.StartRunErr = assert.AnError
		handler := handlers.NewReconcileHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(coffeeBatch))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
