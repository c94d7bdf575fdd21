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
	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
)

func TestClassifyHandler_Classify(t *testing.T) {
	t.Run("classifies a known merchant", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewClassifyHandler(svc)

		body := `{"merchant": "STARBUCKS #4521", "amount": "9.47"}`
		req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Classify(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var response dto.ClassifyResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "Coffee Shops", response.Category)
		assert.Equal(t, categorizer.BusinessTypePersonal, response.BusinessType)
		assert.NotEmpty(t, response.MatchedRules)
		assert.Equal(t, svc.RulesVersion(), response.RulesVersion)
	})

	t.Run("unknown merchant is uncategorized", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewClassifyHandler(svc)

		body := `{"merchant": "Zzyzx Holdings", "amount": "10"}`
		req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Classify(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var response dto.ClassifyResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, categorizer.Uncategorized, response.Category)
		assert.NotNil(t, response.MatchedRules)
	})

	t.Run("requires merchant or description", func(t *testing.T) {
		svc, _ := newTestService(t)
		handler := handlers.NewClassifyHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(`{"amount": "5"}`))
		rec := httptest.NewRecorder()

		handler.Classify(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
