package handlers

import (
	"net/http"
	"strings"

	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/merchant"
)

// AliasesHandler exposes the learned alias table.
type AliasesHandler struct {
	*Base
}

// NewAliasesHandler creates a new aliases handler.
func NewAliasesHandler(svc *service.ReconcileService) *AliasesHandler {
	return &AliasesHandler{
		Base: NewBase(svc),
	}
}

// List handles GET /api/aliases - returns learned aliases ordered by key.
func (h *AliasesHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultAliasListParams()
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	params.Offset = ParseIntParam(r, "offset", params.Offset)
	if params.Limit <= 0 || params.Offset < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("limit must be positive and offset non-negative"))
		return
	}

	all := h.svc.Aliases()
	page := []merchant.MerchantAlias{}
	if params.Offset < len(all) {
		end := min(params.Offset+params.Limit, len(all))
		page = all[params.Offset:end]
	}

	h.WriteJSON(w, http.StatusOK, dto.AliasListResponse{
		Aliases:    page,
		TotalCount: len(all),
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
}

// Normalize handles GET /api/aliases/normalize?q= - resolves raw merchant text.
func (h *AliasesHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("query parameter 'q' is required"))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.NormalizeResponse{
		Query:  query,
		Result: h.svc.Normalize(query),
	})
}
