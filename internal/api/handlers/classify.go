package handlers

import (
	"net/http"
	"strings"

	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/categorizer"
)

// ClassifyHandler runs the category classifier on a single merchant.
type ClassifyHandler struct {
	*Base
}

// NewClassifyHandler creates a new classify handler.
func NewClassifyHandler(svc *service.ReconcileService) *ClassifyHandler {
	return &ClassifyHandler{
		Base: NewBase(svc),
	}
}

// Classify handles POST /api/classify.
func (h *ClassifyHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req dto.ClassifyRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	if strings.TrimSpace(req.Merchant) == "" && strings.TrimSpace(req.Description) == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("merchant or description is required"))
		return
	}

	c := h.svc.Classify(categorizer.Input{
		Merchant:    req.Merchant,
		Description: req.Description,
		Amount:      req.Amount,
		At:          req.At,
	})

	matched := c.MatchedRules
	if matched == nil {
		matched = []string{}
	}
	h.WriteJSON(w, http.StatusOK, dto.ClassifyResponse{
		Category:     c.Category,
		BusinessType: c.BusinessType,
		Confidence:   c.Confidence,
		MatchedRules: matched,
		RulesVersion: h.svc.RulesVersion(),
	})
}
