package handlers

import (
	"net/http"

	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	*Base
}

// NewHealthHandler creates a new health handler. With a service the response
// also reports the loaded rule table and alias count.
func NewHealthHandler(svc *service.ReconcileService) *HealthHandler {
	return &HealthHandler{Base: NewBase(svc)}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := dto.NewHealthResponse()
	if h.svc != nil {
		response.RulesVersion = h.svc.RulesVersion()
		aliases := h.svc.AliasCount()
		response.Aliases = &aliases
	}
	h.WriteJSON(w, http.StatusOK, response)
}
