package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/infrastructure/storage"
)

// RunsHandler handles run history requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(svc *service.ReconcileService) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(svc),
	}
}

// List handles GET /api/runs - returns stored runs, most recent first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	params := dto.DefaultRunListParams()
	params.Limit = ParseIntParam(r, "limit", params.Limit)
	params.Offset = ParseIntParam(r, "offset", params.Offset)
	if params.Limit <= 0 || params.Offset < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("limit must be positive and offset non-negative"))
		return
	}

	result, err := h.svc.ListRuns(params.Limit, params.Offset)
	if err != nil {
		h.WriteServiceError(w, err, "run")
		return
	}

	response := dto.RunListResponse{
		Runs:       make([]dto.RunResponse, 0, len(result.Runs)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, run := range result.Runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a run with its assignments.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	detail, err := h.svc.GetRun(id)
	if err != nil {
		h.WriteServiceError(w, err, "run")
		return
	}

	response := dto.RunDetailResponse{
		RunResponse: toRunResponse(*detail.Run),
		Assignments: make([]matcher.Assignment, 0, len(detail.Assignments)),
		SkippedRows: make([]dto.SkippedResponse, 0, len(detail.Skipped)),
	}
	for _, a := range detail.Assignments {
		response.Assignments = append(response.Assignments, a.Assignment)
	}
	for _, s := range detail.Skipped {
		response.SkippedRows = append(response.SkippedRows, dto.SkippedResponse{
			Kind:     s.Kind,
			RecordID: s.RecordID,
			Index:    s.Index,
			Reason:   s.Reason,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// toRunResponse converts a storage Run to an API response.
func toRunResponse(run storage.Run) dto.RunResponse {
	resp := dto.RunResponse{
		ID:                    run.ID,
		StartedAt:             run.StartedAt.UTC().Format(time.RFC3339),
		DryRun:                run.DryRun,
		Status:                run.Status,
		ErrorMessage:          run.ErrorMessage,
		Transactions:          run.Transactions,
		Receipts:              run.Receipts,
		Candidates:            run.Candidates,
		AutoAccepted:          run.AutoAccepted,
		NeedsReview:           run.NeedsReview,
		UnmatchedReceipts:     run.UnmatchedReceipts,
		UnmatchedTransactions: run.UnmatchedTransactions,
		Skipped:               run.Skipped,
		Conflicts:             run.Conflicts,
		Learned:               run.Learned,
		DurationMS:            run.DurationMS,
	}
	if run.CompletedAt != nil {
		resp.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
