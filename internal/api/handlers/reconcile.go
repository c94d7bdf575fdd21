package handlers

import (
	"net/http"
	"sort"

	"github.com/eshaffer321/receipt-reconciler/internal/adapters/feeds"
	"github.com/eshaffer321/receipt-reconciler/internal/api/dto"
	"github.com/eshaffer321/receipt-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/receipt-reconciler/internal/application/service"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

// ReconcileHandler runs batches submitted over HTTP.
type ReconcileHandler struct {
	*Base
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(svc *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{
		Base: NewBase(svc),
	}
}

// Create handles POST /api/reconcile - reconciles one batch synchronously.
// A dry_run query parameter overrides the body field.
func (h *ReconcileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	if req.Workers < 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("workers must not be negative"))
		return
	}

	txns := feeds.DecodeTransactions(req.Transactions)
	receipts := feeds.DecodeReceipts(req.Receipts)

	report, err := h.svc.Reconcile(r.Context(), service.ReconcileRequest{
		Batch: reconcile.Batch{
			Transactions: txns.Records,
			Receipts:     receipts.Records,
		},
		DryRun:  ParseBoolParam(r, "dry_run", req.DryRun),
		Workers: req.Workers,
	})
	if err != nil {
		h.WriteServiceError(w, err, "run")
		return
	}

	resp := toReconcileResponse(report)
	resp.Skipped = mergeSkipped(resp.Skipped, txns.Skipped, receipts.Skipped)
	resp.Summary.Skipped = len(resp.Skipped)
	h.WriteJSON(w, http.StatusOK, resp)
}

// mergeSkipped combines records the engine rejected with records that never
// decoded. Engine indexes count only decoded records, so they are mapped back
// to positions in the request arrays.
func mergeSkipped(engine []validator.Skipped, txnRejects, receiptRejects []validator.Skipped) []validator.Skipped {
	if len(txnRejects) == 0 && len(receiptRejects) == 0 {
		return engine
	}

	txnPos := decodedPositions(txnRejects)
	receiptPos := decodedPositions(receiptRejects)

	out := make([]validator.Skipped, 0, len(engine)+len(txnRejects)+len(receiptRejects))
	for _, sk := range engine {
		if sk.Kind == validator.KindReceipt {
			sk.Index = receiptPos(sk.Index)
		} else {
			sk.Index = txnPos(sk.Index)
		}
		out = append(out, sk)
	}
	out = append(out, txnRejects...)
	out = append(out, receiptRejects...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind > out[j].Kind // transactions first
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// decodedPositions returns a function mapping the n-th decoded record to its
// position in the request array, given the rejected positions in order.
func decodedPositions(rejects []validator.Skipped) func(int) int {
	return func(n int) int {
		pos := n
		for _, sk := range rejects {
			if sk.Index > pos {
				break
			}
			pos++
		}
		return pos
	}
}

func toReconcileResponse(report *service.RunReport) dto.ReconcileResponse {
	res := report.Result
	resp := dto.ReconcileResponse{
		RunID:                 report.RunID,
		DryRun:                res.DryRun,
		DurationMS:            res.Duration.Milliseconds(),
		Summary:               res.Summary,
		Assignments:           res.Assignments,
		UnmatchedReceipts:     res.UnmatchedReceipts,
		UnmatchedTransactions: res.UnmatchedTransactions,
		Skipped:               res.Skipped,
		Transactions:          res.Transactions,
		Receipts:              res.Receipts,
	}
	// Empty lists encode as [] rather than null
	if resp.Assignments == nil {
		resp.Assignments = []matcher.Assignment{}
	}
	if resp.UnmatchedReceipts == nil {
		resp.UnmatchedReceipts = []string{}
	}
	if resp.UnmatchedTransactions == nil {
		resp.UnmatchedTransactions = []string{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []validator.Skipped{}
	}
	return resp
}
