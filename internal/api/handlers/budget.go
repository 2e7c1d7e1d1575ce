package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/api/middleware"
	"github.com/fingrow/fingrow/internal/finance"
)

// BudgetLedger serves the baseline (monthly deposit) surface.
type BudgetLedger interface {
	SetBaseline(ctx context.Context, userID string, amount float64) (*finance.Baseline, error)
	UpdateBaseline(ctx context.Context, userID string, amount float64) (*finance.Baseline, error)
	DeleteBaseline(ctx context.Context, userID string) error
	Baseline(ctx context.Context, userID string) (*finance.Baseline, error)
	Stats(ctx context.Context, userID string) (finance.Stats, error)
}

// BudgetHandler handles the per-user budget baseline endpoints.
type BudgetHandler struct {
	ledger BudgetLedger
	log    zerolog.Logger
}

// NewBudgetHandler creates a new budget handler.
func NewBudgetHandler(ledger BudgetLedger, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{
		ledger: ledger,
		log:    log,
	}
}

// budgetUser authorizes the path user against the caller.
func (h *BudgetHandler) budgetUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := callerID(w, r)
	if !ok {
		return "", false
	}
	userID := chi.URLParam(r, "userId")
	if userID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot manage another user's budget")
		return "", false
	}
	return userID, true
}

// Get handles GET /api/budget/{userId}.
func (h *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.budgetUser(w, r)
	if !ok {
		return
	}

	baseline, err := h.ledger.Baseline(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to get budget")
		return
	}
	if baseline == nil {
		middleware.WriteError(w, http.StatusNotFound, "No budget is set")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, baseline)
}

type budgetRequest struct {
	Amount float64 `json:"amount"`
}

// Create handles POST /api/budget/{userId}.
func (h *BudgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.budgetUser(w, r)
	if !ok {
		return
	}

	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	baseline, err := h.ledger.SetBaseline(r.Context(), userID, req.Amount)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to set budget")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, baseline)
}

// Update handles PUT /api/budget/{userId}. The effective date is preserved;
// only the allowance amount changes.
func (h *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.budgetUser(w, r)
	if !ok {
		return
	}

	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	baseline, err := h.ledger.UpdateBaseline(r.Context(), userID, req.Amount)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to update budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, baseline)
}

// Delete handles DELETE /api/budget/{userId}.
func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.budgetUser(w, r)
	if !ok {
		return
	}

	if err := h.ledger.DeleteBaseline(r.Context(), userID); err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete budget")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Stats handles GET /api/budget/{userId}/stats.
func (h *BudgetHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.budgetUser(w, r)
	if !ok {
		return
	}

	stats, err := h.ledger.Stats(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to compute stats")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, stats)
}
