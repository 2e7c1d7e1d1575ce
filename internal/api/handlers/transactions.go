package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/api/middleware"
	"github.com/fingrow/fingrow/internal/finance"
	store "github.com/fingrow/fingrow/internal/store/mongo"
)

// TransactionReader serves the query side of the transactions surface.
type TransactionReader interface {
	Get(ctx context.Context, id string) (*finance.Transaction, error)
	Query(ctx context.Context, userID string, filter store.TransactionFilter) ([]finance.Transaction, int64, error)
	MonthlySummary(ctx context.Context, userID string, year, month int) (*store.MonthlySummary, error)
	CategoryBreakdown(ctx context.Context, userID string, from, to time.Time) ([]store.CategoryTotal, error)
}

// TransactionLedger serves the mutation side; every write reconciles the
// owner's baseline before it is acknowledged.
type TransactionLedger interface {
	Record(ctx context.Context, tx finance.Transaction) (*finance.Transaction, finance.Stats, error)
	Edit(ctx context.Context, id string, tx finance.Transaction) (*finance.Transaction, finance.Stats, error)
	Remove(ctx context.Context, userID, id string) (finance.Stats, error)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	reader TransactionReader
	ledger TransactionLedger
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(reader TransactionReader, ledger TransactionLedger, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		reader: reader,
		ledger: ledger,
		log:    log,
	}
}

// List handles GET /api/transactions — the caller's own transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	h.listForUser(w, r, caller)
}

// ListByUser handles GET /api/transactions/user/{userId}.
func (h *TransactionsHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")
	if userID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot read another user's transactions")
		return
	}
	h.listForUser(w, r, userID)
}

func (h *TransactionsHandler) listForUser(w http.ResponseWriter, r *http.Request, userID string) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, total, err := h.reader.Query(r.Context(), userID, filter)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	if transactions == nil {
		transactions = []finance.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"total":        total,
		"page":         filter.Page,
		"limit":        filter.Limit,
	})
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	tx, err := h.reader.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to get transaction")
		return
	}
	if tx.UserID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Transaction belongs to another user")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Create handles POST /api/transactions.
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var tx finance.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if tx.UserID == "" {
		tx.UserID = caller
	}
	if tx.UserID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot create a transaction for another user")
		return
	}

	created, stats, err := h.ledger.Record(r.Context(), tx)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": created,
		"stats":       stats,
	})
}

// Update handles PUT /api/transactions/{id}.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var tx finance.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tx.UserID = caller

	updated, stats, err := h.ledger.Edit(r.Context(), chi.URLParam(r, "id"), tx)
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": updated,
		"stats":       stats,
	})
}

// Delete handles DELETE /api/transactions/{id}.
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	stats, err := h.ledger.Remove(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeLedgerError(w, h.log, err, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
		"stats":   stats,
	})
}

// Summary handles GET /api/transactions/user/{userId}/summary.
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")
	if userID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot read another user's summary")
		return
	}

	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	query := r.URL.Query()
	if s := query.Get("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year = v
	}
	if s := query.Get("month"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 12 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month")
			return
		}
		month = v
	}

	summary, err := h.reader.MonthlySummary(r.Context(), userID, year, month)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to build monthly summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build monthly summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Breakdown handles GET /api/transactions/user/{userId}/breakdown.
func (h *TransactionsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")
	if userID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot read another user's breakdown")
		return
	}

	// Default to the current calendar month.
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query := r.URL.Query()
	if s := query.Get("startDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid startDate format")
			return
		}
		from = t
	}
	if s := query.Get("endDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid endDate format")
			return
		}
		to = t.AddDate(0, 0, 1) // inclusive end day
	}

	breakdown, err := h.reader.CategoryBreakdown(r.Context(), userID, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to build category breakdown")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build category breakdown")
		return
	}

	if breakdown == nil {
		breakdown = []store.CategoryTotal{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": breakdown,
		"count":      len(breakdown),
	})
}

func parseTransactionFilter(r *http.Request) (store.TransactionFilter, error) {
	query := r.URL.Query()
	filter := store.TransactionFilter{
		Type:     query.Get("type"),
		Category: query.Get("category"),
		Search:   query.Get("search"),
		Sort:     query.Get("sort"),
		Order:    query.Get("order"),
	}

	if s := query.Get("startDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, errInvalidDate("startDate")
		}
		filter.StartDate = &t
	}
	if s := query.Get("endDate"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return filter, errInvalidDate("endDate")
		}
		end := t.AddDate(0, 0, 1)
		filter.EndDate = &end
	}
	if s := query.Get("page"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			filter.Page = v
		}
	}
	if s := query.Get("limit"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			filter.Limit = v
		}
	}
	return filter, nil
}

type errInvalidDate string

func (e errInvalidDate) Error() string {
	return "Invalid " + string(e) + " format, want YYYY-MM-DD"
}
