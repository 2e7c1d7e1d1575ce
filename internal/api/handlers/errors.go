package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/api/middleware"
	"github.com/fingrow/fingrow/internal/auth"
	"github.com/fingrow/fingrow/internal/finance"
	store "github.com/fingrow/fingrow/internal/store/mongo"
)

// callerID resolves the authenticated user from the request context. A
// missing identity means the auth middleware was bypassed; respond 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return id.UserID, true
}

// writeLedgerError maps domain and store errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic message; the cause goes to the log,
// never to the client.
func writeLedgerError(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, finance.ErrInvalidAmount),
		errors.Is(err, finance.ErrInvalidType),
		errors.Is(err, finance.ErrMissingFields),
		errors.Is(err, finance.ErrInvalidRecurrence):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, finance.ErrOwnerMismatch):
		middleware.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, finance.ErrTxNotFound),
		errors.Is(err, finance.ErrNoBaseline),
		errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
