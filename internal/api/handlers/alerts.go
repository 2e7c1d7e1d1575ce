package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/alerts"
	"github.com/fingrow/fingrow/internal/api/middleware"
)

// AlertsHandler upgrades clients onto the alert stream.
type AlertsHandler struct {
	hub *alerts.Hub
	log zerolog.Logger
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(hub *alerts.Hub, log zerolog.Logger) *AlertsHandler {
	return &AlertsHandler{
		hub: hub,
		log: log,
	}
}

// Stream handles GET /api/alerts/stream?userId=… — a websocket that pushes
// baseline alerts as they are published. Callers only see their own stream.
func (h *AlertsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = caller
	}
	if userID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot subscribe to another user's alerts")
		return
	}

	if err := h.hub.Subscribe(w, r, userID); err != nil {
		// Subscribe already wrote the handshake failure to the client.
		h.log.Warn().Err(err).Str("user_id", userID).Msg("Websocket upgrade failed")
	}
}
