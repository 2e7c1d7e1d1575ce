package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/api/middleware"
	store "github.com/fingrow/fingrow/internal/store/mongo"
)

// SettingsStore persists per-user settings documents.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*store.Settings, error)
	Put(ctx context.Context, s *store.Settings) error
	PatchSection(ctx context.Context, userID, bsonSection string, patch map[string]interface{}) (*store.Settings, error)
}

// SettingsHandler handles the settings endpoints.
type SettingsHandler struct {
	repo SettingsStore
	log  zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(repo SettingsStore, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		repo: repo,
		log:  log,
	}
}

func (h *SettingsHandler) settingsUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := callerID(w, r)
	if !ok {
		return "", false
	}
	userID := chi.URLParam(r, "userId")
	if userID != caller {
		middleware.WriteError(w, http.StatusForbidden, "Cannot manage another user's settings")
		return "", false
	}
	return userID, true
}

// Get handles GET /api/settings/{userId}. A user with no stored settings gets
// an empty document, not a 404.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.settingsUser(w, r)
	if !ok {
		return
	}

	settings, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, settings)
}

// Put handles PUT /api/settings/{userId} — full replacement.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.settingsUser(w, r)
	if !ok {
		return
	}

	var settings store.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	settings.UserID = userID

	if err := h.repo.Put(r.Context(), &settings); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to save settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, &settings)
}

// PatchSection handles PATCH /api/settings/{userId}/{section}. Only the named
// section is merged; the other sections are left untouched. Unknown section
// names are rejected.
func (h *SettingsHandler) PatchSection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.settingsUser(w, r)
	if !ok {
		return
	}

	section := chi.URLParam(r, "section")
	bsonSection, known := store.SettingsSections[section]
	if !known {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown settings section: "+section)
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(patch) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Patch must set at least one key")
		return
	}

	settings, err := h.repo.PatchSection(r.Context(), userID, bsonSection, patch)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Str("section", section).Msg("Failed to patch settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to patch settings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, settings)
}
