package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/api/middleware"
	store "github.com/fingrow/fingrow/internal/store/mongo"
)

// UserStore persists account holders.
type UserStore interface {
	Insert(ctx context.Context, u *store.User) error
	Get(ctx context.Context, id string) (*store.User, error)
	List(ctx context.Context) ([]store.User, error)
}

// UsersHandler handles user account endpoints.
type UsersHandler struct {
	repo UserStore
	log  zerolog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(repo UserStore, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		repo: repo,
		log:  log,
	}
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list users")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to get user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var user store.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if user.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	if err := h.repo.Insert(r.Context(), &user); err != nil {
		h.log.Error().Err(err).Msg("Failed to create user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, &user)
}
