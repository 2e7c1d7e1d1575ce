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

// ChallengeStore persists challenges and their membership.
type ChallengeStore interface {
	List(ctx context.Context) ([]store.Challenge, error)
	Get(ctx context.Context, id string) (*store.Challenge, error)
	Insert(ctx context.Context, c *store.Challenge) error
	Join(ctx context.Context, id, userID string) (*store.Challenge, error)
	Complete(ctx context.Context, id, userID string) (bool, error)
}

// ChallengeProgress keeps user accounts in step with challenge membership.
type ChallengeProgress interface {
	JoinChallenge(ctx context.Context, userID, challengeID string) error
	AwardPoints(ctx context.Context, userID string, points int) error
}

// ChallengesHandler handles challenge endpoints.
type ChallengesHandler struct {
	repo     ChallengeStore
	progress ChallengeProgress
	log      zerolog.Logger
}

// NewChallengesHandler creates a new challenges handler.
func NewChallengesHandler(repo ChallengeStore, progress ChallengeProgress, log zerolog.Logger) *ChallengesHandler {
	return &ChallengesHandler{
		repo:     repo,
		progress: progress,
		log:      log,
	}
}

// List handles GET /api/challenges.
func (h *ChallengesHandler) List(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list challenges")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list challenges")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": challenges,
		"count":      len(challenges),
	})
}

// Create handles POST /api/challenges.
func (h *ChallengesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var challenge store.Challenge
	if err := json.NewDecoder(r.Body).Decode(&challenge); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if challenge.Title == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if challenge.ID == "" {
		challenge.ID = uuid.New().String()
	}

	if err := h.repo.Insert(r.Context(), &challenge); err != nil {
		h.log.Error().Err(err).Msg("Failed to create challenge")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create challenge")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, &challenge)
}

// Join handles POST /api/challenges/{id}/join. Joining twice is a no-op; the
// membership set is idempotent.
func (h *ChallengesHandler) Join(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	challengeID := chi.URLParam(r, "id")
	challenge, err := h.repo.Join(r.Context(), challengeID, caller)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Challenge not found")
			return
		}
		h.log.Error().Err(err).Str("challenge_id", challengeID).Msg("Failed to join challenge")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to join challenge")
		return
	}

	if err := h.progress.JoinChallenge(r.Context(), caller, challengeID); err != nil {
		h.log.Error().Err(err).Str("user_id", caller).Msg("Failed to record challenge membership")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to join challenge")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, challenge)
}

// Complete handles POST /api/challenges/{id}/complete. The caller must have
// joined first; points are awarded once no matter how often it is called.
func (h *ChallengesHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	challengeID := chi.URLParam(r, "id")
	first, err := h.repo.Complete(r.Context(), challengeID, caller)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Challenge not found or not joined")
			return
		}
		h.log.Error().Err(err).Str("challenge_id", challengeID).Msg("Failed to complete challenge")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to complete challenge")
		return
	}

	pointsAwarded := 0
	if first {
		challenge, err := h.repo.Get(r.Context(), challengeID)
		if err != nil {
			h.log.Error().Err(err).Str("challenge_id", challengeID).Msg("Failed to load challenge for award")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to complete challenge")
			return
		}
		if err := h.progress.AwardPoints(r.Context(), caller, challenge.PointsAward); err != nil {
			h.log.Error().Err(err).Str("user_id", caller).Msg("Failed to award points")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to complete challenge")
			return
		}
		pointsAwarded = challenge.PointsAward
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"completed":     true,
		"alreadyDone":   !first,
		"pointsAwarded": pointsAwarded,
	})
}
