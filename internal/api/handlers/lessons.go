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
	"github.com/fingrow/fingrow/internal/lessons"
	store "github.com/fingrow/fingrow/internal/store/mongo"
)

// LessonStore persists lessons.
type LessonStore interface {
	List(ctx context.Context) ([]store.Lesson, error)
	Get(ctx context.Context, id string) (*store.Lesson, error)
	Insert(ctx context.Context, l *store.Lesson) error
}

// LessonProgress records quiz passes against user accounts.
type LessonProgress interface {
	CompleteLesson(ctx context.Context, userID, lessonID string, points int) (bool, error)
}

// LessonsHandler handles lesson and quiz endpoints.
type LessonsHandler struct {
	repo     LessonStore
	progress LessonProgress
	log      zerolog.Logger
}

// NewLessonsHandler creates a new lessons handler.
func NewLessonsHandler(repo LessonStore, progress LessonProgress, log zerolog.Logger) *LessonsHandler {
	return &LessonsHandler{
		repo:     repo,
		progress: progress,
		log:      log,
	}
}

// List handles GET /api/lessons.
func (h *LessonsHandler) List(w http.ResponseWriter, r *http.Request) {
	lessonsList, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list lessons")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list lessons")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lessons": lessonsList,
		"count":   len(lessonsList),
	})
}

// Get handles GET /api/lessons/{id}.
func (h *LessonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Lesson not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to get lesson")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get lesson")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, lesson)
}

// Create handles POST /api/lessons.
func (h *LessonsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var lesson store.Lesson
	if err := json.NewDecoder(r.Body).Decode(&lesson); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if lesson.Title == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if lesson.ID == "" {
		lesson.ID = uuid.New().String()
	}

	if err := h.repo.Insert(r.Context(), &lesson); err != nil {
		h.log.Error().Err(err).Msg("Failed to create lesson")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create lesson")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, &lesson)
}

// SubmitQuiz handles POST /api/lessons/{id}/quiz-submit. Passing the quiz
// awards the lesson's points, at most once per user.
func (h *LessonsHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Answers []int `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lessonID := chi.URLParam(r, "id")
	lesson, err := h.repo.Get(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Lesson not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to get lesson")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to grade quiz")
		return
	}

	result, err := lessons.Grade(lesson, req.Answers)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pointsAwarded := 0
	if result.Passed {
		awarded, err := h.progress.CompleteLesson(r.Context(), caller, lessonID, lesson.PointsAward)
		if err != nil {
			h.log.Error().Err(err).Str("user_id", caller).Str("lesson_id", lessonID).Msg("Failed to record lesson completion")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to record completion")
			return
		}
		if awarded {
			pointsAwarded = lesson.PointsAward
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"score":         result.Score,
		"correct":       result.Correct,
		"total":         result.Total,
		"passed":        result.Passed,
		"pointsAwarded": pointsAwarded,
	})
}
