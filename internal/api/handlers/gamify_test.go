package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	store "github.com/fingrow/fingrow/internal/store/mongo"
)

type mockLessonStore struct {
	lessons map[string]*store.Lesson
}

func (m *mockLessonStore) List(ctx context.Context) ([]store.Lesson, error) {
	var out []store.Lesson
	for _, l := range m.lessons {
		out = append(out, *l)
	}
	return out, nil
}

func (m *mockLessonStore) Get(ctx context.Context, id string) (*store.Lesson, error) {
	if l, ok := m.lessons[id]; ok {
		return l, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockLessonStore) Insert(ctx context.Context, l *store.Lesson) error {
	m.lessons[l.ID] = l
	return nil
}

type mockProgress struct {
	completed map[string]bool // userID+lessonID
	points    map[string]int
	joined    map[string][]string
}

func newMockProgress() *mockProgress {
	return &mockProgress{
		completed: map[string]bool{},
		points:    map[string]int{},
		joined:    map[string][]string{},
	}
}

func (m *mockProgress) CompleteLesson(ctx context.Context, userID, lessonID string, points int) (bool, error) {
	key := userID + "/" + lessonID
	if m.completed[key] {
		return false, nil
	}
	m.completed[key] = true
	m.points[userID] += points
	return true, nil
}

func (m *mockProgress) JoinChallenge(ctx context.Context, userID, challengeID string) error {
	m.joined[userID] = append(m.joined[userID], challengeID)
	return nil
}

func (m *mockProgress) AwardPoints(ctx context.Context, userID string, points int) error {
	m.points[userID] += points
	return nil
}

func budgetingLesson() *store.Lesson {
	return &store.Lesson{
		ID:           "l1",
		Title:        "Budgeting basics",
		PassingScore: 70,
		PointsAward:  50,
		Questions: []store.Question{
			{Prompt: "q1", Options: []string{"a", "b"}, AnswerIndex: 0},
			{Prompt: "q2", Options: []string{"a", "b"}, AnswerIndex: 1},
			{Prompt: "q3", Options: []string{"a", "b"}, AnswerIndex: 1},
			{Prompt: "q4", Options: []string{"a", "b"}, AnswerIndex: 0},
		},
	}
}

func TestLessons_QuizPassAwardsPointsOnce(t *testing.T) {
	repo := &mockLessonStore{lessons: map[string]*store.Lesson{"l1": budgetingLesson()}}
	progress := newMockProgress()
	h := NewLessonsHandler(repo, progress, zerolog.Nop())

	body := map[string]interface{}{"answers": []int{0, 1, 1, 0}}
	rec := serve(http.MethodPost, "/api/lessons/{id}/quiz-submit", "/api/lessons/l1/quiz-submit", body, "u1", h.SubmitQuiz)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["score"].(float64) != 100 || out["passed"] != true {
		t.Errorf("result = %v, want a perfect pass", out)
	}
	if out["pointsAwarded"].(float64) != 50 {
		t.Errorf("pointsAwarded = %v, want 50", out["pointsAwarded"])
	}

	// Resubmitting passes again but awards nothing.
	rec = serve(http.MethodPost, "/api/lessons/{id}/quiz-submit", "/api/lessons/l1/quiz-submit", body, "u1", h.SubmitQuiz)
	out = decodeBody(t, rec)
	if out["pointsAwarded"].(float64) != 0 {
		t.Errorf("second pass awarded %v points, want 0", out["pointsAwarded"])
	}
	if progress.points["u1"] != 50 {
		t.Errorf("total points = %d, want 50", progress.points["u1"])
	}
}

func TestLessons_QuizFailAwardsNothing(t *testing.T) {
	repo := &mockLessonStore{lessons: map[string]*store.Lesson{"l1": budgetingLesson()}}
	progress := newMockProgress()
	h := NewLessonsHandler(repo, progress, zerolog.Nop())

	body := map[string]interface{}{"answers": []int{1, 0, 0, 1}}
	rec := serve(http.MethodPost, "/api/lessons/{id}/quiz-submit", "/api/lessons/l1/quiz-submit", body, "u1", h.SubmitQuiz)

	out := decodeBody(t, rec)
	if out["passed"] != false || out["score"].(float64) != 0 {
		t.Errorf("result = %v, want a failed quiz", out)
	}
	if progress.points["u1"] != 0 {
		t.Errorf("points = %d, want 0", progress.points["u1"])
	}
}

func TestLessons_QuizAnswerCountMismatch(t *testing.T) {
	repo := &mockLessonStore{lessons: map[string]*store.Lesson{"l1": budgetingLesson()}}
	h := NewLessonsHandler(repo, newMockProgress(), zerolog.Nop())

	body := map[string]interface{}{"answers": []int{0}}
	rec := serve(http.MethodPost, "/api/lessons/{id}/quiz-submit", "/api/lessons/l1/quiz-submit", body, "u1", h.SubmitQuiz)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLessons_QuizUnknownLesson(t *testing.T) {
	repo := &mockLessonStore{lessons: map[string]*store.Lesson{}}
	h := NewLessonsHandler(repo, newMockProgress(), zerolog.Nop())

	body := map[string]interface{}{"answers": []int{0}}
	rec := serve(http.MethodPost, "/api/lessons/{id}/quiz-submit", "/api/lessons/missing/quiz-submit", body, "u1", h.SubmitQuiz)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

type mockChallengeStore struct {
	challenges map[string]*store.Challenge
	completed  map[string]bool // challengeID+userID
}

func newMockChallengeStore(challenges ...*store.Challenge) *mockChallengeStore {
	m := &mockChallengeStore{
		challenges: map[string]*store.Challenge{},
		completed:  map[string]bool{},
	}
	for _, c := range challenges {
		m.challenges[c.ID] = c
	}
	return m
}

func (m *mockChallengeStore) List(ctx context.Context) ([]store.Challenge, error) {
	var out []store.Challenge
	for _, c := range m.challenges {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockChallengeStore) Get(ctx context.Context, id string) (*store.Challenge, error) {
	if c, ok := m.challenges[id]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockChallengeStore) Insert(ctx context.Context, c *store.Challenge) error {
	m.challenges[c.ID] = c
	return nil
}

func (m *mockChallengeStore) Join(ctx context.Context, id, userID string) (*store.Challenge, error) {
	c, ok := m.challenges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, p := range c.Participants {
		if p == userID {
			return c, nil
		}
	}
	c.Participants = append(c.Participants, userID)
	return c, nil
}

func (m *mockChallengeStore) Complete(ctx context.Context, id, userID string) (bool, error) {
	c, ok := m.challenges[id]
	if !ok {
		return false, store.ErrNotFound
	}
	joined := false
	for _, p := range c.Participants {
		if p == userID {
			joined = true
		}
	}
	if !joined {
		return false, store.ErrNotFound
	}
	key := id + "/" + userID
	if m.completed[key] {
		return false, nil
	}
	m.completed[key] = true
	return true, nil
}

func TestChallenges_JoinIsIdempotent(t *testing.T) {
	repo := newMockChallengeStore(&store.Challenge{ID: "c1", Title: "No-spend week", PointsAward: 100})
	h := NewChallengesHandler(repo, newMockProgress(), zerolog.Nop())

	for i := 0; i < 2; i++ {
		rec := serve(http.MethodPost, "/api/challenges/{id}/join", "/api/challenges/c1/join", nil, "u1", h.Join)
		if rec.Code != http.StatusOK {
			t.Fatalf("join %d: status = %d, want 200", i, rec.Code)
		}
	}
	if got := len(repo.challenges["c1"].Participants); got != 1 {
		t.Errorf("participants = %d, want 1", got)
	}
}

func TestChallenges_CompleteAwardsOnce(t *testing.T) {
	repo := newMockChallengeStore(&store.Challenge{ID: "c1", Title: "No-spend week", PointsAward: 100, Participants: []string{"u1"}})
	progress := newMockProgress()
	h := NewChallengesHandler(repo, progress, zerolog.Nop())

	rec := serve(http.MethodPost, "/api/challenges/{id}/complete", "/api/challenges/c1/complete", nil, "u1", h.Complete)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	if out["pointsAwarded"].(float64) != 100 {
		t.Errorf("pointsAwarded = %v, want 100", out["pointsAwarded"])
	}

	rec = serve(http.MethodPost, "/api/challenges/{id}/complete", "/api/challenges/c1/complete", nil, "u1", h.Complete)
	out = decodeBody(t, rec)
	if out["alreadyDone"] != true || out["pointsAwarded"].(float64) != 0 {
		t.Errorf("second completion = %v, want alreadyDone with no award", out)
	}
	if progress.points["u1"] != 100 {
		t.Errorf("total points = %d, want 100", progress.points["u1"])
	}
}

func TestChallenges_CompleteWithoutJoining(t *testing.T) {
	repo := newMockChallengeStore(&store.Challenge{ID: "c1", Title: "No-spend week", PointsAward: 100})
	h := NewChallengesHandler(repo, newMockProgress(), zerolog.Nop())

	rec := serve(http.MethodPost, "/api/challenges/{id}/complete", "/api/challenges/c1/complete", nil, "u1", h.Complete)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
