// Package lessons holds the quiz grading rules for educational content.
package lessons

import (
	"errors"

	store "github.com/fingrow/fingrow/internal/store/mongo"
)

// ErrAnswerCount is returned when the submission length does not match the
// quiz length.
var ErrAnswerCount = errors.New("answer count does not match question count")

// QuizResult is the graded outcome of one submission.
type QuizResult struct {
	Score   int  `json:"score"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
	Passed  bool `json:"passed"`
}

// Grade scores a submission against the lesson's quiz: score = 100*K/N for K
// correct answers out of N questions, passing at or above the lesson's
// passing score. A lesson with no questions cannot be passed by submission.
func Grade(lesson *store.Lesson, answers []int) (QuizResult, error) {
	total := len(lesson.Questions)
	if len(answers) != total {
		return QuizResult{}, ErrAnswerCount
	}
	if total == 0 {
		return QuizResult{Total: 0, Score: 0, Passed: false}, nil
	}

	correct := 0
	for i, q := range lesson.Questions {
		if answers[i] == q.AnswerIndex {
			correct++
		}
	}
	score := 100 * correct / total
	return QuizResult{
		Score:   score,
		Correct: correct,
		Total:   total,
		Passed:  score >= lesson.PassingScore,
	}, nil
}
