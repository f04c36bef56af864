package quiz

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder scores a submission and records it durably. The score, total and
// raw answer map land in one insert so no partial attempt is ever observable.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func (r *Recorder) Submit(ctx context.Context, quizCode, studentID string, answers map[int]int) (Attempt, error) {
	q, err := r.store.GetQuizByCode(ctx, quizCode)
	if err != nil {
		return Attempt{}, err
	}
	if answers == nil {
		answers = map[int]int{}
	}
	a := Attempt{
		ID:             uuid.NewString(),
		QuizID:         q.ID,
		StudentID:      studentID,
		Answers:        answers,
		Score:          scoreAnswers(q.Questions, answers),
		TotalQuestions: len(q.Questions),
		SubmittedAt:    r.now().UTC(),
	}
	if err := r.store.InsertAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// scoreAnswers counts matches against each question's correct option. A
// missing or out-of-range answer is incorrect, never an error.
func scoreAnswers(questions []Question, answers map[int]int) int {
	score := 0
	for i, q := range questions {
		chosen, ok := answers[i]
		if !ok {
			continue
		}
		if correct, ok := correctIndex(q); ok && chosen == correct {
			score++
		}
	}
	return score
}

// correctIndex returns the index of the option flagged correct. Authoring
// validation guarantees exactly one per question; should legacy data carry
// more, the first flagged option wins.
func correctIndex(q Question) (int, bool) {
	for i, o := range q.Options {
		if o.Correct {
			return i, true
		}
	}
	return 0, false
}
