package quiz

import (
	"fmt"
	"strings"
)

// ValidateQuiz rejects quizzes the scorer cannot handle. In particular every
// question must carry exactly one correct option: scoring against zero or
// multiple flagged options is undefined, so it is refused here at authoring
// time instead of guessed at on submit.
func ValidateQuiz(q Quiz) error {
	if strings.TrimSpace(q.Code) == "" {
		return &ValidationError{Msg: "quiz code required"}
	}
	if strings.TrimSpace(q.Name) == "" {
		return &ValidationError{Msg: "quiz name required"}
	}
	if len(q.Questions) == 0 {
		return &ValidationError{Msg: "quiz needs at least one question"}
	}
	for i, question := range q.Questions {
		if strings.TrimSpace(question.Text) == "" {
			return &ValidationError{Msg: fmt.Sprintf("question %d: text required", i+1)}
		}
		if len(question.Options) < 2 {
			return &ValidationError{Msg: fmt.Sprintf("question %d: at least two options required", i+1)}
		}
		correct := 0
		for _, o := range question.Options {
			if strings.TrimSpace(o.Text) == "" {
				return &ValidationError{Msg: fmt.Sprintf("question %d: empty option text", i+1)}
			}
			if o.Correct {
				correct++
			}
		}
		if correct != 1 {
			return &ValidationError{Msg: fmt.Sprintf("question %d: exactly one correct option required, got %d", i+1, correct)}
		}
	}
	return nil
}

// StripAnswers returns a student-safe copy with correct flags cleared,
// mirroring what GetQuiz serves to non-owners.
func StripAnswers(q Quiz) Quiz {
	questions := make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		options := make([]Option, len(question.Options))
		for j, o := range question.Options {
			options[j] = Option{Text: o.Text}
		}
		questions[i] = Question{Text: question.Text, Options: options}
	}
	q.Questions = questions
	return q
}
