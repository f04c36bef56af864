package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/classlab/quizboard/internal/quiz"
	"github.com/classlab/quizboard/internal/rbac"
)

type submitAttemptRequest struct {
	Answers map[int]int `json:"answers"` // question index -> option index
}

type submitAttemptResponse struct {
	AttemptID      string `json:"attempt_id"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
}

// POST /quizzes/{code}/attempts. The student is the token subject; the
// one-live-attempt rule is enforced by the store's unique index, so a
// concurrent double-submit still yields exactly one 201 and one 409.
func SubmitAttemptHandler(recorder *quiz.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitAttemptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		studentID := rbac.SubjectFromContext(r.Context())
		a, err := recorder.Submit(r.Context(), chi.URLParam(r, "code"), studentID, req.Answers)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, submitAttemptResponse{
			AttemptID:      a.ID,
			Score:          a.Score,
			TotalQuestions: a.TotalQuestions,
		})
	}
}

// GET /quizzes/{code}/eligibility[?student_id=]. Students check themselves;
// the student_id override is for teachers and admins.
func EligibilityHandler(store quiz.Store, guard *quiz.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuizByCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		studentID := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if override := strings.TrimSpace(r.URL.Query().Get("student_id")); override != "" &&
			(role == "teacher" || role == "admin") {
			studentID = override
		}
		elig, err := guard.CheckEligibility(r.Context(), q.ID, studentID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, elig)
	}
}
