package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classlab/quizboard/internal/quiz"
	"github.com/classlab/quizboard/internal/rbac"
)

type createRetestRequest struct {
	QuizID    string `json:"quiz_id"`
	AttemptID string `json:"attempt_id"`
}

// POST /retest-requests (student).
func CreateRetestHandler(workflow *quiz.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRetestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuizID == "" || req.AttemptID == "" {
			http.Error(w, "quiz_id and attempt_id required", http.StatusBadRequest)
			return
		}
		studentID := rbac.SubjectFromContext(r.Context())
		created, err := workflow.Create(r.Context(), studentID, req.QuizID, req.AttemptID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

type resolveRetestRequest struct {
	Decision   string `json:"decision"` // approve|deny
	Credential string `json:"credential"`
}

// PUT /retest-requests/{requestID} (teacher). The teacher re-presents their
// credential; ownership of the quiz is checked inside the workflow.
func ResolveRetestHandler(workflow *quiz.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveRetestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		teacherID := rbac.SubjectFromContext(r.Context())
		resolved, err := workflow.Resolve(r.Context(),
			chi.URLParam(r, "requestID"), quiz.Decision(req.Decision), teacherID, req.Credential)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(resolved.Status)})
	}
}

// GET /retest-requests (teacher): every request on the teacher's quizzes,
// newest first, annotated with whatever attempt data still exists.
func ListRetestsHandler(workflow *quiz.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teacherID := rbac.SubjectFromContext(r.Context())
		views, err := workflow.ListForTeacher(r.Context(), teacherID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}
