package http

import (
	"net/http"
	"strings"
	"time"

	"encoding/json"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/classlab/quizboard/internal/quiz"
	"github.com/classlab/quizboard/internal/rbac"
)

type createQuizRequest struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Questions []quiz.Question `json:"questions"`
	DueAt     *time.Time      `json:"due_at,omitempty"`
}

// POST /quizzes (teacher). Authoring is the one place question shape is
// validated; everything downstream assumes exactly one correct option.
func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createQuizRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q := quiz.Quiz{
			ID:        uuid.NewString(),
			Code:      strings.TrimSpace(req.Code),
			Name:      strings.TrimSpace(req.Name),
			TeacherID: rbac.SubjectFromContext(r.Context()),
			Questions: req.Questions,
			DueAt:     req.DueAt,
			CreatedAt: time.Now().UTC(),
		}
		if err := quiz.ValidateQuiz(q); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := store.PutQuiz(r.Context(), q); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /quizzes/{code}. Correct-option flags are stripped unless the viewer
// owns the quiz (or is an admin).
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		q, err := store.GetQuizByCode(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		if role != "admin" && q.TeacherID != sub {
			q = quiz.StripAnswers(q)
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes?q=&limit=&offset=. Teachers see their own quizzes, students
// browse everything.
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			Q:          strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:      parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:     parseIntDefault(r.URL.Query().Get("offset"), 0),
			ViewerID:   rbac.SubjectFromContext(r.Context()),
			ViewerRole: rbac.RoleFromContext(r.Context()),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
