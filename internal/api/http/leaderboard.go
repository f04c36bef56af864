package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classlab/quizboard/internal/quiz"
)

type leaderboardResponse struct {
	QuizName string                  `json:"quiz_name"`
	Rankings []quiz.LeaderboardEntry `json:"rankings"`
}

// GET /quizzes/{code}/leaderboard. The ranking is re-derived on every call;
// an attempt deleted by a retest approval is gone from the very next read.
func LeaderboardHandler(store quiz.Store, ranker *quiz.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuizByCode(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		rankings, err := ranker.Rank(r.Context(), q.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, leaderboardResponse{QuizName: q.Name, Rankings: rankings})
	}
}
