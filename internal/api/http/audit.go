package http

import (
	"net/http"
	"strings"

	"github.com/classlab/quizboard/internal/audit"
)

// GET /audit?type=&limit= (admin). Retest approvals carry the deleted
// attempt as their payload, so this is where erased history can be read back.
func AuditLogHandler(log *audit.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := log.List(r.Context(),
			strings.TrimSpace(r.URL.Query().Get("type")),
			parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
