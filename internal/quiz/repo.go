package quiz

import "context"

type ListOpts struct {
	Q          string
	Limit      int
	Offset     int
	ViewerID   string
	ViewerRole string // "student" | "teacher" | "admin"
}

type QuizSummary struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	TeacherID     string `json:"teacher_id"`
	QuestionCount int    `json:"question_count"`
	CreatedAt     int64  `json:"created_at"`
}

// Store is the persistence boundary for the assessment core. It is the only
// shared mutable resource; every invariant that needs check-then-act safety
// (one live attempt per student+quiz, one pending request per triple, the
// approve cascade) is enforced here, not in the callers.
type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	// GetQuiz returns the full quiz including correct-option flags.
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	GetQuizByCode(ctx context.Context, code string) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error)

	// InsertAttempt persists a scored attempt as a single row. It returns
	// ErrAlreadyAttempted when a live attempt for (quiz, student) exists.
	InsertAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// LatestAttempt returns the most recent live attempt for the pair,
	// ordered by submitted_at desc with id desc as the tie-break.
	LatestAttempt(ctx context.Context, quizID, studentID string) (Attempt, error)
	ListQuizAttempts(ctx context.Context, quizID string) ([]Attempt, error)

	// CreateRetestRequest returns ErrDuplicatePending when a pending request
	// for the same (quiz, student, attempt) triple exists. Resolved requests
	// never block a new one.
	CreateRetestRequest(ctx context.Context, r RetestRequest) error
	GetRetestRequest(ctx context.Context, id string) (RetestRequest, error)
	// ApproveRetest deletes the referenced attempt and marks the request
	// approved in one atomic unit. ErrRequestResolved if no longer pending.
	ApproveRetest(ctx context.Context, requestID string, resolvedAtUnix int64) error
	DenyRetest(ctx context.Context, requestID string, resolvedAtUnix int64) error
	ListTeacherRequests(ctx context.Context, teacherID string) ([]TeacherRequestView, error)

	// StudentNames resolves display names for leaderboard and request views.
	// Unknown ids are simply absent from the result.
	StudentNames(ctx context.Context, ids []string) (map[string]string, error)
	// TeacherCredentialHash returns the stored bcrypt hash for a teacher.
	TeacherCredentialHash(ctx context.Context, teacherID string) (string, error)
}
