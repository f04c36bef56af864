package quiz

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Workflow drives the retest request lifecycle: a student asks to discard a
// past attempt, the owning teacher approves or denies. Both outcomes are
// terminal; a denied student may file a fresh request for the same attempt.
type Workflow struct {
	store Store
	now   func() time.Time
}

func NewWorkflow(store Store) *Workflow {
	return &Workflow{store: store, now: time.Now}
}

// Create files a pending request. An attempt that does not belong to the
// (student, quiz) pair reads as not found rather than forbidden, so callers
// cannot probe other students' attempt ids.
func (w *Workflow) Create(ctx context.Context, studentID, quizID, attemptID string) (RetestRequest, error) {
	a, err := w.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return RetestRequest{}, err
	}
	if a.QuizID != quizID || a.StudentID != studentID {
		return RetestRequest{}, ErrAttemptNotFound
	}
	req := RetestRequest{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		QuizID:      quizID,
		AttemptID:   attemptID,
		Status:      RetestPending,
		RequestedAt: w.now().UTC(),
	}
	if err := w.store.CreateRetestRequest(ctx, req); err != nil {
		return RetestRequest{}, err
	}
	return req, nil
}

// Resolve applies a teacher decision. The caller must be the teacher who owns
// the quiz and must re-present their credential; the stored bcrypt hash is
// the only thing compared against. Approve deletes the referenced attempt and
// closes the request in one transaction, so eligibility re-opens the moment
// the approval is visible.
func (w *Workflow) Resolve(ctx context.Context, requestID string, decision Decision, teacherID, credential string) (RetestRequest, error) {
	req, err := w.store.GetRetestRequest(ctx, requestID)
	if err != nil {
		return RetestRequest{}, err
	}
	q, err := w.store.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return RetestRequest{}, err
	}
	if q.TeacherID != teacherID {
		return RetestRequest{}, ErrUnauthorized
	}
	hash, err := w.store.TeacherCredentialHash(ctx, teacherID)
	if err != nil {
		return RetestRequest{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) != nil {
		return RetestRequest{}, ErrUnauthorized
	}
	if req.Status.Terminal() {
		return RetestRequest{}, ErrRequestResolved
	}

	resolvedAt := w.now().UTC()
	switch decision {
	case DecisionApprove:
		if err := w.store.ApproveRetest(ctx, requestID, resolvedAt.Unix()); err != nil {
			return RetestRequest{}, err
		}
		req.Status = RetestApproved
	case DecisionDeny:
		if err := w.store.DenyRetest(ctx, requestID, resolvedAt.Unix()); err != nil {
			return RetestRequest{}, err
		}
		req.Status = RetestDenied
	default:
		return RetestRequest{}, &ValidationError{Msg: "decision must be approve or deny"}
	}
	req.ResolvedAt = &resolvedAt
	return req, nil
}

func (w *Workflow) ListForTeacher(ctx context.Context, teacherID string) ([]TeacherRequestView, error) {
	return w.store.ListTeacherRequests(ctx, teacherID)
}
