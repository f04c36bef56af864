package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const teacherPassword = "open-sesame"

func retestFixture(t *testing.T) (*MemoryStore, *Workflow, Attempt) {
	t.Helper()
	store := NewMemoryStore()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(teacherPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	store.SeedUser("t1", "Ms. Lovelace", "teacher", string(hash))
	store.SeedUser("t2", "Mr. Babbage", "teacher", string(hash))
	store.SeedUser("s1", "Ada", "student", "")

	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}
	recorder := NewRecorder(store)
	a, err := recorder.Submit(ctx, "geo-101", "s1", map[int]int{0: 1})
	if err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	return store, NewWorkflow(store), a
}

func TestWorkflowCreateRejectsForeignAttempt(t *testing.T) {
	_, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	if _, err := workflow.Create(ctx, "someone-else", attempt.QuizID, attempt.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("foreign student must read as not found, got %v", err)
	}
	if _, err := workflow.Create(ctx, "s1", "other-quiz", attempt.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("wrong quiz must read as not found, got %v", err)
	}
	if _, err := workflow.Create(ctx, "s1", attempt.QuizID, "no-such-attempt"); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("missing attempt must be not found, got %v", err)
	}
}

func TestWorkflowCreateConflictsOnPending(t *testing.T) {
	_, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	if _, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID)
	if !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("want ErrDuplicatePending, got %v", err)
	}
}

func TestWorkflowDenyThenRecreate(t *testing.T) {
	store, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	req, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resolved, err := workflow.Resolve(ctx, req.ID, DecisionDeny, "t1", teacherPassword)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if resolved.Status != RetestDenied || resolved.ResolvedAt == nil {
		t.Fatalf("deny did not settle the request: %+v", resolved)
	}

	// Denied is terminal but does not block a fresh request for the triple.
	if _, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID); err != nil {
		t.Fatalf("re-create after denial: %v", err)
	}

	// The attempt survives a denial: still ineligible.
	elig, err := NewGuard(store).CheckEligibility(ctx, attempt.QuizID, "s1")
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	if elig.Eligible {
		t.Fatalf("denial must leave the attempt blocking")
	}
	if elig.PriorAttemptID != attempt.ID {
		t.Fatalf("prior attempt id wrong: %q", elig.PriorAttemptID)
	}
}

func TestWorkflowApproveCascades(t *testing.T) {
	store, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	req, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resolved, err := workflow.Resolve(ctx, req.ID, DecisionApprove, "t1", teacherPassword)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resolved.Status != RetestApproved {
		t.Fatalf("want approved, got %s", resolved.Status)
	}

	// The attempt is gone, eligibility is back, and the leaderboard no
	// longer lists the student.
	if _, err := store.GetAttempt(ctx, attempt.ID); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("attempt should be deleted, got %v", err)
	}
	elig, err := NewGuard(store).CheckEligibility(ctx, attempt.QuizID, "s1")
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	if !elig.Eligible {
		t.Fatalf("approval must re-open eligibility: %+v", elig)
	}
	entries, err := NewRanker(store).Rank(ctx, attempt.QuizID)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for _, e := range entries {
		if e.StudentID == "s1" {
			t.Fatalf("deleted attempt still on leaderboard: %+v", entries)
		}
	}

	// And the student can submit again.
	if _, err := NewRecorder(store).Submit(ctx, "geo-101", "s1", map[int]int{0: 1, 1: 0, 2: 2}); err != nil {
		t.Fatalf("resubmit after approval: %v", err)
	}
}

func TestWorkflowResolveIsTerminal(t *testing.T) {
	_, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	req, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := workflow.Resolve(ctx, req.ID, DecisionDeny, "t1", teacherPassword); err != nil {
		t.Fatalf("deny: %v", err)
	}
	// A denied request can never be approved afterwards.
	if _, err := workflow.Resolve(ctx, req.ID, DecisionApprove, "t1", teacherPassword); !errors.Is(err, ErrRequestResolved) {
		t.Fatalf("want ErrRequestResolved, got %v", err)
	}
	if _, err := workflow.Resolve(ctx, req.ID, DecisionDeny, "t1", teacherPassword); !errors.Is(err, ErrRequestResolved) {
		t.Fatalf("double deny should fail, got %v", err)
	}
}

func TestWorkflowResolveAuthorization(t *testing.T) {
	_, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	req, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Wrong teacher: t2 does not own geo-101.
	if _, err := workflow.Resolve(ctx, req.ID, DecisionApprove, "t2", teacherPassword); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owning teacher must be unauthorized, got %v", err)
	}
	// Right teacher, wrong credential.
	if _, err := workflow.Resolve(ctx, req.ID, DecisionApprove, "t1", "guessed"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad credential must be unauthorized, got %v", err)
	}
	// Missing request.
	if _, err := workflow.Resolve(ctx, "no-such-request", DecisionApprove, "t1", teacherPassword); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("want ErrRequestNotFound, got %v", err)
	}
	// Garbage decision.
	if _, err := workflow.Resolve(ctx, req.ID, Decision("maybe"), "t1", teacherPassword); !IsValidation(err) {
		t.Fatalf("unknown decision must be a validation error, got %v", err)
	}

	// None of the failures may have consumed the request.
	if _, err := workflow.Resolve(ctx, req.ID, DecisionApprove, "t1", teacherPassword); err != nil {
		t.Fatalf("legitimate approve after failed tries: %v", err)
	}
}

func TestWorkflowListForTeacher(t *testing.T) {
	_, workflow, attempt := retestFixture(t)
	ctx := context.Background()

	req, err := workflow.Create(ctx, "s1", attempt.QuizID, attempt.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	views, err := workflow.ListForTeacher(ctx, "t1")
	if err != nil {
		t.Fatalf("ListForTeacher: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one request, got %d", len(views))
	}
	v := views[0]
	if v.Request.ID != req.ID || v.QuizCode != "geo-101" || v.StudentName != "Ada" {
		t.Fatalf("annotation wrong: %+v", v)
	}
	if v.Attempt == nil || v.Attempt.ID != attempt.ID {
		t.Fatalf("pending request should carry its attempt, got %+v", v.Attempt)
	}

	// Other teachers see nothing.
	other, err := workflow.ListForTeacher(ctx, "t2")
	if err != nil {
		t.Fatalf("ListForTeacher t2: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("t2 owns no quizzes, got %d requests", len(other))
	}

	// After approval the attempt annotation disappears but the request stays.
	if _, err := workflow.Resolve(ctx, req.ID, DecisionApprove, "t1", teacherPassword); err != nil {
		t.Fatalf("approve: %v", err)
	}
	views, err = workflow.ListForTeacher(ctx, "t1")
	if err != nil {
		t.Fatalf("ListForTeacher after approve: %v", err)
	}
	if len(views) != 1 || views[0].Request.Status != RetestApproved {
		t.Fatalf("approved request missing from list: %+v", views)
	}
	if views[0].Attempt != nil {
		t.Fatalf("approved request must not carry attempt data")
	}
}

func TestMemoryStoreLatestAttemptTieBreak(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	at := time.Unix(1700000000, 0).UTC()

	// Two attempts for different quizzes plus two same-timestamp rows for
	// one pair (only possible transiently; highest id must win).
	store.mu.Lock()
	store.attempts["a1"] = Attempt{ID: "a1", QuizID: "q", StudentID: "s", SubmittedAt: at}
	store.attempts["a2"] = Attempt{ID: "a2", QuizID: "q", StudentID: "s", SubmittedAt: at}
	store.mu.Unlock()

	latest, err := store.LatestAttempt(ctx, "q", "s")
	if err != nil {
		t.Fatalf("LatestAttempt: %v", err)
	}
	if latest.ID != "a2" {
		t.Fatalf("tie-break must pick highest id, got %s", latest.ID)
	}
}
