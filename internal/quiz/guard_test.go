package quiz

import (
	"context"
	"testing"
)

func TestGuardEligibleWithoutAttempt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}

	elig, err := NewGuard(store).CheckEligibility(ctx, "q1", "s1")
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	if !elig.Eligible {
		t.Fatalf("fresh student should be eligible: %+v", elig)
	}
	if elig.Reason != "" || elig.PriorAttemptID != "" {
		t.Fatalf("eligible result should carry no annotations: %+v", elig)
	}
}

func TestGuardIneligibleAfterAttempt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}
	a, err := NewRecorder(store).Submit(ctx, "geo-101", "s1", map[int]int{0: 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	elig, err := NewGuard(store).CheckEligibility(ctx, "q1", "s1")
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	if elig.Eligible {
		t.Fatalf("attempted student should be blocked")
	}
	if elig.PriorAttemptID != a.ID {
		t.Fatalf("want prior attempt %s, got %s", a.ID, elig.PriorAttemptID)
	}
	if elig.Reason == "" {
		t.Fatalf("blocked result should say why")
	}

	// Another student on the same quiz is untouched.
	other, err := NewGuard(store).CheckEligibility(ctx, "q1", "s2")
	if err != nil {
		t.Fatalf("CheckEligibility s2: %v", err)
	}
	if !other.Eligible {
		t.Fatalf("s2 never attempted, got %+v", other)
	}
}

// Eligibility is a pure row lookup: an unknown quiz id just reads as no
// attempt on record, so the check fails open.
func TestGuardFailsOpenOnUnknownQuiz(t *testing.T) {
	store := NewMemoryStore()
	elig, err := NewGuard(store).CheckEligibility(context.Background(), "no-such-quiz", "s1")
	if err != nil {
		t.Fatalf("CheckEligibility: %v", err)
	}
	if !elig.Eligible {
		t.Fatalf("no row means eligible, got %+v", elig)
	}
}
