package quiz

import (
	"context"
	"errors"
)

// Guard answers "may this student submit this quiz right now". It is a pure
// read: eligibility reduces to the absence of a live attempt row, which is
// also what makes the approve path fail-open. If a crash ever leaves an
// approved request whose attempt deletion did commit, the missing row alone
// re-opens eligibility; nothing here consults request state.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard { return &Guard{store: store} }

func (g *Guard) CheckEligibility(ctx context.Context, quizID, studentID string) (Eligibility, error) {
	prior, err := g.store.LatestAttempt(ctx, quizID, studentID)
	if errors.Is(err, ErrAttemptNotFound) {
		return Eligibility{Eligible: true}, nil
	}
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		Eligible:       false,
		Reason:         "already attempted",
		PriorAttemptID: prior.ID,
	}, nil
}
