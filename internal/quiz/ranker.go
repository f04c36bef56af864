package quiz

import (
	"context"
	"math"
	"sort"
)

// Ranker derives the live leaderboard for a quiz. Every call re-reads the
// attempts: an approved retest may have deleted a row since the last call,
// and a cached view would keep serving the ghost entry.
type Ranker struct {
	store Store
}

func NewRanker(store Store) *Ranker { return &Ranker{store: store} }

func (r *Ranker) Rank(ctx context.Context, quizID string) ([]LeaderboardEntry, error) {
	attempts, err := r.store.ListQuizAttempts(ctx, quizID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.StudentID)
	}
	names, err := r.store.StudentNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	return rankAttempts(attempts, names), nil
}

// rankAttempts orders by percentage descending, earlier submission first
// within a tie, and assigns dense ranks: every tied percentage shares a rank
// and the next distinct percentage gets the previous rank plus one.
func rankAttempts(attempts []Attempt, names map[string]string) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(attempts))
	for _, a := range attempts {
		entries = append(entries, LeaderboardEntry{
			StudentID:   a.StudentID,
			StudentName: names[a.StudentID],
			Percentage:  percentage(a.Score, a.TotalQuestions),
			SubmittedAt: a.SubmittedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		if !entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
		}
		return entries[i].StudentID < entries[j].StudentID
	})
	rank := 0
	prev := -1
	for i := range entries {
		if entries[i].Percentage != prev {
			rank++
			prev = entries[i].Percentage
		}
		entries[i].Rank = rank
	}
	return entries
}

// percentage clamps a zero denominator to 1. A zero-question quiz cannot be
// authored through validation, but a stored one must not take the ranker down.
func percentage(score, total int) int {
	if total < 1 {
		total = 1
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
