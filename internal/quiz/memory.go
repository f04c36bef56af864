package quiz

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memUser struct {
	Name           string
	Role           string
	CredentialHash string
}

// MemoryStore keeps everything behind one mutex, which is what makes the
// approve cascade atomic here. It backs tests and offline runs; semantics
// match the SQL store row for row.
type MemoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	byCode   map[string]string
	attempts map[string]Attempt
	requests map[string]RetestRequest
	users    map[string]memUser
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:  map[string]Quiz{},
		byCode:   map[string]string{},
		attempts: map[string]Attempt{},
		requests: map[string]RetestRequest{},
		users:    map[string]memUser{},
	}
}

// SeedUser registers a user for name lookups and credential checks. Not part
// of the Store interface; the SQL store sources this from the users table.
func (m *MemoryStore) SeedUser(id, name, role, credentialHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = memUser{Name: name, Role: role, CredentialHash: credentialHash}
}

func (m *MemoryStore) PutQuiz(_ context.Context, q Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byCode[q.Code]; ok && existing != q.ID {
		return ErrQuizCodeTaken
	}
	m.quizzes[q.ID] = q
	m.byCode[q.Code] = q.ID
	return nil
}

func (m *MemoryStore) GetQuiz(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (m *MemoryStore) GetQuizByCode(_ context.Context, code string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return m.quizzes[id], nil
}

func (m *MemoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]QuizSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuizSummary, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		if opts.ViewerRole == "teacher" && q.TeacherID != opts.ViewerID {
			continue
		}
		out = append(out, QuizSummary{
			ID:            q.ID,
			Code:          q.Code,
			Name:          q.Name,
			TeacherID:     q.TeacherID,
			QuestionCount: len(q.Questions),
			CreatedAt:     q.CreatedAt.Unix(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []QuizSummary{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) InsertAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts {
		if existing.QuizID == a.QuizID && existing.StudentID == a.StudentID {
			return ErrAlreadyAttempted
		}
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (m *MemoryStore) LatestAttempt(_ context.Context, quizID, studentID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest Attempt
	found := false
	for _, a := range m.attempts {
		if a.QuizID != quizID || a.StudentID != studentID {
			continue
		}
		if !found || a.SubmittedAt.After(latest.SubmittedAt) ||
			(a.SubmittedAt.Equal(latest.SubmittedAt) && a.ID > latest.ID) {
			latest = a
			found = true
		}
	}
	if !found {
		return Attempt{}, ErrAttemptNotFound
	}
	return latest, nil
}

func (m *MemoryStore) ListQuizAttempts(_ context.Context, quizID string) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if a.QuizID == quizID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CreateRetestRequest(_ context.Context, r RetestRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.Status == RetestPending &&
			existing.QuizID == r.QuizID &&
			existing.StudentID == r.StudentID &&
			existing.AttemptID == r.AttemptID {
			return ErrDuplicatePending
		}
	}
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) GetRetestRequest(_ context.Context, id string) (RetestRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return RetestRequest{}, ErrRequestNotFound
	}
	return r, nil
}

func (m *MemoryStore) ApproveRetest(_ context.Context, requestID string, resolvedAtUnix int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if r.Status != RetestPending {
		return ErrRequestResolved
	}
	// The attempt may already be gone; the delete stays best-effort so
	// eligibility fails open either way.
	delete(m.attempts, r.AttemptID)
	r.Status = RetestApproved
	t := time.Unix(resolvedAtUnix, 0).UTC()
	r.ResolvedAt = &t
	m.requests[requestID] = r
	return nil
}

func (m *MemoryStore) DenyRetest(_ context.Context, requestID string, resolvedAtUnix int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	if r.Status != RetestPending {
		return ErrRequestResolved
	}
	r.Status = RetestDenied
	t := time.Unix(resolvedAtUnix, 0).UTC()
	r.ResolvedAt = &t
	m.requests[requestID] = r
	return nil
}

func (m *MemoryStore) ListTeacherRequests(_ context.Context, teacherID string) ([]TeacherRequestView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TeacherRequestView, 0)
	for _, r := range m.requests {
		q, ok := m.quizzes[r.QuizID]
		if !ok || q.TeacherID != teacherID {
			continue
		}
		view := TeacherRequestView{
			Request:     r,
			QuizName:    q.Name,
			QuizCode:    q.Code,
			StudentName: m.users[r.StudentID].Name,
		}
		if a, ok := m.attempts[r.AttemptID]; ok {
			attempt := a
			view.Attempt = &attempt
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Request.RequestedAt.Equal(out[j].Request.RequestedAt) {
			return out[i].Request.RequestedAt.After(out[j].Request.RequestedAt)
		}
		return out[i].Request.ID > out[j].Request.ID
	})
	return out, nil
}

func (m *MemoryStore) StudentNames(_ context.Context, ids []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u.Name
		}
	}
	return out, nil
}

func (m *MemoryStore) TeacherCredentialHash(_ context.Context, teacherID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[teacherID]
	if !ok || u.CredentialHash == "" {
		return "", ErrUnauthorized
	}
	return u.CredentialHash, nil
}
