package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/classlab/quizboard/internal/audit"
	"github.com/classlab/quizboard/internal/db"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh, "sqlite")
}

func seedSQLUser(t *testing.T, s *SQLStore, id, name, role, passwordHash string) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO users (id,username,name,role,password_hash,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, id, name, role, passwordHash, time.Now().Unix())
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestSQLStoreQuizRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Unix(1700086400, 0).UTC()
	q := threeQuestionQuiz()
	q.DueAt = &due
	if err := store.PutQuiz(ctx, q); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}

	got, err := store.GetQuizByCode(ctx, "geo-101")
	if err != nil {
		t.Fatalf("GetQuizByCode: %v", err)
	}
	if got.ID != q.ID || got.Name != q.Name || got.TeacherID != q.TeacherID {
		t.Fatalf("quiz fields lost: %+v", got)
	}
	if len(got.Questions) != 3 || !got.Questions[0].Options[1].Correct {
		t.Fatalf("questions did not survive the round trip: %+v", got.Questions)
	}
	if got.DueAt == nil || !got.DueAt.Equal(due) {
		t.Fatalf("due_at lost: %v", got.DueAt)
	}
	if !got.CreatedAt.Equal(q.CreatedAt) {
		t.Fatalf("created_at lost: %v", got.CreatedAt)
	}

	if _, err := store.GetQuiz(ctx, "nope"); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("want ErrQuizNotFound, got %v", err)
	}

	// Same code, different id: the unique index on code fires.
	dup := threeQuestionQuiz()
	dup.ID = "q2"
	if err := store.PutQuiz(ctx, dup); !errors.Is(err, ErrQuizCodeTaken) {
		t.Fatalf("want ErrQuizCodeTaken, got %v", err)
	}
}

func TestSQLStoreListQuizzesScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0).UTC()
	for i, row := range []struct{ id, code, teacher string }{
		{"q1", "geo-101", "t1"},
		{"q2", "bio-201", "t1"},
		{"q3", "chem-301", "t2"},
	} {
		q := threeQuestionQuiz()
		q.ID, q.Code, q.TeacherID = row.id, row.code, row.teacher
		q.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.PutQuiz(ctx, q); err != nil {
			t.Fatalf("PutQuiz %s: %v", row.id, err)
		}
	}

	all, err := store.ListQuizzes(ctx, ListOpts{ViewerRole: "student"})
	if err != nil {
		t.Fatalf("ListQuizzes: %v", err)
	}
	if len(all) != 3 || all[0].ID != "q3" {
		t.Fatalf("students see everything newest-first, got %+v", all)
	}

	mine, err := store.ListQuizzes(ctx, ListOpts{ViewerRole: "teacher", ViewerID: "t1"})
	if err != nil {
		t.Fatalf("ListQuizzes teacher: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("teacher must only see own quizzes, got %+v", mine)
	}

	filtered, err := store.ListQuizzes(ctx, ListOpts{ViewerRole: "student", Q: "bio"})
	if err != nil {
		t.Fatalf("ListQuizzes filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Code != "bio-201" {
		t.Fatalf("search filter broken: %+v", filtered)
	}

	paged, err := store.ListQuizzes(ctx, ListOpts{ViewerRole: "student", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListQuizzes paged: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "q2" {
		t.Fatalf("pagination broken: %+v", paged)
	}
}

func TestSQLStoreAttemptUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}

	at := time.Unix(1700000100, 0).UTC()
	a := Attempt{ID: "a1", QuizID: "q1", StudentID: "s1", Answers: map[int]int{0: 1}, Score: 1, TotalQuestions: 3, SubmittedAt: at}
	if err := store.InsertAttempt(ctx, a); err != nil {
		t.Fatalf("InsertAttempt: %v", err)
	}

	second := a
	second.ID = "a2"
	if err := store.InsertAttempt(ctx, second); !errors.Is(err, ErrAlreadyAttempted) {
		t.Fatalf("want ErrAlreadyAttempted, got %v", err)
	}

	// Different student on the same quiz is fine.
	second.ID = "a3"
	second.StudentID = "s2"
	if err := store.InsertAttempt(ctx, second); err != nil {
		t.Fatalf("InsertAttempt s2: %v", err)
	}

	got, err := store.LatestAttempt(ctx, "q1", "s1")
	if err != nil {
		t.Fatalf("LatestAttempt: %v", err)
	}
	if got.ID != "a1" || got.Answers[0] != 1 || !got.SubmittedAt.Equal(at) {
		t.Fatalf("attempt fields lost: %+v", got)
	}
	if _, err := store.LatestAttempt(ctx, "q1", "s9"); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("want ErrAttemptNotFound, got %v", err)
	}

	list, err := store.ListQuizAttempts(ctx, "q1")
	if err != nil {
		t.Fatalf("ListQuizAttempts: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a1" || list[1].ID != "a3" {
		t.Fatalf("attempts not ordered by submission: %+v", list)
	}
}

func TestSQLStoreRetestLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}
	seedSQLUser(t, store, "s1", "Ada", "student", "x")

	at := time.Unix(1700000100, 0).UTC()
	attempt := Attempt{ID: "a1", QuizID: "q1", StudentID: "s1", Answers: map[int]int{0: 1}, Score: 1, TotalQuestions: 3, SubmittedAt: at}
	if err := store.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("InsertAttempt: %v", err)
	}

	req := RetestRequest{ID: "r1", StudentID: "s1", QuizID: "q1", AttemptID: "a1", Status: RetestPending, RequestedAt: at.Add(time.Hour)}
	if err := store.CreateRetestRequest(ctx, req); err != nil {
		t.Fatalf("CreateRetestRequest: %v", err)
	}

	// The partial index blocks a second pending request for the triple.
	dup := req
	dup.ID = "r2"
	if err := store.CreateRetestRequest(ctx, dup); !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("want ErrDuplicatePending, got %v", err)
	}

	resolvedAt := at.Add(2 * time.Hour).Unix()
	if err := store.ApproveRetest(ctx, "r1", resolvedAt); err != nil {
		t.Fatalf("ApproveRetest: %v", err)
	}

	// Cascade: attempt gone, request settled, resolved_at recorded.
	if _, err := store.GetAttempt(ctx, "a1"); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("attempt should be deleted, got %v", err)
	}
	got, err := store.GetRetestRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRetestRequest: %v", err)
	}
	if got.Status != RetestApproved || got.ResolvedAt == nil || got.ResolvedAt.Unix() != resolvedAt {
		t.Fatalf("request not settled: %+v", got)
	}

	// A settled request cannot be resolved again.
	if err := store.ApproveRetest(ctx, "r1", resolvedAt); !errors.Is(err, ErrRequestResolved) {
		t.Fatalf("want ErrRequestResolved, got %v", err)
	}
	if err := store.DenyRetest(ctx, "r1", resolvedAt); !errors.Is(err, ErrRequestResolved) {
		t.Fatalf("deny after approve: want ErrRequestResolved, got %v", err)
	}
	if err := store.ApproveRetest(ctx, "r9", resolvedAt); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("want ErrRequestNotFound, got %v", err)
	}

	// Once r1 is settled the partial index admits a fresh pending request.
	if err := store.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("re-insert attempt: %v", err)
	}
	dup.ID = "r3"
	if err := store.CreateRetestRequest(ctx, dup); err != nil {
		t.Fatalf("pending after settle: %v", err)
	}
}

func TestSQLStoreApproveWritesAuditSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}
	at := time.Unix(1700000100, 0).UTC()
	attempt := Attempt{ID: "a1", QuizID: "q1", StudentID: "s1", Answers: map[int]int{0: 1, 2: 2}, Score: 2, TotalQuestions: 3, SubmittedAt: at}
	if err := store.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("InsertAttempt: %v", err)
	}
	req := RetestRequest{ID: "r1", StudentID: "s1", QuizID: "q1", AttemptID: "a1", Status: RetestPending, RequestedAt: at}
	if err := store.CreateRetestRequest(ctx, req); err != nil {
		t.Fatalf("CreateRetestRequest: %v", err)
	}
	if err := store.ApproveRetest(ctx, "r1", at.Add(time.Hour).Unix()); err != nil {
		t.Fatalf("ApproveRetest: %v", err)
	}

	events, err := audit.NewLog(store.db).List(ctx, "retest.approved", 10)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("want one audit event, got %d", len(events))
	}
	e := events[0]
	if e.Key != "r1" {
		t.Fatalf("audit key should be the request id, got %q", e.Key)
	}
	var snap Attempt
	if err := json.Unmarshal([]byte(e.DataJSON), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ID != "a1" || snap.Score != 2 || snap.Answers[2] != 2 {
		t.Fatalf("snapshot does not preserve the deleted attempt: %+v", snap)
	}
}

func TestSQLStoreListTeacherRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.PutQuiz(ctx, threeQuestionQuiz()); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}
	seedSQLUser(t, store, "s1", "Ada", "student", "x")

	at := time.Unix(1700000100, 0).UTC()
	attempt := Attempt{ID: "a1", QuizID: "q1", StudentID: "s1", Answers: map[int]int{0: 1}, Score: 1, TotalQuestions: 3, SubmittedAt: at}
	if err := store.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("InsertAttempt: %v", err)
	}
	req := RetestRequest{ID: "r1", StudentID: "s1", QuizID: "q1", AttemptID: "a1", Status: RetestPending, RequestedAt: at}
	if err := store.CreateRetestRequest(ctx, req); err != nil {
		t.Fatalf("CreateRetestRequest: %v", err)
	}

	views, err := store.ListTeacherRequests(ctx, "t1")
	if err != nil {
		t.Fatalf("ListTeacherRequests: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("want one view, got %d", len(views))
	}
	v := views[0]
	if v.QuizName != "Geography" || v.QuizCode != "geo-101" || v.StudentName != "Ada" {
		t.Fatalf("annotations wrong: %+v", v)
	}
	if v.Attempt == nil || v.Attempt.Score != 1 {
		t.Fatalf("pending view should carry the attempt: %+v", v.Attempt)
	}

	if other, err := store.ListTeacherRequests(ctx, "t9"); err != nil || len(other) != 0 {
		t.Fatalf("foreign teacher sees %d views, err %v", len(other), err)
	}

	// After approval the join yields NULLs for the attempt columns.
	if err := store.ApproveRetest(ctx, "r1", at.Add(time.Hour).Unix()); err != nil {
		t.Fatalf("ApproveRetest: %v", err)
	}
	views, err = store.ListTeacherRequests(ctx, "t1")
	if err != nil {
		t.Fatalf("ListTeacherRequests after approve: %v", err)
	}
	if len(views) != 1 || views[0].Attempt != nil || views[0].Request.Status != RetestApproved {
		t.Fatalf("approved view wrong: %+v", views)
	}
}

func TestSQLStoreCredentialAndNames(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSQLUser(t, store, "t1", "Ms. Lovelace", "teacher", "hash-t1")
	seedSQLUser(t, store, "s1", "Ada", "student", "hash-s1")

	hash, err := store.TeacherCredentialHash(ctx, "t1")
	if err != nil || hash != "hash-t1" {
		t.Fatalf("TeacherCredentialHash: %q, %v", hash, err)
	}
	// Students and unknowns read as unauthorized, never as a hash.
	if _, err := store.TeacherCredentialHash(ctx, "s1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("student lookup: want ErrUnauthorized, got %v", err)
	}
	if _, err := store.TeacherCredentialHash(ctx, "nobody"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unknown lookup: want ErrUnauthorized, got %v", err)
	}

	names, err := store.StudentNames(ctx, []string{"s1", "s1", "ghost"})
	if err != nil {
		t.Fatalf("StudentNames: %v", err)
	}
	if len(names) != 1 || names["s1"] != "Ada" {
		t.Fatalf("names wrong: %+v", names)
	}
}
