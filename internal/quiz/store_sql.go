package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classlab/quizboard/internal/audit"
)

func unixTime(v int64) time.Time { return time.Unix(v, 0).UTC() }

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// isUniqueViolation sniffs constraint errors across both drivers, same
// approach as the users-table probing in the auth middleware.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	var dueAt sql.NullInt64
	if q.DueAt != nil {
		dueAt = sql.NullInt64{Int64: q.DueAt.Unix(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,code,name,teacher_id,questions_json,due_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		q.ID, q.Code, q.Name, q.TeacherID, string(qj), dueAt, q.CreatedAt.Unix())
	if isUniqueViolation(err) {
		return ErrQuizCodeTaken
	}
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	return s.getQuiz(ctx, `SELECT id,code,name,teacher_id,questions_json,due_at,created_at FROM quizzes WHERE id=$1`, id)
}

func (s *SQLStore) GetQuizByCode(ctx context.Context, code string) (Quiz, error) {
	return s.getQuiz(ctx, `SELECT id,code,name,teacher_id,questions_json,due_at,created_at FROM quizzes WHERE code=$1`, code)
}

func (s *SQLStore) getQuiz(ctx context.Context, query, arg string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var (
		q         Quiz
		qjson     string
		dueAt     sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&q.ID, &q.Code, &q.Name, &q.TeacherID, &qjson, &dueAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, err
	}
	if dueAt.Valid {
		t := unixTime(dueAt.Int64)
		q.DueAt = &t
	}
	q.CreatedAt = unixTime(createdAt)
	return q, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error) {
	where := []string{}
	args := []any{}
	if opts.ViewerRole == "teacher" {
		args = append(args, opts.ViewerID)
		where = append(where, fmt.Sprintf("teacher_id=$%d", len(args)))
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(name LIKE $%d OR code LIKE $%d)", len(args), len(args)))
	}
	query := `SELECT id,code,name,teacher_id,questions_json,created_at FROM quizzes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id ASC LIMIT $%d", len(args))
	args = append(args, opts.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []QuizSummary{}
	for rows.Next() {
		var (
			sum   QuizSummary
			qjson string
		)
		if err := rows.Scan(&sum.ID, &sum.Code, &sum.Name, &sum.TeacherID, &qjson, &sum.CreatedAt); err != nil {
			return nil, err
		}
		var questions []Question
		if err := json.Unmarshal([]byte(qjson), &questions); err != nil {
			return nil, err
		}
		sum.QuestionCount = len(questions)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertAttempt(ctx context.Context, a Attempt) error {
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts (id,quiz_id,student_id,answers_json,score,total_questions,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.QuizID, a.StudentID, string(aj), a.Score, a.TotalQuestions, a.SubmittedAt.Unix())
	if isUniqueViolation(err) {
		return ErrAlreadyAttempted
	}
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,student_id,answers_json,score,total_questions,submitted_at FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) LatestAttempt(ctx context.Context, quizID, studentID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,student_id,answers_json,score,total_questions,submitted_at FROM attempts
		 WHERE quiz_id=$1 AND student_id=$2
		 ORDER BY submitted_at DESC, id DESC LIMIT 1`, quizID, studentID)
	return scanAttempt(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, error) {
	var (
		a           Attempt
		ajson       string
		submittedAt int64
	)
	if err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &ajson, &a.Score, &a.TotalQuestions, &submittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = map[int]int{}
	}
	a.SubmittedAt = unixTime(submittedAt)
	return a, nil
}

func (s *SQLStore) ListQuizAttempts(ctx context.Context, quizID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,student_id,answers_json,score,total_questions,submitted_at FROM attempts
		 WHERE quiz_id=$1 ORDER BY submitted_at ASC, id ASC`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateRetestRequest(ctx context.Context, r RetestRequest) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO retest_requests (id,student_id,quiz_id,attempt_id,status,requested_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.StudentID, r.QuizID, r.AttemptID, string(r.Status), r.RequestedAt.Unix())
	if isUniqueViolation(err) {
		return ErrDuplicatePending
	}
	return err
}

func (s *SQLStore) GetRetestRequest(ctx context.Context, id string) (RetestRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,student_id,quiz_id,attempt_id,status,requested_at,resolved_at FROM retest_requests WHERE id=$1`, id)
	return scanRequest(row)
}

func scanRequest(row rowScanner) (RetestRequest, error) {
	var (
		r           RetestRequest
		status      string
		requestedAt int64
		resolvedAt  sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.StudentID, &r.QuizID, &r.AttemptID, &status, &requestedAt, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RetestRequest{}, ErrRequestNotFound
		}
		return RetestRequest{}, err
	}
	r.Status = RetestStatus(status)
	r.RequestedAt = unixTime(requestedAt)
	if resolvedAt.Valid {
		t := unixTime(resolvedAt.Int64)
		r.ResolvedAt = &t
	}
	return r, nil
}

// ApproveRetest runs the cascade as one transaction: delete the referenced
// attempt, flip the request to approved, and append the audit snapshot. The
// attempt delete is unchecked; a request pointing at an already-missing
// attempt still resolves, it just has nothing left to delete. The snapshot
// is what survives of the attempt afterwards.
func (s *SQLStore) ApproveRetest(ctx context.Context, requestID string, resolvedAtUnix int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		attemptID string
		status    string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT attempt_id,status FROM retest_requests WHERE id=$1`, requestID).
		Scan(&attemptID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	if RetestStatus(status) != RetestPending {
		return ErrRequestResolved
	}

	snapshot := "{}"
	if a, err := scanAttempt(tx.QueryRowContext(ctx,
		`SELECT id,quiz_id,student_id,answers_json,score,total_questions,submitted_at FROM attempts WHERE id=$1`,
		attemptID)); err == nil {
		if buf, err := json.Marshal(a); err == nil {
			snapshot = string(buf)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE id=$1`, attemptID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE retest_requests SET status=$1, resolved_at=$2 WHERE id=$3 AND status=$4`,
		string(RetestApproved), resolvedAtUnix, requestID, string(RetestPending))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		// Raced with another resolver between the read and the update.
		return ErrRequestResolved
	}
	if err := audit.AppendTx(ctx, tx, audit.Event{
		Type:     "retest.approved",
		Key:      requestID,
		DataJSON: snapshot,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) DenyRetest(ctx context.Context, requestID string, resolvedAtUnix int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE retest_requests SET status=$1, resolved_at=$2 WHERE id=$3 AND status=$4`,
		string(RetestDenied), resolvedAtUnix, requestID, string(RetestPending))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetRetestRequest(ctx, requestID); err != nil {
			return err
		}
		return ErrRequestResolved
	}
	if err := audit.AppendTx(ctx, tx, audit.Event{
		Type:     "retest.denied",
		Key:      requestID,
		DataJSON: "{}",
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ListTeacherRequests(ctx context.Context, teacherID string) ([]TeacherRequestView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id,r.student_id,r.quiz_id,r.attempt_id,r.status,r.requested_at,r.resolved_at,
		        q.name,q.code,
		        a.id,a.answers_json,a.score,a.total_questions,a.submitted_at,
		        u.name
		 FROM retest_requests r
		 JOIN quizzes q ON q.id=r.quiz_id
		 LEFT JOIN attempts a ON a.id=r.attempt_id
		 LEFT JOIN users u ON u.id=r.student_id
		 WHERE q.teacher_id=$1
		 ORDER BY r.requested_at DESC, r.id DESC`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TeacherRequestView{}
	for rows.Next() {
		var (
			view        TeacherRequestView
			status      string
			requestedAt int64
			resolvedAt  sql.NullInt64
			attemptID   sql.NullString
			ajson       sql.NullString
			score       sql.NullInt64
			total       sql.NullInt64
			submittedAt sql.NullInt64
			studentName sql.NullString
		)
		r := &view.Request
		if err := rows.Scan(&r.ID, &r.StudentID, &r.QuizID, &r.AttemptID, &status, &requestedAt, &resolvedAt,
			&view.QuizName, &view.QuizCode,
			&attemptID, &ajson, &score, &total, &submittedAt,
			&studentName); err != nil {
			return nil, err
		}
		r.Status = RetestStatus(status)
		r.RequestedAt = unixTime(requestedAt)
		if resolvedAt.Valid {
			t := unixTime(resolvedAt.Int64)
			r.ResolvedAt = &t
		}
		if attemptID.Valid {
			a := Attempt{
				ID:             attemptID.String,
				QuizID:         r.QuizID,
				StudentID:      r.StudentID,
				Score:          int(score.Int64),
				TotalQuestions: int(total.Int64),
				SubmittedAt:    unixTime(submittedAt.Int64),
			}
			if err := json.Unmarshal([]byte(ajson.String), &a.Answers); err != nil {
				a.Answers = map[int]int{}
			}
			view.Attempt = &a
		}
		view.StudentName = studentName.String
		out = append(out, view)
	}
	return out, rows.Err()
}

func (s *SQLStore) StudentNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	if len(ids) == 0 {
		return out, nil
	}
	seen := map[string]bool{}
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := `SELECT id,name FROM users WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (s *SQLStore) TeacherCredentialHash(ctx context.Context, teacherID string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE id=$1 AND role=$2`, teacherID, "teacher").
		Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}
