package quiz

import "time"

type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type Question struct {
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"` // unique human-entered join code
	Name      string     `json:"name"`
	TeacherID string     `json:"teacher_id"`
	Questions []Question `json:"questions"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Attempt is one scored submission. Rows are insert-once: the only mutation
// the system ever performs is the delete driven by an approved retest.
type Attempt struct {
	ID             string      `json:"id"`
	QuizID         string      `json:"quiz_id"`
	StudentID      string      `json:"student_id"`
	Answers        map[int]int `json:"answers"` // question index -> chosen option index
	Score          int         `json:"score"`
	TotalQuestions int         `json:"total_questions"`
	SubmittedAt    time.Time   `json:"submitted_at"`
}

type RetestStatus string

const (
	RetestPending  RetestStatus = "pending"
	RetestApproved RetestStatus = "approved"
	RetestDenied   RetestStatus = "denied"
)

func (s RetestStatus) Valid() bool {
	switch s {
	case RetestPending, RetestApproved, RetestDenied:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
// The only legal transitions are pending->approved and pending->denied.
func (s RetestStatus) Terminal() bool { return s == RetestApproved || s == RetestDenied }

type RetestRequest struct {
	ID          string       `json:"id"`
	StudentID   string       `json:"student_id"`
	QuizID      string       `json:"quiz_id"`
	AttemptID   string       `json:"attempt_id"`
	Status      RetestStatus `json:"status"`
	RequestedAt time.Time    `json:"requested_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// LeaderboardEntry is derived on every read, never persisted.
type LeaderboardEntry struct {
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	Percentage  int       `json:"percentage"`
	Rank        int       `json:"rank"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Eligibility struct {
	Eligible       bool   `json:"eligible"`
	Reason         string `json:"reason,omitempty"`
	PriorAttemptID string `json:"prior_attempt_id,omitempty"`
}

// TeacherRequestView is a retest request annotated with whatever attempt data
// still exists. Approved requests carry no attempt: approval deleted it.
type TeacherRequestView struct {
	Request     RetestRequest `json:"request"`
	QuizName    string        `json:"quiz_name"`
	QuizCode    string        `json:"quiz_code"`
	Attempt     *Attempt      `json:"attempt,omitempty"`
	StudentName string        `json:"student_name,omitempty"`
}
