package quiz

import "errors"

// Sentinel errors the HTTP boundary maps to status codes. Store
// implementations must return these, not their own variants.
var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrRequestNotFound  = errors.New("retest request not found")
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	ErrQuizCodeTaken    = errors.New("quiz code already in use")
	ErrDuplicatePending = errors.New("a pending retest request already exists for this attempt")
	ErrRequestResolved  = errors.New("retest request already resolved")
	ErrUnauthorized     = errors.New("not authorized")
)

// ValidationError carries an authoring-time rejection (bad question/option
// shape). It is a distinct type so the boundary can map it to 422 while the
// message stays specific.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
