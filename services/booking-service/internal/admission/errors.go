package admission

import (
	"errors"
	"fmt"
)

// RejectionReason is the closed set of reasons a booking attempt can be
// turned down. Every rejection carries exactly one.
type RejectionReason string

const (
	ReasonOutsideWorkingHours RejectionReason = "outside_working_hours"
	ReasonConstraintBlocked   RejectionReason = "constraint_blocked"
	ReasonSlotAlreadyTaken    RejectionReason = "slot_already_taken"
	ReasonInvalidDuration     RejectionReason = "invalid_duration"
)

// Rejection is a business-rule refusal, distinct from infrastructure
// errors so handlers can map it to a 4xx response.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(reason RejectionReason, format string, args ...any) error {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ValidationError marks malformed input that never reached the scheduling
// rules.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
