// Package enrollment holds enrollment sessions and submits completed
// selections to the store or the external GraphQL endpoint.
package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/summary"
)

// DefaultSuccessMessage is returned when the sink does not supply a message.
const DefaultSuccessMessage = "Enrollment submitted."

var (
	// ErrAlreadySubmitted reports a repeated submission for a session.
	ErrAlreadySubmitted = errors.New("enrollment already submitted")
	// ErrSubmissionInFlight reports a submission racing one still in progress.
	ErrSubmissionInFlight = errors.New("enrollment submission in progress")
	// ErrNotReady reports a submission without a loaded configuration.
	ErrNotReady = errors.New("plan configuration not ready")
)

// Kind classifies a submission result.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindAlreadySubmitted Kind = "already_submitted"
	KindFailed           Kind = "failed"
)

// Result is the outcome of a submission.
type Result struct {
	Kind         Kind      `json:"kind"`
	Message      string    `json:"message"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at,omitempty"`
}

// Request carries everything a sink needs to record an enrollment. The
// selection is sent as-is, partial or not.
type Request struct {
	TenantID    uint64
	CorporateID string
	EmployeeID  string
	SessionID   string
	Key         planconfig.Key
	Selection   *form.Selection
	Summary     summary.View
}

// Submitter records an enrollment.
type Submitter interface {
	Submit(ctx context.Context, req Request) (Result, error)
}

func successMessage(msg string) string {
	if msg == "" {
		return DefaultSuccessMessage
	}
	return msg
}
