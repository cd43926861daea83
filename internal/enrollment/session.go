package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/corpbenefits/benefits-platform/internal/metrics"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/corpbenefits/benefits-platform/internal/summary"
	log "github.com/sirupsen/logrus"
)

// LoadStatus is the state of the session's configuration load.
type LoadStatus string

const (
	StatusAbsent  LoadStatus = "absent"
	StatusLoading LoadStatus = "loading"
	StatusReady   LoadStatus = "ready"
	StatusError   LoadStatus = "error"
)

// LoadState reports the latest issued load and its status.
type LoadState struct {
	Status     LoadStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	Generation uint64     `json:"generation"`
}

// BundleLoader loads plan configuration bundles.
type BundleLoader interface {
	Load(ctx context.Context, key planconfig.Key) (*planconfig.Bundle, error)
}

// Session is one employee's enrollment page. It owns the key, the loaded
// configuration, the selection and the submission result.
type Session struct {
	ID          string
	TenantID    uint64
	CorporateID string
	EmployeeID  string
	CreatedAt   time.Time

	loader BundleLoader
	nowFn  func() time.Time

	mu         sync.Mutex
	key        planconfig.Key
	hasKey     bool
	generation uint64
	state      LoadState
	effective  *planconfig.PlanConfiguration
	selection  *form.Selection
	result     *Result
	submitting bool
	lastSeen   time.Time
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID             string                        `json:"id"`
	CorporateID    string                        `json:"corporate_id"`
	Key            *planconfig.Key               `json:"key,omitempty"`
	State          LoadState                     `json:"state"`
	Loading        bool                          `json:"loading"`
	Config         *planconfig.PlanConfiguration `json:"config"`
	Selection      *form.Selection               `json:"selection"`
	Result         *Result                       `json:"result,omitempty"`
	SubmitDisabled bool                          `json:"submit_disabled"`
}

func newSession(id string, tenantID uint64, corporateID, employeeID string, loader BundleLoader, nowFn func() time.Time) *Session {
	now := nowFn()
	return &Session{
		ID:          id,
		TenantID:    tenantID,
		CorporateID: corporateID,
		EmployeeID:  employeeID,
		CreatedAt:   now,
		loader:      loader,
		nowFn:       nowFn,
		state:       LoadState{Status: StatusAbsent},
		selection:   form.NewSelection(nil),
		lastSeen:    now,
	}
}

func (s *Session) touch() {
	s.lastSeen = s.nowFn()
}

// SetKey switches the session to key and loads its configuration. Every call
// issues a new generation; a response that arrives after a newer call was
// issued is dropped. The selection is reset when the configuration changes.
func (s *Session) SetKey(ctx context.Context, key planconfig.Key) LoadState {
	key.CorporateID = s.CorporateID

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.key = key
	s.hasKey = true
	s.state = LoadState{Status: StatusLoading, Generation: gen}
	s.touch()
	s.mu.Unlock()

	bundle, errLoad := s.loader.Load(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		metrics.ObserveStaleLoad()
		log.WithFields(log.Fields{"session": s.ID, "generation": gen, "latest": s.generation}).Debug("enrollment: drop stale load")
		return s.state
	}

	switch {
	case errLoad == nil:
		s.effective = bundle.Effective()
		s.state = LoadState{Status: StatusReady, Generation: gen}
	case errors.Is(errLoad, planconfig.ErrNotFound):
		s.effective = nil
		s.state = LoadState{Status: StatusAbsent, Generation: gen}
	default:
		s.effective = nil
		s.state = LoadState{Status: StatusError, Error: errLoad.Error(), Generation: gen}
	}
	s.selection = form.NewSelection(s.effective)
	return s.state
}

// SetProfile records the premium lookup inputs.
func (s *Session) SetProfile(ageBand string, familySize int) error {
	if familySize < 0 {
		return fmt.Errorf("%w: family size must be >= 0", form.ErrInvalidChange)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.AgeBand = ageBand
	s.selection.FamilySize = familySize
	s.touch()
	return nil
}

// Apply routes change to its component.
func (s *Session) Apply(change form.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.state.Status == StatusLoading {
		return ErrNotReady
	}
	return form.ApplyChange(s.effective, s.selection, change)
}

// Schema renders the form for the current state.
func (s *Session) Schema(errs form.ValidationErrors) form.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return form.Render(s.effective, s.selection, errs)
}

// Summary summarizes the current selection.
func (s *Session) Summary() summary.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return summary.Summarize(s.effective, s.selection)
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:             s.ID,
		CorporateID:    s.CorporateID,
		State:          s.state,
		Loading:        s.state.Status == StatusLoading,
		Config:         s.effective.Clone(),
		Selection:      s.selection.Clone(),
		SubmitDisabled: s.submitDisabledLocked(),
	}
	if s.hasKey {
		key := s.key
		snap.Key = &key
	}
	if s.result != nil {
		result := *s.result
		snap.Result = &result
	}
	return snap
}

func (s *Session) submitDisabledLocked() bool {
	return s.submitting || (s.result != nil && s.result.Kind == KindSuccess)
}

// Submit sends the selection at most once. After a success every further
// call returns an already_submitted result and ErrAlreadySubmitted. A failed
// submission leaves the session submittable.
func (s *Session) Submit(ctx context.Context, submitter Submitter) (Result, error) {
	s.mu.Lock()
	s.touch()
	if s.result != nil && s.result.Kind == KindSuccess {
		prior := Result{Kind: KindAlreadySubmitted, Message: s.result.Message, EnrollmentID: s.result.EnrollmentID}
		s.mu.Unlock()
		metrics.ObserveSubmission(string(KindAlreadySubmitted))
		return prior, ErrAlreadySubmitted
	}
	if s.submitting {
		s.mu.Unlock()
		return Result{Kind: KindAlreadySubmitted, Message: "Enrollment submission in progress."}, ErrSubmissionInFlight
	}
	if s.state.Status != StatusReady || s.effective == nil {
		s.mu.Unlock()
		return Result{Kind: KindFailed, Message: form.NoConfigurationMessage}, ErrNotReady
	}
	req := Request{
		TenantID:    s.TenantID,
		CorporateID: s.CorporateID,
		EmployeeID:  s.EmployeeID,
		SessionID:   s.ID,
		Key:         s.key,
		Selection:   s.selection.Clone(),
		Summary:     summary.Summarize(s.effective, s.selection),
	}
	s.submitting = true
	s.mu.Unlock()

	result, errSubmit := submitter.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if errors.Is(errSubmit, ErrAlreadySubmitted) {
		result = Result{Kind: KindSuccess, Message: DefaultSuccessMessage}
		s.result = &result
		metrics.ObserveSubmission(string(KindAlreadySubmitted))
		return Result{Kind: KindAlreadySubmitted, Message: result.Message}, ErrAlreadySubmitted
	}
	if errSubmit != nil {
		metrics.ObserveSubmission(string(KindFailed))
		log.WithError(errSubmit).WithField("session", s.ID).Warn("enrollment: submission failed")
		return Result{Kind: KindFailed, Message: errSubmit.Error()}, errSubmit
	}
	result.Kind = KindSuccess
	result.Message = successMessage(result.Message)
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = s.nowFn().UTC()
	}
	s.result = &result
	metrics.ObserveSubmission(string(KindSuccess))
	return result, nil
}
