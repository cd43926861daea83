package enrollment

import (
	"sync"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/metrics"
	"github.com/google/uuid"
)

// Sessions keeps enrollment sessions in memory and expires idle ones.
type Sessions struct {
	loader BundleLoader
	ttl    time.Duration
	nowFn  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions constructs a session registry.
func NewSessions(loader BundleLoader, ttl time.Duration) *Sessions {
	return &Sessions{
		loader:   loader,
		ttl:      ttl,
		nowFn:    time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session for an employee of a tenant.
func (r *Sessions) Create(tenantID uint64, corporateID, employeeID string) *Session {
	session := newSession(uuid.NewString(), tenantID, corporateID, employeeID, r.loader, r.nowFn)
	r.mu.Lock()
	r.sessions[session.ID] = session
	count := len(r.sessions)
	r.mu.Unlock()
	metrics.SetActiveSessions(count)
	return session
}

// Get returns the session with id.
func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL that are not
// submitting, and returns how many were removed.
func (r *Sessions) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.nowFn().Add(-r.ttl)
	r.mu.Lock()
	removed := 0
	for id, session := range r.sessions {
		session.mu.Lock()
		idle := session.lastSeen.Before(cutoff) && !session.submitting
		session.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()
	metrics.SetActiveSessions(count)
	return removed
}
