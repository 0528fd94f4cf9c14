package call

import (
	"sync"

	"github.com/satriadi/bellhop/pkg/errorsx"
)

type activeCallError struct{ id string }

func (e activeCallError) Error() string {
	return "a call is already active: " + e.id
}

// Registry enforces one live call at a time. Acquire fails while a session
// holds the slot; Release frees it.
type Registry struct {
	mu     sync.Mutex
	active *Session
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Acquire claims the single call slot for the session.
func (r *Registry) Acquire(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return errorsx.Wrap(activeCallError{id: r.active.ID}, errorsx.ReasonCallActive)
	}
	r.active = s
	return nil
}

// Release frees the slot. Releasing a session that does not hold it is a
// no-op so teardown can release unconditionally.
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil && (s == nil || r.active == s) {
		r.active = nil
	}
}

// Active returns the current session, or nil.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}
