// Package session owns the lifecycle of due-diligence sessions: the
// live registry, capacity limits, persistence, event fan-out, human
// review resumption, and cancellation. The workflow engine drives a
// Session through its states; everything else observes it here.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dengjianbo3/magellan/pkg/events"
	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/store"
)

var (
	// ErrCapacity is returned when MAX_CONCURRENT_SESSIONS live
	// sessions already exist.
	ErrCapacity = errors.New("session capacity reached")

	// ErrInvalidState is returned for operations that do not apply to
	// the session's current state, e.g. resuming a session that is not
	// awaiting human review.
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrNotFound aliases the store error so callers need only one.
	ErrNotFound = store.ErrNotFound
)

// Session is one live due-diligence run. The workflow engine is the
// only writer of the record; Resume and Cancel arrive from the API on
// other goroutines.
type Session struct {
	ID  string
	Req *models.CreateDiligenceRequest

	bus *events.Bus
	st  store.SessionStore

	mu       sync.Mutex
	rec      *models.SessionRecord
	resumed  bool
	resumeCh chan string
}

// Bus exposes the session event stream.
func (s *Session) Bus() *events.Bus { return s.bus }

// State returns the current workflow state.
func (s *Session) State() models.WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.State
}

// Update mutates the record under the session lock and persists the
// result. The callback must not retain the record.
func (s *Session) Update(ctx context.Context, fn func(*models.SessionRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.rec)
	return s.st.Put(ctx, s.rec)
}

// Publish emits an event on the session stream.
func (s *Session) Publish(ev events.Event) {
	s.bus.Publish(ev)
}

// AwaitReview blocks until a human review arrives via Resume or the
// context ends. The returned string is the reviewer's note.
func (s *Session) AwaitReview(ctx context.Context) (string, error) {
	select {
	case note := <-s.resumeCh:
		return note, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resume delivers the review note exactly once. The caller must have
// verified the session is awaiting review.
func (s *Session) resume(note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resumed {
		return ErrInvalidState
	}
	s.resumed = true
	s.resumeCh <- note
	return nil
}
