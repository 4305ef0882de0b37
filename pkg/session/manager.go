package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dengjianbo3/magellan/pkg/config"
	"github.com/dengjianbo3/magellan/pkg/events"
	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/store"
)

// busGraceDefault is how long a terminal session's event bus stays open
// so late subscribers can still fetch the final events.
const busGraceDefault = 5 * time.Minute

// Runner drives a session from INIT to a terminal state. Implemented by
// the workflow engine; injected so this package stays free of workflow
// semantics.
type Runner interface {
	Run(ctx context.Context, s *Session)
}

// Manager is the session registry. It enforces the concurrency limit,
// owns per-session event buses and cancellation, and persists records
// through the configured store.
type Manager struct {
	cfg    *config.Config
	st     store.SessionStore
	runner Runner

	mu      sync.Mutex
	live    map[string]*liveEntry
	running int

	busGrace time.Duration
	wg       sync.WaitGroup
}

type liveEntry struct {
	session *Session
	cancel  context.CancelFunc
	done    bool
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, st store.SessionStore, runner Runner) *Manager {
	return &Manager{
		cfg:      cfg,
		st:       st,
		runner:   runner,
		live:     make(map[string]*liveEntry),
		busGrace: busGraceDefault,
	}
}

// Create registers a new session and starts its workflow in the
// background. It returns ErrCapacity when the concurrency limit is
// reached; the caller should surface 429.
func (m *Manager) Create(ctx context.Context, req *models.CreateDiligenceRequest) (*Session, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	rec := &models.SessionRecord{
		ID:          id,
		CompanyName: req.CompanyName,
		UserID:      req.UserID,
		State:       models.StateInit,
		Context:     &models.SessionContext{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s := &Session{
		ID:       id,
		Req:      req,
		bus:      events.NewBus(id),
		st:       m.st,
		rec:      rec,
		resumeCh: make(chan string, 1),
	}

	m.mu.Lock()
	if m.running >= m.cfg.MaxConcurrentSessions {
		m.mu.Unlock()
		return nil, ErrCapacity
	}
	m.running++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.live[id] = &liveEntry{session: s, cancel: cancel}
	m.mu.Unlock()

	if err := m.st.Put(ctx, rec); err != nil {
		m.release(id)
		return nil, err
	}

	slog.Info("Session created",
		"session_id", id, "company", req.CompanyName, "user_id", req.UserID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.runner.Run(runCtx, s)
		m.finish(id, s)
	}()

	return s, nil
}

// Get returns the persisted snapshot for a session.
func (m *Manager) Get(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	rec, err := m.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return snapshot(rec), nil
}

// List returns snapshots for every known session, newest first.
func (m *Manager) List(ctx context.Context) ([]*models.SessionSnapshot, error) {
	recs, err := m.st.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SessionSnapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, snapshot(rec))
	}
	return out, nil
}

// Subscribe attaches to a session's event stream, replaying everything
// after sinceSeq first.
func (m *Manager) Subscribe(id string, sinceSeq int) (<-chan events.Event, func(), error) {
	m.mu.Lock()
	entry, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	ch, cancel := entry.session.Bus().Subscribe(sinceSeq)
	return ch, cancel, nil
}

// Resume delivers a human review note to a session suspended in
// HITL_REVIEW. A second resume, or a resume in any other state,
// returns ErrInvalidState.
func (m *Manager) Resume(ctx context.Context, id, note string) error {
	m.mu.Lock()
	entry, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		// Fall back to the store to distinguish missing from finished.
		if _, err := m.st.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	if entry.session.State() != models.StateHITLReview {
		return ErrInvalidState
	}
	return entry.session.resume(note)
}

// Cancel aborts a running session. The workflow observes the context
// cancellation and records the ERROR terminal state itself.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	entry, ok := m.live[id]
	if !ok || entry.done {
		m.mu.Unlock()
		if !ok {
			if _, err := m.st.Get(ctx, id); err != nil {
				return err
			}
		}
		return ErrInvalidState
	}
	cancel := entry.cancel
	m.mu.Unlock()

	slog.Info("Session cancel requested", "session_id", id)
	cancel()
	return nil
}

// Running reports how many sessions currently hold a concurrency slot.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Shutdown cancels every live session and waits for their workflows to
// record terminal states, or for the context to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for id, entry := range m.live {
		if !entry.done {
			slog.Info("Cancelling session for shutdown", "session_id", id)
			entry.cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish releases the concurrency slot once a workflow returns, starts
// the record's retention countdown, and closes the bus after a grace
// window for late subscribers.
func (m *Manager) finish(id string, s *Session) {
	m.mu.Lock()
	if entry, ok := m.live[id]; ok {
		entry.done = true
	}
	m.running--
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.st.MarkTerminal(ctx, id, m.cfg.SessionTTL); err != nil {
		slog.Warn("Failed to start session retention countdown",
			"session_id", id, "error", err)
	}

	time.AfterFunc(m.busGrace, func() {
		s.Bus().Close()
		m.mu.Lock()
		delete(m.live, id)
		m.mu.Unlock()
	})

	slog.Info("Session finished", "session_id", id, "state", s.State())
}

func snapshot(rec *models.SessionRecord) *models.SessionSnapshot {
	return &models.SessionSnapshot{
		ID:          rec.ID,
		CompanyName: rec.CompanyName,
		State:       rec.State,
		Steps:       rec.Steps,
		Context:     rec.Context,
		ErrorReason: rec.ErrorReason,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// release undoes a reservation made in Create when persistence fails
// before the workflow starts.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.live[id]; ok {
		entry.cancel()
		delete(m.live, id)
	}
	m.running--
}
