package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dengjianbo3/magellan/pkg/models"
)

// MemoryStore keeps session records in a map. Terminal records are
// evicted by a timer once their retention TTL elapses.
type MemoryStore struct {
	mu     sync.RWMutex
	recs   map[string]*models.SessionRecord
	timers map[string]*time.Timer
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs:   make(map[string]*models.SessionRecord),
		timers: make(map[string]*time.Timer),
	}
}

func (s *MemoryStore) Put(_ context.Context, rec *models.SessionRecord) error {
	cp, err := copyRecord(rec)
	if err != nil {
		return err
	}
	touch(cp)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.SessionRecord, error) {
	s.mu.RLock()
	rec, ok := s.recs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec)
}

func (s *MemoryStore) List(_ context.Context) ([]*models.SessionRecord, error) {
	s.mu.RLock()
	out := make([]*models.SessionRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		cp, err := copyRecord(rec)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		out = append(out, cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkTerminal(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return ErrNotFound
	}
	// Re-arming replaces any previous countdown.
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.recs, id)
		delete(s.timers, id)
	})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.recs, id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	return nil
}

// copyRecord deep-copies through JSON. Records carry arbitrary step
// results, so a field-by-field copy would drift; the marshal cost is
// irrelevant at session-store rates.
func copyRecord(rec *models.SessionRecord) (*models.SessionRecord, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var cp models.SessionRecord
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
