// Package store persists session records. Two backends exist: an
// in-process map for single-instance deployments and tests, and Redis
// for deployments that need sessions to survive a restart. TTL handling
// is the backend's job; callers only mark records terminal.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dengjianbo3/magellan/pkg/models"
)

// ErrNotFound is returned when no record exists for a session ID,
// including records already expired by TTL.
var ErrNotFound = errors.New("session not found")

// SessionStore is the persistence contract used by the session manager.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Put writes the full record, replacing any existing one.
	Put(ctx context.Context, rec *models.SessionRecord) error

	// Get returns a copy of the record.
	Get(ctx context.Context, id string) (*models.SessionRecord, error)

	// List returns every live record, newest first.
	List(ctx context.Context) ([]*models.SessionRecord, error)

	// MarkTerminal stamps the record with its final state and starts
	// the retention countdown; the record expires after ttl.
	MarkTerminal(ctx context.Context, id string, ttl time.Duration) error

	// Delete removes the record immediately.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

func touch(rec *models.SessionRecord) {
	rec.UpdatedAt = time.Now().UTC()
}
