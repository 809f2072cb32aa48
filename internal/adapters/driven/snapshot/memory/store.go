// Package memory provides an in-memory snapshot store for tests.
package memory

import (
	"context"
	"sync"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SnapshotStore = (*Store)(nil)

// Store is an in-memory implementation of driven.SnapshotStore.
type Store struct {
	mu   sync.RWMutex
	snap *driven.Snapshot
}

// NewStore creates a new in-memory snapshot store.
func NewStore() *Store {
	return &Store{}
}

// Save replaces the stored snapshot.
func (s *Store) Save(_ context.Context, snap driven.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := snap
	copied.Payload = append([]byte(nil), snap.Payload...)
	s.snap = &copied
	return nil
}

// Load returns the stored snapshot.
func (s *Store) Load(_ context.Context) (*driven.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, domain.ErrNotFound
	}
	copied := *s.snap
	return &copied, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}
