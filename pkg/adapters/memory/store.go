// Package memory keeps snapshots in process memory. Useful for tests and for
// hosts that only need session isolation within one run.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/docket/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Store implements ports.SnapshotStore. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.Snapshot
}

func NewStore() *Store {
	return &Store{snapshots: make(map[string]*domain.Snapshot)}
}

// Save keeps a private copy of snap.
func (s *Store) Save(_ context.Context, sessionID string, snap *domain.Snapshot) error {
	kept := detach(snap)
	s.mu.Lock()
	s.snapshots[sessionID] = kept
	s.mu.Unlock()
	return nil
}

// Load returns a copy the caller may modify freely.
func (s *Store) Load(_ context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return detach(snap), nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.snapshots, sessionID)
	s.mu.Unlock()
	return nil
}

// List returns session IDs in lexical order.
func (s *Store) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.snapshots)), nil
}

func detach(snap *domain.Snapshot) *domain.Snapshot {
	return deepcopy.Copy(snap).(*domain.Snapshot)
}
