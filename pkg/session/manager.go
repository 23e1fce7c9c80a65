package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/ports"
	"github.com/aretw0/docket/pkg/snapshot"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to each session ID and persists documents
// through a SnapshotStore. Lock entries exist only while in use.
type Manager struct {
	store ports.SnapshotStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

type Option func(*Manager)

// WithLocker also takes a cross-process lock around every operation.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) { m.locker = locker }
}

// WithLockTTL sets the expiry of distributed locks. Non-positive values are ignored.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(store ports.SnapshotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock blocks until sessionID is free in this process and returns the
// matching unlock. The entry is dropped when its last user unlocks.
func (m *Manager) lock(sessionID string) (unlock func()) {
	m.mu.Lock()
	entry := m.locks[sessionID]
	if entry == nil {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		m.mu.Lock()
		if entry.refs--; entry.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// Load retrieves an existing snapshot from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snap, err
}

// Save persists the snapshot.
func (m *Manager) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, snap)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// Sync captures doc and saves it under sessionID.
func (m *Manager) Sync(ctx context.Context, doc *document.Document, sessionID string) error {
	snap, err := snapshot.Capture(doc, sessionID)
	if err != nil {
		return err
	}
	if err := m.Save(ctx, sessionID, snap); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	m.logger.Debug("Session saved", "session_id", sessionID, "stores", len(snap.Stores))
	return nil
}

// Resume loads the snapshot for sessionID into doc.
// It reports false, leaving doc untouched, when the session does not exist.
func (m *Manager) Resume(ctx context.Context, doc *document.Document, sessionID string) (bool, error) {
	snap, err := m.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if err := snapshot.Restore(ctx, doc, snap); err != nil {
		return false, err
	}
	m.logger.Debug("Session resumed", "session_id", sessionID, "stores", len(snap.Stores))
	return true, nil
}

// WithLock runs fn while holding the session lock, and the distributed
// lock when one is configured.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	unlock := m.lock(sessionID)
	defer unlock()

	if m.locker == nil {
		return fn(ctx)
	}
	release, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Distributed lock not released, it will expire",
				"session_id", sessionID, "ttl", m.lockTTL, "err", err)
		}
	}()
	return fn(ctx)
}
