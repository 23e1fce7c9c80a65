package loam

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/loam"
)

// DefaultFolder is the vault folder holding snapshot notes.
const DefaultFolder = "sessions"

// Store implements ports.SnapshotStore on top of a Loam vault.
// Each session is one markdown note whose frontmatter carries the snapshot
// and whose body summarizes it for humans.
type Store struct {
	Repo   *loam.TypedRepository[SnapshotMetadata]
	folder string
}

// Option configures a Store.
type Option func(*Store)

// WithFolder sets the vault folder used for snapshot notes.
func WithFolder(folder string) Option {
	return func(s *Store) {
		s.folder = strings.Trim(folder, "/")
	}
}

// New creates a new Loam adapter over an existing typed repository.
func New(repo *loam.TypedRepository[SnapshotMetadata], opts ...Option) *Store {
	s := &Store{
		Repo:   repo,
		folder: DefaultFolder,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open initializes (or reuses) a vault at path without versioning and
// returns a Store over it.
func Open(vaultPath string, opts ...Option) (*Store, error) {
	repo, err := loam.Init(vaultPath, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to init loam vault at %s: %w", vaultPath, err)
	}
	return New(loam.NewTypedRepository[SnapshotMetadata](repo), opts...), nil
}

// noteID always carries the extension so session IDs containing dots are
// not mistaken for file types.
func (s *Store) noteID(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("sessionID cannot be empty")
	}
	if strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid sessionID %q", sessionID)
	}
	return path.Join(s.folder, sessionID) + ".md", nil
}

// Save writes the snapshot as a note.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	id, err := s.noteID(sessionID)
	if err != nil {
		return err
	}

	err = s.Repo.Save(ctx, &loam.DocumentModel[SnapshotMetadata]{
		ID:      id,
		Content: summarize(sessionID, snap),
		Data: SnapshotMetadata{
			SnapshotID: snap.ID,
			TakenAt:    snap.TakenAt,
			Stores:     snap.Stores,
			Kind:       kindSnapshot,
		},
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", sessionID, err)
	}
	return nil
}

// Load reads the snapshot note for sessionID.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	id, err := s.noteID(sessionID)
	if err != nil {
		return nil, err
	}

	doc, err := s.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("loam get failed for %s: %w", sessionID, err)
	}
	if doc.Data.Kind != kindSnapshot {
		return nil, fmt.Errorf("note %s is not a snapshot: %w", id, domain.ErrSnapshotNotFound)
	}

	return &domain.Snapshot{
		ID:      doc.Data.SnapshotID,
		TakenAt: doc.Data.TakenAt,
		Stores:  doc.Data.Stores,
	}, nil
}

// Delete removes the note. A missing note is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	id, err := s.noteID(sessionID)
	if err != nil {
		return err
	}

	if _, err := s.Repo.Get(ctx, id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loam get failed for %s: %w", sessionID, err)
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("loam delete failed for %s: %w", sessionID, err)
	}
	return nil
}

// List returns the session IDs of every snapshot note in the folder, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	prefix := s.folder + "/"
	sessions := []string{}
	for _, doc := range docs {
		if doc.Data.Kind != kindSnapshot || !strings.HasPrefix(doc.ID, prefix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(doc.ID, prefix), ".md")
		if strings.Contains(name, "/") {
			continue
		}
		sessions = append(sessions, name)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func summarize(sessionID string, snap *domain.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", sessionID)
	if !snap.TakenAt.IsZero() {
		fmt.Fprintf(&b, "Taken at %s.\n\n", snap.TakenAt.Format("2006-01-02 15:04:05 MST"))
	}
	for _, k := range snap.Keys() {
		fmt.Fprintf(&b, "- `%s`\n", k)
	}
	return b.String()
}
