package document

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/mohae/deepcopy"
)

// writeGuard is the single-writer token shared by every Store of a Document.
// Acquisition never blocks: a second writer fails fast.
type writeGuard struct {
	busy atomic.Bool
}

func (g *writeGuard) acquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *writeGuard) release() {
	g.busy.Store(false)
}

// Store owns exactly one Model and is the only gate through which it changes.
//
// Reads go through Model, which hands out a copy. Writes go through
// ChangeState, which lends the live Model to a mutator for the duration of
// the call and then fires the optional post-mutation hook.
type Store struct {
	model        domain.Model
	postMutation func()
	logger       *slog.Logger

	mu    sync.Mutex // guards the binding below
	guard *writeGuard
	owner *Document
	key   string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPostMutation registers a callback invoked after every successful
// state change.
func WithPostMutation(fn func()) StoreOption {
	return func(s *Store) {
		s.postMutation = fn
	}
}

// WithStoreLogger configures a logger for the Store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store that takes ownership of model.
// Returns domain.ErrNilModel if model is nil, including typed nil pointers,
// and domain.ErrModelNotCopyable if a Model without Clone keeps state in
// unexported fields.
func NewStore(model domain.Model, opts ...StoreOption) (*Store, error) {
	if isNil(model) {
		return nil, domain.ErrNilModel
	}
	if _, ok := model.(domain.Cloner); !ok {
		if field, hidden := unexportedField(reflect.TypeOf(model), map[reflect.Type]bool{}); hidden {
			return nil, fmt.Errorf("%w: %T.%s", domain.ErrModelNotCopyable, model, field)
		}
	}
	s := &Store{
		model:  model,
		logger: logging.NewNop(),
		guard:  &writeGuard{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustStore is like NewStore but panics on error.
// Intended for package-level fixtures and tests.
func MustStore(model domain.Model, opts ...StoreOption) *Store {
	s, err := NewStore(model, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// ChangeState runs mutator synchronously with the live Model.
//
// If mutator returns nil, the post-mutation hook (if any) runs once afterwards.
// If mutator returns an error, that error is returned as is and the hook is
// skipped; changes already applied by the mutator are not rolled back.
// While a mutator runs, ChangeState on this Store or on any Store of the same
// Document returns domain.ErrReentrantMutation without calling its mutator.
func (s *Store) ChangeState(mutator func(domain.Model) error) error {
	if mutator == nil {
		return nil
	}

	guard, owner, key := s.binding()
	if !guard.acquire() {
		s.logger.Debug("State change rejected", "store", key)
		return fmt.Errorf("%w (store %q)", domain.ErrReentrantMutation, key)
	}

	start := time.Now()
	err := s.apply(guard, mutator)
	if owner != nil {
		owner.emitMutation(key, start, err)
	}
	if err != nil {
		s.logger.Debug("State change failed", "store", key, "err", err)
		return err
	}

	s.logger.Debug("State changed", "store", key, "duration", time.Since(start))
	if s.postMutation != nil {
		s.postMutation()
	}
	return nil
}

// apply holds the write token only while mutator runs, so a panic in the
// mutator still releases it.
func (s *Store) apply(guard *writeGuard, mutator func(domain.Model) error) error {
	defer guard.release()
	return mutator(s.model)
}

// Model returns a read-only view of the owned Model: an independent copy
// reflecting every state change applied so far. Changing the copy has no
// effect on the Store.
func (s *Store) Model() domain.Model {
	return cloneModel(s.model)
}

// Key returns the key under which the Store is attached to a Document, or
// an empty string for a standalone Store.
func (s *Store) Key() string {
	_, _, key := s.binding()
	return key
}

// String identifies the Store and summarizes its Model.
func (s *Store) String() string {
	return fmt.Sprintf("Store { model: %s }", s.model.String())
}

func (s *Store) binding() (*writeGuard, *Document, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard, s.owner, s.key
}

// attach binds s to doc under key. A Store lives under one key of one
// Document; re-adding it under the same key is a no-op.
func (s *Store) attach(doc *Document, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != nil && s.owner != doc {
		return fmt.Errorf("%w: %q belongs to another document", domain.ErrStoreAttached, key)
	}
	if s.owner == doc && s.key != key {
		return fmt.Errorf("%w: already held under %q, cannot add as %q", domain.ErrStoreAttached, s.key, key)
	}
	s.owner = doc
	s.key = key
	s.guard = doc.guard
	return nil
}

func (s *Store) detach(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != doc {
		return
	}
	s.owner = nil
	s.key = ""
	s.guard = &writeGuard{}
}

// Mutate is ChangeState with a checked conversion to the concrete Model type.
// Returns domain.ErrModelType (without running fn) if the Store holds
// something else.
func Mutate[M domain.Model](s *Store, fn func(M) error) error {
	if _, ok := s.model.(M); !ok {
		return modelTypeError[M](s.model)
	}
	return s.ChangeState(func(m domain.Model) error {
		return fn(m.(M))
	})
}

// View returns the read-only view of the Store as the concrete Model type.
func View[M domain.Model](s *Store) (M, error) {
	view, ok := s.Model().(M)
	if !ok {
		var zero M
		return zero, modelTypeError[M](s.model)
	}
	return view, nil
}

func modelTypeError[M domain.Model](got domain.Model) error {
	want := reflect.TypeOf((*M)(nil)).Elem()
	return fmt.Errorf("%w: want %s, store holds %T", domain.ErrModelType, want, got)
}

func cloneModel(m domain.Model) domain.Model {
	if c, ok := m.(domain.Cloner); ok {
		return c.Clone()
	}
	return deepcopy.Copy(m).(domain.Model)
}

var timeType = reflect.TypeOf(time.Time{})

// unexportedField reports the first unexported struct field reachable from t.
// A reflective copy cannot see such fields. time.Time is copied whole.
func unexportedField(t reflect.Type, seen map[reflect.Type]bool) (string, bool) {
	if seen[t] {
		return "", false
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return unexportedField(t.Elem(), seen)
	case reflect.Map:
		if name, ok := unexportedField(t.Key(), seen); ok {
			return name, true
		}
		return unexportedField(t.Elem(), seen)
	case reflect.Struct:
		if t == timeType {
			return "", false
		}
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				return f.Name, true
			}
			if name, ok := unexportedField(f.Type, seen); ok {
				return f.Name + "." + name, true
			}
		}
	}
	return "", false
}

func isNil(m domain.Model) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// emitMutation is a no-op unless the Document was given an OnMutation hook.
func (d *Document) emitMutation(key string, start time.Time, err error) {
	if d.hooks.OnMutation == nil {
		return
	}
	d.hooks.OnMutation(context.Background(), &domain.MutationEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventMutation},
		StoreKey:  key,
		Duration:  time.Since(start),
		Err:       err,
	})
}
