package document

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/domain"
)

// HandlerFunc implements one action type. It receives the whole Document so
// a single action can coordinate changes across several Stores, and must
// route every change through Store.ChangeState.
type HandlerFunc func(ctx context.Context, doc *Document, payload any) error

// ActionDef binds an action type to its handler at registration time.
type ActionDef struct {
	Type    string
	Handler HandlerFunc
}

// Document is the top-level owner of named Stores and action handlers, and
// the entry point for every state change.
type Document struct {
	mu       sync.RWMutex
	stores   map[string]*Store
	handlers map[string]HandlerFunc

	guard   *writeGuard
	initial map[string]*Store
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
}

// Option configures a Document.
type Option func(*Document)

// WithStores seeds the Document with stores. The Document takes ownership.
func WithStores(stores map[string]*Store) Option {
	return func(d *Document) {
		d.initial = stores
	}
}

// WithLogger sets a structured logger for the Document.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Document) {
		d.hooks = hooks
	}
}

// New creates a Document, attaching any stores given via WithStores.
// Returns domain.ErrStoreAttached if one of them belongs to another Document.
func New(opts ...Option) (*Document, error) {
	d := &Document{
		stores:   make(map[string]*Store),
		handlers: make(map[string]HandlerFunc),
		guard:    &writeGuard{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	keys := make([]string, 0, len(d.initial))
	for k := range d.initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := d.AddStore(k, d.initial[k]); err != nil {
			return nil, err
		}
	}
	d.initial = nil
	return d, nil
}

// AddStore attaches store under key, replacing (and releasing) any Store
// previously held under that key.
func (d *Document) AddStore(key string, store *Store) error {
	if store == nil {
		return fmt.Errorf("store %q: %w", key, domain.ErrNilModel)
	}
	if err := store.attach(d, key); err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.stores[key]
	d.stores[key] = store
	d.mu.Unlock()

	if prev != nil && prev != store {
		prev.detach(d)
	}
	d.logger.Debug("Store attached", "store", key)
	return nil
}

// StoreAt looks up the Store registered under key.
// An unknown key is not an error: it reports false.
func (d *Document) StoreAt(key string) (*Store, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.stores[key]
	return s, ok
}

// StoreKeys returns the keys of every attached Store, sorted.
func (d *Document) StoreKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.stores))
	for k := range d.stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register binds def.Handler to def.Type.
// Registering a type again replaces the previous handler.
func (d *Document) Register(def ActionDef) {
	d.mu.Lock()
	d.handlers[def.Type] = def.Handler
	d.mu.Unlock()
	d.logger.Debug("Action registered", "type", def.Type)
}

// Handle is shorthand for Register(ActionDef{Type: actionType, Handler: fn}).
func (d *Document) Handle(actionType string, fn HandlerFunc) {
	d.Register(ActionDef{Type: actionType, Handler: fn})
}

// ActionTypes returns every registered action type, sorted.
func (d *Document) ActionTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Dispatch runs the handler registered for action.Type with action.Payload.
//
// It reports false, with no side effects, when no handler is registered.
// Otherwise the handler runs synchronously before Dispatch returns, and its
// error (for example a failed mutation) is returned alongside true.
func (d *Document) Dispatch(ctx context.Context, action domain.Action) (bool, error) {
	d.mu.RLock()
	handler, ok := d.handlers[action.Type]
	d.mu.RUnlock()

	start := time.Now()
	if !ok {
		d.logger.Debug("Action not handled", "type", action.Type)
		d.emitDispatch(ctx, action.Type, false, start, nil)
		return false, nil
	}

	var err error
	if handler != nil {
		err = handler(ctx, d, action.Payload)
	}
	d.emitDispatch(ctx, action.Type, true, start, err)
	if err != nil {
		d.logger.Debug("Action failed", "type", action.Type, "err", err)
	}
	return true, err
}

// String summarizes the Document by its store count.
func (d *Document) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fmt.Sprintf("Document with %d stores", len(d.stores))
}

func (d *Document) emitDispatch(ctx context.Context, actionType string, handled bool, start time.Time, err error) {
	if d.hooks.OnDispatch == nil {
		return
	}
	d.hooks.OnDispatch(ctx, &domain.DispatchEvent{
		EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventDispatch},
		ActionType: actionType,
		Handled:    handled,
		Duration:   time.Since(start),
		Err:        err,
	})
}
