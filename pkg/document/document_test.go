package document_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addAnimal struct {
	Species string `json:"species"`
}

func newZooDocument(t *testing.T, hook func()) (*document.Document, *document.Store) {
	t.Helper()
	var opts []document.StoreOption
	if hook != nil {
		opts = append(opts, document.WithPostMutation(hook))
	}
	zoo := document.MustStore(&Zoo{}, opts...)
	doc, err := document.New(document.WithStores(map[string]*document.Store{"zoo": zoo}))
	require.NoError(t, err)

	doc.Handle("addAnimal", func(ctx context.Context, d *document.Document, payload any) error {
		p, err := domain.DecodePayload[addAnimal](payload)
		if err != nil {
			return err
		}
		store, ok := d.StoreAt("zoo")
		if !ok {
			return nil
		}
		return document.Mutate(store, func(z *Zoo) error {
			z.Animals = append(z.Animals, p.Species)
			return nil
		})
	})
	return doc, zoo
}

func TestDispatch_HandledAction(t *testing.T) {
	hooks := 0
	doc, zoo := newZooDocument(t, func() { hooks++ })

	handled, err := doc.Dispatch(context.Background(), domain.NewAction("addAnimal", map[string]any{"species": "Giraffe"}))

	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, hooks)
	assert.Equal(t, []string{"Giraffe"}, zoo.Model().(*Zoo).Animals)
}

func TestDispatch_UnknownAction(t *testing.T) {
	hooks := 0
	doc, zoo := newZooDocument(t, func() { hooks++ })

	handled, err := doc.Dispatch(context.Background(), domain.NewAction("feedAnimals", nil))

	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, 0, hooks)
	assert.Empty(t, zoo.Model().(*Zoo).Animals)
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	doc, err := document.New()
	require.NoError(t, err)
	boom := errors.New("boom")
	doc.Handle("fail", func(context.Context, *document.Document, any) error { return boom })

	handled, err := doc.Dispatch(context.Background(), domain.NewAction("fail", nil))
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)
}

func TestDispatch_NilHandlerIsHandled(t *testing.T) {
	doc, err := document.New()
	require.NoError(t, err)
	doc.Register(document.ActionDef{Type: "noop"})

	handled, err := doc.Dispatch(context.Background(), domain.NewAction("noop", nil))
	require.NoError(t, err)
	assert.True(t, handled)
}

func TestDispatch_EmptyTypeIsAnOrdinaryKey(t *testing.T) {
	doc, err := document.New()
	require.NoError(t, err)

	handled, _ := doc.Dispatch(context.Background(), domain.NewAction("", nil))
	assert.False(t, handled)

	called := false
	doc.Handle("", func(context.Context, *document.Document, any) error {
		called = true
		return nil
	})
	handled, _ = doc.Dispatch(context.Background(), domain.NewAction("", nil))
	assert.True(t, handled)
	assert.True(t, called)
}

func TestRegister_LastWriteWins(t *testing.T) {
	doc, err := document.New()
	require.NoError(t, err)

	var calls []string
	doc.Handle("x", func(context.Context, *document.Document, any) error {
		calls = append(calls, "first")
		return nil
	})
	doc.Handle("x", func(context.Context, *document.Document, any) error {
		calls = append(calls, "second")
		return nil
	})

	_, err = doc.Dispatch(context.Background(), domain.NewAction("x", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, calls)
	assert.Equal(t, []string{"x"}, doc.ActionTypes())
}

func TestHandler_CoordinatesSeveralStores(t *testing.T) {
	a := document.MustStore(&Counter{})
	b := document.MustStore(&Zoo{})
	doc, err := document.New(document.WithStores(map[string]*document.Store{"a": a, "b": b}))
	require.NoError(t, err)

	doc.Handle("both", func(ctx context.Context, d *document.Document, payload any) error {
		sa, _ := d.StoreAt("a")
		sb, _ := d.StoreAt("b")
		if err := document.Mutate(sa, func(c *Counter) error { c.N++; return nil }); err != nil {
			return err
		}
		return document.Mutate(sb, func(z *Zoo) error {
			z.Animals = append(z.Animals, "Emu")
			return nil
		})
	})

	handled, err := doc.Dispatch(context.Background(), domain.NewAction("both", nil))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "Store { model: Counter(1) }", a.String())
	assert.Equal(t, "Store { model: Zoo(Emu) }", b.String())
}

func TestChangeState_RejectsMutationOfSiblingStore(t *testing.T) {
	a := document.MustStore(&Counter{})
	b := document.MustStore(&Counter{})
	doc, err := document.New(document.WithStores(map[string]*document.Store{"a": a, "b": b}))
	require.NoError(t, err)

	doc.Handle("nested", func(ctx context.Context, d *document.Document, payload any) error {
		return a.ChangeState(func(domain.Model) error {
			return b.ChangeState(func(m domain.Model) error {
				m.(*Counter).N = 99
				return nil
			})
		})
	})

	handled, err := doc.Dispatch(context.Background(), domain.NewAction("nested", nil))
	assert.True(t, handled)
	assert.ErrorIs(t, err, domain.ErrReentrantMutation)
	assert.Equal(t, "Store { model: Counter(0) }", b.String())
}

func TestDispatch_FromPostMutationHook(t *testing.T) {
	var doc *document.Document
	count := document.MustStore(&Counter{}, document.WithPostMutation(func() {
		s, _ := doc.StoreAt("count")
		if s.String() == "Store { model: Counter(1) }" {
			_, err := doc.Dispatch(context.Background(), domain.NewAction("inc", nil))
			require.NoError(t, err)
		}
	}))
	var err error
	doc, err = document.New(document.WithStores(map[string]*document.Store{"count": count}))
	require.NoError(t, err)
	doc.Handle("inc", func(ctx context.Context, d *document.Document, payload any) error {
		s, _ := d.StoreAt("count")
		return document.Mutate(s, func(c *Counter) error { c.N++; return nil })
	})

	_, err = doc.Dispatch(context.Background(), domain.NewAction("inc", nil))
	require.NoError(t, err)
	assert.Equal(t, "Store { model: Counter(2) }", count.String())
}

func TestStoreAt(t *testing.T) {
	doc, zoo := newZooDocument(t, nil)

	got, ok := doc.StoreAt("zoo")
	assert.True(t, ok)
	assert.Same(t, zoo, got)
	assert.Equal(t, "zoo", got.Key())

	got, ok = doc.StoreAt("aquarium")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestNew_RejectsStoreOwnedElsewhere(t *testing.T) {
	shared := document.MustStore(&Zoo{})
	_, err := document.New(document.WithStores(map[string]*document.Store{"zoo": shared}))
	require.NoError(t, err)

	_, err = document.New(document.WithStores(map[string]*document.Store{"zoo": shared}))
	assert.ErrorIs(t, err, domain.ErrStoreAttached)
}

func TestAddStore_ReplacesAndReleasesPrevious(t *testing.T) {
	doc, old := newZooDocument(t, nil)
	fresh := document.MustStore(&Zoo{Animals: []string{"Yak"}})

	require.NoError(t, doc.AddStore("zoo", fresh))
	got, _ := doc.StoreAt("zoo")
	assert.Same(t, fresh, got)
	assert.Equal(t, "", old.Key())

	other, err := document.New()
	require.NoError(t, err)
	assert.NoError(t, other.AddStore("zoo", old))

	assert.ErrorIs(t, doc.AddStore("x", nil), domain.ErrNilModel)
}

func TestAddStore_RejectsSecondKeyForSameStore(t *testing.T) {
	a := document.MustStore(&Counter{})
	b := document.MustStore(&Counter{})
	doc, err := document.New()
	require.NoError(t, err)

	require.NoError(t, doc.AddStore("x", a))
	assert.ErrorIs(t, doc.AddStore("y", a), domain.ErrStoreAttached)
	_, ok := doc.StoreAt("y")
	assert.False(t, ok)

	// Re-adding under the same key is allowed.
	require.NoError(t, doc.AddStore("x", a))
	assert.Equal(t, "x", a.Key())

	require.NoError(t, doc.AddStore("z", b))
	innerRan := false
	err = b.ChangeState(func(domain.Model) error {
		return a.ChangeState(func(domain.Model) error {
			innerRan = true
			return nil
		})
	})
	assert.ErrorIs(t, err, domain.ErrReentrantMutation)
	assert.False(t, innerRan)
}

func TestString(t *testing.T) {
	empty, err := document.New()
	require.NoError(t, err)
	assert.Equal(t, "Document with 0 stores", empty.String())

	doc, _ := newZooDocument(t, nil)
	require.NoError(t, doc.AddStore("count", document.MustStore(&Counter{})))
	assert.Equal(t, "Document with 2 stores", doc.String())
	assert.Equal(t, []string{"count", "zoo"}, doc.StoreKeys())
}

func TestLifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	var dispatches []*domain.DispatchEvent
	var mutations []*domain.MutationEvent

	zoo := document.MustStore(&Zoo{})
	doc, err := document.New(
		document.WithStores(map[string]*document.Store{"zoo": zoo}),
		document.WithLifecycleHooks(domain.LifecycleHooks{
			OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
				mu.Lock()
				defer mu.Unlock()
				dispatches = append(dispatches, e)
			},
			OnMutation: func(_ context.Context, e *domain.MutationEvent) {
				mu.Lock()
				defer mu.Unlock()
				mutations = append(mutations, e)
			},
		}),
	)
	require.NoError(t, err)
	doc.Handle("add", func(ctx context.Context, d *document.Document, payload any) error {
		return document.Mutate(zoo, func(z *Zoo) error {
			z.Animals = append(z.Animals, "Ibis")
			return nil
		})
	})

	_, _ = doc.Dispatch(context.Background(), domain.NewAction("add", nil))
	_, _ = doc.Dispatch(context.Background(), domain.NewAction("missing", nil))

	require.Len(t, dispatches, 2)
	assert.Equal(t, "add", dispatches[0].ActionType)
	assert.True(t, dispatches[0].Handled)
	assert.False(t, dispatches[1].Handled)
	assert.Equal(t, domain.EventDispatch, dispatches[0].Type)

	require.Len(t, mutations, 1)
	assert.Equal(t, "zoo", mutations[0].StoreKey)
	assert.NoError(t, mutations[0].Err)
}
