package modelling

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
)

// ErrNoSuchBody is returned for a body index outside the model.
var ErrNoSuchBody = errors.New("no body at index")

// ErrMissingIndex is returned when a body action payload has no index.
var ErrMissingIndex = errors.New("payload requires an index")

// ErrNoBRepStore is returned when the Document has no "brep" store.
var ErrNoBRepStore = errors.New("document has no brep store")

// Action types.
const (
	ActionAddEmptyBody = "addEmptyBody"
	ActionRemoveBody   = "removeBody"
	ActionRenameBody   = "renameBody"
	// ActionPing is handled without touching any store. Clients use it to
	// check that a host is reachable.
	ActionPing = "ping"
)

// AddEmptyBodyPayload names the new body. Empty names become "Body N".
type AddEmptyBodyPayload struct {
	Name string `json:"name"`
}

// RemoveBodyPayload selects the body to remove. Index is required.
type RemoveBodyPayload struct {
	Index *int `json:"index"`
}

// RenameBodyPayload selects a body and its new name. Both are required.
type RenameBodyPayload struct {
	Index *int   `json:"index"`
	Name  string `json:"name"`
}

// Actions returns the body action definitions and ping.
func Actions() []document.ActionDef {
	return []document.ActionDef{
		{Type: ActionAddEmptyBody, Handler: addEmptyBody},
		{Type: ActionRemoveBody, Handler: removeBody},
		{Type: ActionRenameBody, Handler: renameBody},
		{Type: ActionPing},
	}
}

// Register installs Actions on doc.
func Register(doc *document.Document) {
	for _, def := range Actions() {
		doc.Register(def)
	}
}

func brep(doc *document.Document, fn func(*BRepModel) error) error {
	store, ok := doc.StoreAt(StoreKey)
	if !ok {
		return ErrNoBRepStore
	}
	return document.Mutate(store, fn)
}

func addEmptyBody(ctx context.Context, doc *document.Document, payload any) error {
	p, err := domain.DecodePayload[AddEmptyBodyPayload](payload)
	if err != nil {
		return err
	}
	return brep(doc, func(m *BRepModel) error {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Body %d", len(m.Bodies)+1)
		}
		m.AddBody(Body{Name: name})
		return nil
	})
}

func removeBody(ctx context.Context, doc *document.Document, payload any) error {
	p, err := domain.DecodePayload[RemoveBodyPayload](payload)
	if err != nil {
		return err
	}
	if p.Index == nil {
		return fmt.Errorf("removeBody: %w", ErrMissingIndex)
	}
	return brep(doc, func(m *BRepModel) error {
		return m.RemoveBody(*p.Index)
	})
}

func renameBody(ctx context.Context, doc *document.Document, payload any) error {
	p, err := domain.DecodePayload[RenameBodyPayload](payload)
	if err != nil {
		return err
	}
	if p.Index == nil {
		return fmt.Errorf("renameBody: %w", ErrMissingIndex)
	}
	if p.Name == "" {
		return errors.New("renameBody requires a name")
	}
	return brep(doc, func(m *BRepModel) error {
		return m.RenameBody(*p.Index, p.Name)
	})
}

// NewDocument builds a Document with an empty "brep" store and the body
// actions registered. opts are applied after the store option.
func NewDocument(opts ...document.Option) (*document.Document, error) {
	store, err := document.NewStore(&BRepModel{})
	if err != nil {
		return nil, err
	}
	all := append([]document.Option{
		document.WithStores(map[string]*document.Store{StoreKey: store}),
	}, opts...)
	doc, err := document.New(all...)
	if err != nil {
		return nil, err
	}
	Register(doc)
	return doc, nil
}
