/*
Package document implements the Document/Store pair at the heart of Docket.

A Document owns named Stores and a table of action handlers. A Store owns a
single Model and is the only way to change it: callers pass a mutator to
Store.ChangeState, which lends the live Model for the duration of the call
and then fires an optional post-mutation hook. Everything else sees copies.

# Flow

	caller -> Document.Dispatch(Action) -> handler(ctx, doc, payload)
	       -> doc.StoreAt(key) -> Store.ChangeState(mutator) -> mutator(model)
	       -> post-mutation hook

# Single writer

All Stores of a Document share one write token. A mutator that tries to
change state again (on any Store of the same Document) gets
domain.ErrReentrantMutation instead of running.

# Usage

	zoo, _ := document.NewStore(&Zoo{})
	doc, _ := document.New(document.WithStores(map[string]*document.Store{"zoo": zoo}))

	doc.Handle("addAnimal", func(ctx context.Context, d *document.Document, payload any) error {
		p, err := domain.DecodePayload[AddAnimal](payload)
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

	handled, err := doc.Dispatch(ctx, domain.NewAction("addAnimal", map[string]any{"species": "Giraffe"}))
*/
package document
