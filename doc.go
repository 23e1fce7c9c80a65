/*
Package docket is a controlled-mutation container for application models.

A Document owns named Stores; each Store owns one Model. The only way to
change a Model is through Store.ChangeState, usually from an action handler
reached by Document.Dispatch. All Stores of a Document share a single write
token, so nested state changes fail fast with domain.ErrReentrantMutation
instead of corrupting the model.

# Layout

  - pkg/domain: Action, Model, Snapshot, lifecycle events and errors.
  - pkg/document: Document, Store, Mutate and View.
  - pkg/snapshot and pkg/session: capture, restore and persist Documents.
  - pkg/adapters: snapshot stores (memory, file, loam, redis, sqlite) and the
    HTTP and MCP surfaces.
  - pkg/service: the JSON-lines dispatch loop used by "docket run".
  - pkg/observability: logging, Prometheus and OpenTelemetry hooks.

# Usage

	counter := document.MustStore(&Counter{})
	doc, err := document.New(document.WithStores(map[string]*document.Store{"counter": counter}))
	if err != nil {
		log.Fatal(err)
	}

	doc.Handle("increment", func(ctx context.Context, d *document.Document, payload any) error {
		store, _ := d.StoreAt("counter")
		return document.Mutate(store, func(c *Counter) error {
			c.N++
			return nil
		})
	})

	handled, err := doc.Dispatch(ctx, domain.NewAction("increment", nil))

The docket binary (cmd/docket) serves the built-in B-rep modelling Document
over stdin/stdout, HTTP and MCP.
*/
package docket
