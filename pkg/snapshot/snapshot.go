// Package snapshot converts between a live Document and a domain.Snapshot.
//
// Capture reads through each Store's read-only view. Restore writes through
// Store.ChangeState, so restoring is an ordinary state change: post-mutation
// hooks fire and the single-writer rule applies.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/domain"
)

// Capture serializes the view of every Store in doc.
func Capture(doc *document.Document, id string) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		ID:      id,
		Stores:  make(map[string]json.RawMessage),
		TakenAt: time.Now().UTC(),
	}
	for _, key := range doc.StoreKeys() {
		store, ok := doc.StoreAt(key)
		if !ok {
			continue
		}
		data, err := json.Marshal(store.Model())
		if err != nil {
			return nil, fmt.Errorf("failed to encode store %q: %w", key, err)
		}
		snap.Stores[key] = data
	}
	return snap, nil
}

// Restore replaces the state of each Store in doc with the captured one of
// the same key. Pointer Models are decoded into a zero value that then
// overwrites the live Model, so nothing from the previous state survives.
// Keys missing from doc are skipped. The first failure stops the restore;
// stores restored before it keep their new state.
func Restore(ctx context.Context, doc *document.Document, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	for _, key := range snap.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		store, ok := doc.StoreAt(key)
		if !ok {
			continue
		}
		raw := snap.Stores[key]
		err := store.ChangeState(func(m domain.Model) error {
			return replace(m, raw)
		})
		if err != nil {
			return fmt.Errorf("failed to restore store %q: %w", key, err)
		}
	}
	return nil
}

func replace(m domain.Model, raw json.RawMessage) error {
	live := reflect.ValueOf(m)
	if live.Kind() != reflect.Pointer {
		return json.Unmarshal(raw, m)
	}
	fresh := reflect.New(live.Type().Elem())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return err
	}
	live.Elem().Set(fresh.Elem())
	return nil
}
