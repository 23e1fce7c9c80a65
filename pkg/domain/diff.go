package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// SnapshotDiff represents the store-level changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// Stores contains only changed or added stores, with their new encoding.
	// For deletions, the key is present with a nil value.
	Stores map[string]json.RawMessage `json:"stores,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff carrying every store of newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	delta := make(map[string]json.RawMessage)
	if oldSnap == nil {
		for k, v := range newSnap.Stores {
			delta[k] = v
		}
	} else {
		// Added or modified
		for k, newVal := range newSnap.Stores {
			oldVal, exists := oldSnap.Stores[k]
			if !exists || !jsonEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		// Deleted
		for k := range oldSnap.Stores {
			if _, exists := newSnap.Stores[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return &SnapshotDiff{Stores: delta}
}

// Keys returns the keys of the stores touched by the diff, sorted.
func (d *SnapshotDiff) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Stores))
	for k := range d.Stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d == nil || len(d.Stores) == 0
}

// jsonEqual compares two encodings ignoring insignificant whitespace.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
