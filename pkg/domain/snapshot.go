package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Snapshot is a serialized copy of every Store's model in a Document,
// keyed by store key. It is what persistence adapters save and load.
type Snapshot struct {
	ID      string                     `json:"id"`
	Stores  map[string]json.RawMessage `json:"stores"`
	TakenAt time.Time                  `json:"taken_at"`
}

// Keys returns the store keys captured in the snapshot, sorted.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Stores))
	for k := range s.Stores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
