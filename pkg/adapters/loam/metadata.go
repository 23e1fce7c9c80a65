package loam

import (
	"encoding/json"
	"time"
)

// SnapshotMetadata is the frontmatter of a persisted snapshot note.
// Store encodings are nested as plain objects so the vault stays readable.
type SnapshotMetadata struct {
	SnapshotID string                     `json:"snapshot_id" mapstructure:"snapshot_id"`
	TakenAt    time.Time                  `json:"taken_at" mapstructure:"taken_at"`
	Stores     map[string]json.RawMessage `json:"stores" mapstructure:"stores"`
	Kind       string                     `json:"kind" mapstructure:"kind"`
}

// kindSnapshot marks notes written by Store so foreign notes in the same
// folder are ignored.
const kindSnapshot = "docket-snapshot"
