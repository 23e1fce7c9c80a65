package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(stores map[string]string) *Snapshot {
	s := &Snapshot{Stores: make(map[string]json.RawMessage)}
	for k, v := range stores {
		s.Stores[k] = json.RawMessage(v)
	}
	return s
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      *Snapshot
		new      *Snapshot
		wantKeys []string
		wantNil  []string
	}{
		{
			name:     "Initial Load (Old is Nil)",
			old:      nil,
			new:      snap(map[string]string{"brep": `{"Bodies":[]}`, "view": `{}`}),
			wantKeys: []string{"brep", "view"},
		},
		{
			name:     "Modified Store",
			old:      snap(map[string]string{"brep": `{"Bodies":[]}`, "view": `{}`}),
			new:      snap(map[string]string{"brep": `{"Bodies":[{"Name":"a"}]}`, "view": `{}`}),
			wantKeys: []string{"brep"},
		},
		{
			name:     "Added and Removed",
			old:      snap(map[string]string{"a": `1`}),
			new:      snap(map[string]string{"b": `2`}),
			wantKeys: []string{"a", "b"},
			wantNil:  []string{"a"},
		},
		{
			name:     "Whitespace Only",
			old:      snap(map[string]string{"a": `{"x": 1}`}),
			new:      snap(map[string]string{"a": `{"x":1}`}),
			wantKeys: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := Diff(tt.old, tt.new)
			if tt.wantKeys == nil {
				assert.Nil(t, diff)
				assert.True(t, diff.IsEmpty())
				return
			}
			require.NotNil(t, diff)
			assert.Equal(t, tt.wantKeys, diff.Keys())
			for _, k := range tt.wantNil {
				assert.Nil(t, diff.Stores[k])
			}
		})
	}
}

func TestDiff_NilNew(t *testing.T) {
	assert.Nil(t, Diff(snap(nil), nil))
}
