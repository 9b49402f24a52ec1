package roomstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPatch(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch Patch
		want  string
	}{
		{
			name:  "nested field keeps siblings",
			doc:   `{"p1":{"r":1,"g":2,"b":3,"score":-1},"status":"ready"}`,
			patch: Patch{"p1/score": 87.5},
			want:  `{"p1":{"r":1,"g":2,"b":3,"score":87.5},"status":"ready"}`,
		},
		{
			name:  "creates intermediate objects",
			doc:   `{"status":"ready"}`,
			patch: Patch{"rematch/p2": true},
			want:  `{"status":"ready","rematch":{"p2":true}}`,
		},
		{
			name:  "nil removes a field",
			doc:   `{"p1":{"r":1},"p2":{"r":2}}`,
			patch: Patch{"p2": nil},
			want:  `{"p1":{"r":1}}`,
		},
		{
			name:  "nil under a missing parent is a no-op",
			doc:   `{"status":"waiting"}`,
			patch: Patch{"p2/score": nil},
			want:  `{"status":"waiting"}`,
		},
		{
			name:  "parent assignment precedes child",
			doc:   `{}`,
			patch: Patch{"rematch": map[string]bool{"p1": false, "p2": false}, "rematch/p1": true},
			want:  `{"rematch":{"p1":true,"p2":false}}`,
		},
		{
			name:  "empty document",
			doc:   ``,
			patch: Patch{"gold": 50},
			want:  `{"gold":50}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ApplyPatch(json.RawMessage(tt.doc), tt.patch)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestApplyPatchErrors(t *testing.T) {
	_, err := ApplyPatch(json.RawMessage(`[1,2]`), Patch{"a": 1})
	assert.ErrorContains(t, err, "not an object")

	_, err = ApplyPatch(json.RawMessage(`{}`), Patch{"a//b": 1})
	assert.ErrorContains(t, err, "malformed")

	_, err = ApplyPatch(json.RawMessage(`{}`), Patch{"/": 1})
	assert.ErrorContains(t, err, "empty")
}
