package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeViewIdentityOmittedWhenUnset(t *testing.T) {
	view := NodeView{
		ID:    NewNodeID(),
		Label: "Person",
		Embedded: map[string][]NodeView{
			"statements": {
				{Label: "Statement", Fields: map[string]any{"text": "a remark"}},
			},
		},
	}

	raw, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "id", "the head view is addressable")

	statements := decoded["embedded"].(map[string]any)["statements"].([]any)
	child := statements[0].(map[string]any)
	assert.NotContains(t, child, "id", "embedded children carry no identity")
	assert.Equal(t, "Statement", child["label"])
}
