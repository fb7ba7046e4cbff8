package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richardhadden/pangloss/domain/schema"
)

func TestFlattenRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	person, ok := reg.Model("Person")
	require.True(t, ok)

	fields := map[string]any{
		"name": map[string]any{"value": "John Smith", "certainty": 1},
	}

	props := FlattenFields(person, fields)
	assert.Equal(t, map[string]any{
		"name____value":     "John Smith",
		"name____certainty": 1,
	}, props)

	back := UnflattenProperties(person, props)
	assert.Equal(t, fields, back, "flatten and unflatten are inverses")
}

func TestFlattenScalarPassThrough(t *testing.T) {
	reg := testRegistry(t)
	statement, _ := reg.Model("Statement")

	props := FlattenFields(statement, map[string]any{"text": "hello"})
	assert.Equal(t, map[string]any{"text": "hello"}, props)
	assert.Equal(t, map[string]any{"text": "hello"}, UnflattenProperties(statement, props))
}

func TestFlattenSkipsUndeclared(t *testing.T) {
	reg := testRegistry(t)
	statement, _ := reg.Model("Statement")

	props := FlattenFields(statement, map[string]any{"text": "hi", "ghost": 1})
	assert.NotContains(t, props, "ghost")
}

func TestUnflattenPartialMultiKey(t *testing.T) {
	reg := testRegistry(t)
	person, _ := reg.Model("Person")

	back := UnflattenProperties(person, map[string]any{"name____value": "Jane"})
	assert.Equal(t, map[string]any{"name": map[string]any{"value": "Jane"}}, back)
}

func TestMultiKeyPropertyKeys(t *testing.T) {
	fd := &schema.FieldDescriptor{
		Name: "name",
		Kind: schema.FieldMultiKey,
		SubKeys: []schema.SubKey{
			{Name: "value", Type: schema.TypeString},
			{Name: "certainty", Type: schema.TypeInt},
		},
	}
	assert.Equal(t, []string{"name____value", "name____certainty"}, multiKeyPropertyKeys(fd))
}
