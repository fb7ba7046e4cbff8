package schema

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	writeModelFile(t, dir, "00_traits.yaml", `
traits:
  - label: Purchaseable
    heritable: true
`)
	writeModelFile(t, dir, "10_animals.yaml", `
models:
  - label: Animal
    abstract: true
    fields:
      - name: name
        kind: scalar
        type: string
        required: true
  - label: Cow
    supertypes: [Animal]
    traits: [Purchaseable]
`)
	writeModelFile(t, dir, "20_people.yaml", `
models:
  - label: Person
    relations:
      - name: owns
        reverse_name: owned_by
        targets:
          - "trait:Purchaseable"
`)

	reg, err := LoadDir(dir, slog.Default())
	require.NoError(t, err)

	cow, ok := reg.Model("Cow")
	require.True(t, ok)
	assert.Equal(t, []string{"Cow", "Animal", "Purchaseable"}, cow.Labels)
	_, ok = cow.Field("name")
	assert.True(t, ok)

	person, _ := reg.Model("Person")
	rel, ok := person.Relation("owns")
	require.True(t, ok)
	assert.Equal(t, []string{"Cow"}, rel.TargetLabels)
}

func TestLoadDirReifiedTemplate(t *testing.T) {
	dir := t.TempDir()

	writeModelFile(t, dir, "schema.yaml", `
templates:
  - label: Identification
    fields:
      - name: certainty
        kind: scalar
        type: int
    relations:
      - name: target
        reverse_name: is_target_of
        targets: [typeparam]
models:
  - label: Person
  - label: Event
    relations:
      - name: person_identified
        reverse_name: identified_in
        reified_template: Identification
        reified_arg: Person
`)

	reg, err := LoadDir(dir, slog.Default())
	require.NoError(t, err)

	event, _ := reg.Model("Event")
	rel, ok := event.Relation("person_identified")
	require.True(t, ok)
	require.NotNil(t, rel.ReifiedModel)
	assert.Equal(t, "Identification[Person]", rel.ReifiedModel.Label)
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		_, err := LoadDir(t.TempDir(), slog.Default())
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeModelFile(t, dir, "bad.yaml", "models: [label: {{")
		_, err := LoadDir(dir, slog.Default())
		require.Error(t, err)
	})

	t.Run("schema conflict names the file", func(t *testing.T) {
		dir := t.TempDir()
		writeModelFile(t, dir, "a.yaml", "models:\n  - label: Cow\n")
		writeModelFile(t, dir, "b.yaml", "models:\n  - label: Cow\n")
		_, err := LoadDir(dir, slog.Default())
		require.ErrorIs(t, err, ErrConflict)
		assert.Contains(t, err.Error(), "b.yaml")
	})
}

func TestParseTargetRef(t *testing.T) {
	tests := []struct {
		in   string
		want TargetRef
	}{
		{"Person", TargetRef{Kind: TargetModel, Label: "Person"}},
		{"trait:Purchaseable", TargetRef{Kind: TargetTrait, Label: "Purchaseable"}},
		{"typeparam", TargetRef{Kind: TargetTypeParam}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseTargetRef(tt.in), tt.in)
	}
}
