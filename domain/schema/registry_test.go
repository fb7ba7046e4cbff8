package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRegistry(t *testing.T, traits []TraitDescriptor, templates []ReifiedTemplate, models []ModelDescriptor) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, tr := range traits {
		require.NoError(t, reg.RegisterTrait(tr))
	}
	for _, tpl := range templates {
		require.NoError(t, reg.RegisterTemplate(tpl))
	}
	for _, m := range models {
		require.NoError(t, reg.RegisterModel(m))
	}
	require.NoError(t, reg.Finalize())
	return reg
}

func animalFixture(t *testing.T) *Registry {
	t.Helper()
	return buildRegistry(t,
		[]TraitDescriptor{
			{Label: "Purchaseable", Heritable: true},
			{Label: "Ownable", Heritable: false},
		},
		nil,
		[]ModelDescriptor{
			{
				Label:    "Animal",
				Abstract: true,
				Fields: []FieldDescriptor{
					{Name: "name", Kind: FieldScalar, Type: TypeString, Required: true},
				},
			},
			{
				Label:      "Cow",
				Supertypes: []string{"Animal"},
				Traits:     []string{"Purchaseable"},
				Fields: []FieldDescriptor{
					{Name: "milk_yield", Kind: FieldScalar, Type: TypeFloat},
				},
			},
			{
				Label:      "SmallCow",
				Supertypes: []string{"Cow"},
			},
			{
				Label:  "Factory",
				Traits: []string{"Ownable"},
			},
			{
				Label:      "FactoryBranch",
				Supertypes: []string{"Factory"},
			},
			{
				Label: "Person",
				Fields: []FieldDescriptor{
					{Name: "name", Kind: FieldScalar, Type: TypeString, Required: true},
				},
				Relations: []RelationDescriptor{
					{
						Name:        "owns",
						ReverseName: "owned_by",
						Targets: TargetSpec{
							{Kind: TargetModel, Label: "Animal"},
							{Kind: TargetModel, Label: "Factory"},
						},
					},
				},
			},
			{
				Label:      "CattleBaron",
				Supertypes: []string{"Person"},
				Relations: []RelationDescriptor{
					{
						Name:                "owns_cows",
						ReverseName:         "cow_owned_by",
						Targets:             TargetSpec{{Kind: TargetModel, Label: "Cow"}},
						SubclassesRelations: []string{"owns"},
					},
				},
			},
		})
}

func TestRegistryInheritance(t *testing.T) {
	reg := animalFixture(t)

	smallCow, ok := reg.Model("SmallCow")
	require.True(t, ok)

	assert.Equal(t, []string{"Cow", "Animal"}, smallCow.AllSupertypes)
	assert.Equal(t, []string{"Purchaseable"}, smallCow.AllTraits,
		"heritable trait reaches subclasses of the declaring class")
	assert.Equal(t, []string{"SmallCow", "Cow", "Animal", "Purchaseable"}, smallCow.Labels)

	name, ok := smallCow.Field("name")
	require.True(t, ok, "field inherited through two levels")
	assert.True(t, name.Required)
	_, ok = smallCow.Field("milk_yield")
	assert.True(t, ok)

	branch, ok := reg.Model("FactoryBranch")
	require.True(t, ok)
	assert.Empty(t, branch.AllTraits, "non-heritable trait stops at the declaring class")
}

func TestRegistryFieldOverride(t *testing.T) {
	reg := buildRegistry(t, nil, nil, []ModelDescriptor{
		{
			Label:  "Base",
			Fields: []FieldDescriptor{{Name: "label", Kind: FieldScalar, Type: TypeString, MaxLength: 10}},
		},
		{
			Label:      "Derived",
			Supertypes: []string{"Base"},
			Fields:     []FieldDescriptor{{Name: "label", Kind: FieldScalar, Type: TypeString, MaxLength: 100}},
		},
	})

	derived, _ := reg.Model("Derived")
	f, ok := derived.Field("label")
	require.True(t, ok)
	assert.Equal(t, 100, f.MaxLength, "own declaration overrides inherited field")
	require.Len(t, derived.Fields, 1)
}

func TestRegistrySubclasses(t *testing.T) {
	reg := animalFixture(t)

	assert.Equal(t, []string{"Cow", "SmallCow"}, reg.Subclasses("Animal"))
	assert.Equal(t, []string{"SmallCow"}, reg.Subclasses("Cow"))
	assert.Empty(t, reg.Subclasses("SmallCow"))
	assert.True(t, reg.IsAbstract("Animal"))
	assert.False(t, reg.IsAbstract("Cow"))
}

func TestRegistryTraitMembers(t *testing.T) {
	reg := animalFixture(t)

	assert.Equal(t, []string{"Cow", "SmallCow"}, reg.TraitMembers("Purchaseable"),
		"heritable trait includes subclasses of declaring classes")
	assert.Equal(t, []string{"Factory"}, reg.TraitMembers("Ownable"),
		"non-heritable trait excludes subclasses")
}

func TestRegistryTargetResolution(t *testing.T) {
	reg := animalFixture(t)

	person, _ := reg.Model("Person")
	owns, ok := person.Relation("owns")
	require.True(t, ok)

	// Abstract Animal drops out; its concrete subclasses remain.
	assert.Equal(t, []string{"Cow", "Factory", "FactoryBranch", "SmallCow"}, owns.TargetLabels)
	assert.True(t, owns.HasTarget("SmallCow"))
	assert.False(t, owns.HasTarget("Animal"))
	assert.False(t, owns.HasTarget("Person"))
}

func TestRegistryTraitTarget(t *testing.T) {
	reg := buildRegistry(t,
		[]TraitDescriptor{{Label: "Purchaseable", Heritable: true}},
		nil,
		[]ModelDescriptor{
			{Label: "Cow", Traits: []string{"Purchaseable"}},
			{Label: "Factory", Traits: []string{"Purchaseable"}},
			{Label: "Person"},
			{
				Label: "Order",
				Relations: []RelationDescriptor{
					{
						Name:        "thing_ordered",
						ReverseName: "ordered_in",
						Targets:     TargetSpec{{Kind: TargetTrait, Label: "Purchaseable"}},
					},
				},
			},
		})

	order, _ := reg.Model("Order")
	rel, ok := order.Relation("thing_ordered")
	require.True(t, ok)
	assert.Equal(t, []string{"Cow", "Factory"}, rel.TargetLabels)
}

func TestRegistrySubclassedRelationChain(t *testing.T) {
	reg := animalFixture(t)

	baron, _ := reg.Model("CattleBaron")
	ownsCows, ok := baron.Relation("owns_cows")
	require.True(t, ok)

	assert.Equal(t, []string{"Cow", "SmallCow"}, ownsCows.TargetLabels)
	assert.Equal(t, []RelationRef{{Name: "owns", ReverseName: "owned_by"}}, ownsCows.SupertypeChain)

	_, ok = baron.Relation("owns")
	assert.False(t, ok, "subclassed ancestor relation is removed from the effective set")

	person, _ := reg.Model("Person")
	_, ok = person.Relation("owns")
	assert.True(t, ok, "ancestor model keeps its own relation")
}

func TestRegistryChainTransitive(t *testing.T) {
	reg := buildRegistry(t, nil, nil, []ModelDescriptor{
		{Label: "Thing"},
		{Label: "Gadget", Supertypes: []string{"Thing"}},
		{Label: "Widget", Supertypes: []string{"Gadget"}},
		{
			Label: "Owner",
			Relations: []RelationDescriptor{
				{Name: "has", ReverseName: "had_by", Targets: TargetSpec{{Kind: TargetModel, Label: "Thing"}}},
			},
		},
		{
			Label:      "GadgetOwner",
			Supertypes: []string{"Owner"},
			Relations: []RelationDescriptor{
				{
					Name: "has_gadget", ReverseName: "gadget_had_by",
					Targets:             TargetSpec{{Kind: TargetModel, Label: "Gadget"}},
					SubclassesRelations: []string{"has"},
				},
			},
		},
		{
			Label:      "WidgetOwner",
			Supertypes: []string{"GadgetOwner"},
			Relations: []RelationDescriptor{
				{
					Name: "has_widget", ReverseName: "widget_had_by",
					Targets:             TargetSpec{{Kind: TargetModel, Label: "Widget"}},
					SubclassesRelations: []string{"has_gadget"},
				},
			},
		},
	})

	wo, _ := reg.Model("WidgetOwner")
	rel, ok := wo.Relation("has_widget")
	require.True(t, ok)

	// Most specific ancestor first, then its own ancestors.
	assert.Equal(t, []RelationRef{
		{Name: "has_gadget", ReverseName: "gadget_had_by"},
		{Name: "has", ReverseName: "had_by"},
	}, rel.SupertypeChain)
}

func TestRegistryNarrowingViolation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "Cow"}))
	require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "Factory"}))
	require.NoError(t, reg.RegisterModel(ModelDescriptor{
		Label: "Person",
		Relations: []RelationDescriptor{
			{Name: "owns", ReverseName: "owned_by", Targets: TargetSpec{{Kind: TargetModel, Label: "Cow"}}},
		},
	}))
	require.NoError(t, reg.RegisterModel(ModelDescriptor{
		Label:      "Industrialist",
		Supertypes: []string{"Person"},
		Relations: []RelationDescriptor{
			{
				Name: "owns_factory", ReverseName: "factory_owned_by",
				Targets:             TargetSpec{{Kind: TargetModel, Label: "Factory"}},
				SubclassesRelations: []string{"owns"},
			},
		},
	}))

	err := reg.Finalize()
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "not a subset")
}

func TestRegistryEmptyTargetSet(t *testing.T) {
	t.Run("non-optional is a conflict", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterTrait(TraitDescriptor{Label: "Unused"}))
		require.NoError(t, reg.RegisterModel(ModelDescriptor{
			Label: "Person",
			Relations: []RelationDescriptor{
				{Name: "knows", ReverseName: "known_by", Targets: TargetSpec{{Kind: TargetTrait, Label: "Unused"}}},
			},
		}))
		require.ErrorIs(t, reg.Finalize(), ErrConflict)
	})

	t.Run("optional is allowed", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterTrait(TraitDescriptor{Label: "Unused"}))
		require.NoError(t, reg.RegisterModel(ModelDescriptor{
			Label: "Person",
			Relations: []RelationDescriptor{
				{
					Name: "knows", ReverseName: "known_by",
					Targets:  TargetSpec{{Kind: TargetTrait, Label: "Unused"}},
					Optional: true,
				},
			},
		}))
		require.NoError(t, reg.Finalize())
		person, _ := reg.Model("Person")
		rel, _ := person.Relation("knows")
		assert.Empty(t, rel.TargetLabels)
	})
}

func TestRegistryRegistrationErrors(t *testing.T) {
	t.Run("duplicate model", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "Cow"}))
		require.ErrorIs(t, reg.RegisterModel(ModelDescriptor{Label: "Cow"}), ErrConflict)
	})

	t.Run("model and trait share a label", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterTrait(TraitDescriptor{Label: "Purchaseable"}))
		require.ErrorIs(t, reg.RegisterModel(ModelDescriptor{Label: "Purchaseable"}), ErrConflict)
	})

	t.Run("unknown supertype", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "Cow", Supertypes: []string{"Animal"}}))
		require.ErrorIs(t, reg.Finalize(), ErrConflict)
	})

	t.Run("unknown relation target", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterModel(ModelDescriptor{
			Label: "Person",
			Relations: []RelationDescriptor{
				{Name: "owns", ReverseName: "owned_by", Targets: TargetSpec{{Kind: TargetModel, Label: "Ghost"}}},
			},
		}))
		require.ErrorIs(t, reg.Finalize(), ErrUnresolvedTarget)
	})

	t.Run("supertype cycle", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "A", Supertypes: []string{"B"}}))
		require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "B", Supertypes: []string{"A"}}))
		require.ErrorIs(t, reg.Finalize(), ErrConflict)
	})

	t.Run("template without target relation", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.RegisterTemplate(ReifiedTemplate{
			Label:     "Identification",
			Relations: []RelationDescriptor{{Name: "witness", ReverseName: "witness_in"}},
		})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("register after finalize", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.RegisterModel(ModelDescriptor{Label: "Cow"}))
		require.NoError(t, reg.Finalize())
		require.ErrorIs(t, reg.RegisterModel(ModelDescriptor{Label: "Person"}), ErrConflict)
	})
}

func TestRegistryDiamondInheritance(t *testing.T) {
	reg := buildRegistry(t, nil, nil, []ModelDescriptor{
		{Label: "Entity", Abstract: true, Fields: []FieldDescriptor{{Name: "label", Kind: FieldScalar, Type: TypeString}}},
		{Label: "Left", Supertypes: []string{"Entity"}},
		{Label: "Right", Supertypes: []string{"Entity"}},
		{Label: "Bottom", Supertypes: []string{"Left", "Right"}},
	})

	bottom, _ := reg.Model("Bottom")
	assert.Equal(t, []string{"Left", "Entity", "Right"}, bottom.AllSupertypes)
	require.Len(t, bottom.Fields, 1, "diamond ancestor field is inherited once")
}

func TestRegistryMultiKeyField(t *testing.T) {
	reg := buildRegistry(t, nil, nil, []ModelDescriptor{
		{
			Label: "Person",
			Fields: []FieldDescriptor{
				{
					Name: "date_of_birth",
					Kind: FieldMultiKey,
					SubKeys: []SubKey{
						{Name: "value", Type: TypeDateTime},
						{Name: "certainty", Type: TypeInt},
						{Name: "notes", Type: TypeString, List: true},
					},
				},
			},
		},
	})

	person, _ := reg.Model("Person")
	f, ok := person.Field("date_of_birth")
	require.True(t, ok)
	assert.Equal(t, FieldMultiKey, f.Kind)
	require.Len(t, f.SubKeys, 3)
	assert.True(t, f.SubKeys[2].List)
}
