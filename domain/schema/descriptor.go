// Package schema holds the resolved type graph for the modelling layer:
// model descriptors, trait membership, relation target resolution and
// reified-relation expansion. It is pure data plus resolution logic; nothing
// in this package touches the store.
//
// Registration is two-pass: descriptors are collected with RegisterModel /
// RegisterTrait / RegisterTemplate (forward references allowed), then
// Finalize resolves inheritance, traits, relation targets and supertype
// chains. After Finalize the registry is immutable and safe for unlimited
// concurrent readers.
package schema

// ValueType is the scalar type of a field or multi-key sub-value.
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeInt      ValueType = "int"
	TypeFloat    ValueType = "float"
	TypeBool     ValueType = "bool"
	TypeDateTime ValueType = "datetime"
	TypeURI      ValueType = "uri"
)

// FieldKind distinguishes scalar, list and multi-key fields.
type FieldKind string

const (
	FieldScalar   FieldKind = "scalar"
	FieldList     FieldKind = "list"
	FieldMultiKey FieldKind = "multikey"
)

// SubKey is one named sub-value of a multi-key field. Sub-values are scalar
// or list-of-scalar only; nesting further multi-keys or relations inside a
// multi-key field is not representable.
type SubKey struct {
	Name string    `yaml:"name"`
	Type ValueType `yaml:"type"`
	List bool      `yaml:"list,omitempty"`
}

// FieldDescriptor describes one declared property field.
type FieldDescriptor struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Type     ValueType `yaml:"type,omitempty"`
	SubKeys  []SubKey  `yaml:"subkeys,omitempty"`
	Required bool      `yaml:"required,omitempty"`

	// Length constraints for string values; zero means unbounded.
	MinLength int `yaml:"min_length,omitempty"`
	MaxLength int `yaml:"max_length,omitempty"`
}

// TargetKind distinguishes the ways a relation target can be specified.
type TargetKind string

const (
	TargetModel TargetKind = "model"
	TargetTrait TargetKind = "trait"

	// TargetTypeParam marks the type parameter inside a reified template;
	// it is substituted at expansion time and never survives Finalize.
	TargetTypeParam TargetKind = "typeparam"
)

// TargetRef names one member of a relation's target specification.
type TargetRef struct {
	Kind  TargetKind `yaml:"kind"`
	Label string     `yaml:"label,omitempty"`
}

// TargetSpec is a relation's declared target: one ref, or a union.
type TargetSpec []TargetRef

// RelationDescriptor describes one declared relation field.
type RelationDescriptor struct {
	Name        string     `yaml:"name"`
	ReverseName string     `yaml:"reverse_name"`
	Targets     TargetSpec `yaml:"targets"`

	// EdgeModel is the label of a model whose fields are stored on the
	// edge itself; empty means a plain edge.
	EdgeModel string `yaml:"edge_model,omitempty"`

	// ReifiedTemplate/ReifiedArg instantiate a reified wrapper: the edge
	// goes subject -> reified node -> target instead of directly.
	ReifiedTemplate string    `yaml:"reified_template,omitempty"`
	ReifiedArg      TargetRef `yaml:"reified_arg,omitempty"`

	CreateInline bool `yaml:"create_inline,omitempty"`
	EditInline   bool `yaml:"edit_inline,omitempty"`

	// Optional permits the resolved target set to be empty (an abstract or
	// permanently unsatisfiable relation). Without it an empty set is a
	// schema conflict at Finalize.
	Optional bool `yaml:"optional,omitempty"`

	// SubclassesRelations names inherited relations this relation narrows.
	// Writes through this relation additionally produce shortcut edges for
	// each named ancestor relation.
	SubclassesRelations []string `yaml:"subclasses,omitempty"`
}

// EmbeddedFieldDescriptor describes a field holding embedded nodes: full
// nodes with their own label and identity, but lifecycle-bound to the parent
// and never independently addressable.
type EmbeddedFieldDescriptor struct {
	Name    string   `yaml:"name"`
	Allowed []string `yaml:"allowed"`
}

// FieldBinding propagates a value from one relation's inline-create request
// onto a sibling relation's inline-create request, before the sibling's
// nested create is compiled.
type FieldBinding struct {
	FromRelation string `yaml:"from_relation"`
	FromField    string `yaml:"from_field"`
	ToRelation   string `yaml:"to_relation"`
	ToField      string `yaml:"to_field"`
}

// ModelDescriptor is the declared form of one entity type.
type ModelDescriptor struct {
	Label      string   `yaml:"label"`
	Abstract   bool     `yaml:"abstract,omitempty"`
	Supertypes []string `yaml:"supertypes,omitempty"`
	Traits     []string `yaml:"traits,omitempty"`

	Fields    []FieldDescriptor         `yaml:"fields,omitempty"`
	Relations []RelationDescriptor      `yaml:"relations,omitempty"`
	Embedded  []EmbeddedFieldDescriptor `yaml:"embedded,omitempty"`
	Bindings  []FieldBinding            `yaml:"bindings,omitempty"`

	// AllowReferenceCreate permits creating a stub node from just an
	// identifier or URIs, without the full field set.
	AllowReferenceCreate bool `yaml:"allow_reference_create,omitempty"`
}

// TraitDescriptor declares a trait label. Heritable traits propagate to all
// current and future subclasses of declaring models; non-heritable traits
// apply to exactly the declaring models.
type TraitDescriptor struct {
	Label     string `yaml:"label"`
	Heritable bool   `yaml:"heritable,omitempty"`
}

// ReifiedTemplate is a parametrized model: its relations may target the
// type parameter, and it must declare a "target" relation naming the
// eventual object. Expansion with a concrete argument synthesizes an
// ordinary model labelled "Template[Arg]".
type ReifiedTemplate struct {
	Label     string               `yaml:"label"`
	Fields    []FieldDescriptor    `yaml:"fields,omitempty"`
	Relations []RelationDescriptor `yaml:"relations"`
}

// TargetRelationName is the mandatory relation on every reified template.
const TargetRelationName = "target"

// RelationRef identifies a relation by its forward and reverse edge names.
type RelationRef struct {
	Name        string
	ReverseName string
}
