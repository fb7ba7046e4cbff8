package schema

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

const reifyCacheSize = 512

// Model is a resolved model: the declared descriptor plus everything
// inherited from supertypes, with relation targets expanded to concrete
// label sets. Models are immutable after Finalize.
type Model struct {
	Label    string
	Abstract bool

	// AllSupertypes lists ancestor labels nearest-first.
	AllSupertypes []string
	// AllTraits lists trait memberships: own declarations plus heritable
	// traits declared anywhere up the supertype graph.
	AllTraits []string
	// Labels is the storage label set: the model's own label, every
	// supertype label and every trait label. Matching a node by any label
	// in this set finds the whole family.
	Labels []string

	Fields    []FieldDescriptor
	Relations []*Relation
	Embedded  []EmbeddedFieldDescriptor
	Bindings  []FieldBinding

	AllowReferenceCreate bool

	// Reified is true for models synthesized by template expansion.
	Reified bool
}

// Field looks up an effective field by name.
func (m *Model) Field(name string) (*FieldDescriptor, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// Relation looks up an effective relation by name.
func (m *Model) Relation(name string) (*Relation, bool) {
	for _, r := range m.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// EmbeddedField looks up an effective embedded field by name.
func (m *Model) EmbeddedField(name string) (*EmbeddedFieldDescriptor, bool) {
	for i := range m.Embedded {
		if m.Embedded[i].Name == name {
			return &m.Embedded[i], true
		}
	}
	return nil, false
}

// Relation is a resolved relation: the declared descriptor plus the concrete
// target label set and, for subclassed relations, the ordered ancestor chain
// used for shortcut-edge writes.
type Relation struct {
	RelationDescriptor

	// DeclaredOn is the label of the model the relation was declared on
	// (an ancestor, when inherited).
	DeclaredOn string

	// TargetLabels is the sorted set of concrete labels the relation may
	// point to: single types plus their subclasses, union members, or
	// trait member families.
	TargetLabels []string

	// ReifiedModel is the synthesized intermediate model when the relation
	// is declared through a reified template.
	ReifiedModel *Model

	// EdgeFields are the resolved fields of EdgeModel, stored on the edge.
	EdgeFields []FieldDescriptor

	// SupertypeChain lists ancestor relations this relation narrows, most
	// specific first. Every write through this relation produces one
	// shortcut edge per entry.
	SupertypeChain []RelationRef
}

// HasTarget reports whether label is in the resolved target set.
func (r *Relation) HasTarget(label string) bool {
	for _, t := range r.TargetLabels {
		if t == label {
			return true
		}
	}
	return false
}

// Registry holds the resolved type graph. Build it with RegisterModel /
// RegisterTrait / RegisterTemplate, then call Finalize exactly once; every
// registration error is fatal and must abort startup.
type Registry struct {
	declared  map[string]*ModelDescriptor
	traits    map[string]*TraitDescriptor
	templates map[string]*ReifiedTemplate

	finalized bool

	models       map[string]*Model
	subclasses   map[string][]string // transitive, excluding self
	traitMembers map[string][]string

	reifyCache *lru.Cache[string, *Model]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	cache, _ := lru.New[string, *Model](reifyCacheSize)
	return &Registry{
		declared:     make(map[string]*ModelDescriptor),
		traits:       make(map[string]*TraitDescriptor),
		templates:    make(map[string]*ReifiedTemplate),
		models:       make(map[string]*Model),
		subclasses:   make(map[string][]string),
		traitMembers: make(map[string][]string),
		reifyCache:   cache,
	}
}

// RegisterModel adds a model descriptor. Supertype and trait references may
// be forward references; they are checked at Finalize.
func (reg *Registry) RegisterModel(d ModelDescriptor) error {
	if reg.finalized {
		return fmt.Errorf("%w: registry already finalized", ErrConflict)
	}
	if d.Label == "" {
		return fmt.Errorf("%w: model with empty label", ErrConflict)
	}
	if _, ok := reg.declared[d.Label]; ok {
		return fmt.Errorf("%w: duplicate model label %q", ErrConflict, d.Label)
	}
	if _, ok := reg.traits[d.Label]; ok {
		return fmt.Errorf("%w: label %q already registered as trait", ErrConflict, d.Label)
	}
	dd := d
	reg.declared[d.Label] = &dd
	return nil
}

// RegisterTrait adds a trait descriptor.
func (reg *Registry) RegisterTrait(d TraitDescriptor) error {
	if reg.finalized {
		return fmt.Errorf("%w: registry already finalized", ErrConflict)
	}
	if d.Label == "" {
		return fmt.Errorf("%w: trait with empty label", ErrConflict)
	}
	if _, ok := reg.traits[d.Label]; ok {
		return fmt.Errorf("%w: duplicate trait label %q", ErrConflict, d.Label)
	}
	if _, ok := reg.declared[d.Label]; ok {
		return fmt.Errorf("%w: label %q already registered as model", ErrConflict, d.Label)
	}
	dd := d
	reg.traits[d.Label] = &dd
	return nil
}

// RegisterTemplate adds a reified-relation template. The template must
// declare a "target" relation.
func (reg *Registry) RegisterTemplate(t ReifiedTemplate) error {
	if reg.finalized {
		return fmt.Errorf("%w: registry already finalized", ErrConflict)
	}
	if t.Label == "" {
		return fmt.Errorf("%w: template with empty label", ErrConflict)
	}
	if _, ok := reg.templates[t.Label]; ok {
		return fmt.Errorf("%w: duplicate template label %q", ErrConflict, t.Label)
	}
	hasTarget := false
	for _, r := range t.Relations {
		if r.Name == TargetRelationName {
			hasTarget = true
		}
	}
	if !hasTarget {
		return fmt.Errorf("%w: template %q declares no %q relation", ErrConflict, t.Label, TargetRelationName)
	}
	tt := t
	reg.templates[t.Label] = &tt
	return nil
}

// Finalize resolves the registered descriptors into an immutable type
// graph: inheritance merge, trait membership, relation target expansion,
// reified template expansion, narrowing validation and supertype chains.
func (reg *Registry) Finalize() error {
	if reg.finalized {
		return fmt.Errorf("%w: registry already finalized", ErrConflict)
	}

	if err := reg.checkReferences(); err != nil {
		return err
	}
	if err := reg.checkAcyclic(); err != nil {
		return err
	}

	reg.buildSubclassClosure()
	reg.buildTraitMembership()

	// Resolve models bottom-up (supertypes before subtypes).
	resolved := make(map[string]bool)
	for label := range reg.declared {
		if err := reg.resolveModel(label, resolved); err != nil {
			return err
		}
	}

	// Target expansion and validation needs every model present first.
	for _, label := range reg.sortedModelLabels() {
		if err := reg.resolveRelations(reg.models[label]); err != nil {
			return err
		}
	}

	reg.finalized = true
	return nil
}

// Finalized reports whether the registry has been resolved.
func (reg *Registry) Finalized() bool {
	return reg.finalized
}

// Model returns the resolved model for a label, including synthesized
// reified models.
func (reg *Registry) Model(label string) (*Model, bool) {
	if m, ok := reg.models[label]; ok {
		return m, true
	}
	if m, ok := reg.reifyCache.Get(label); ok {
		return m, true
	}
	return nil, false
}

// Models returns every resolved model, sorted by label.
func (reg *Registry) Models() []*Model {
	out := make([]*Model, 0, len(reg.models))
	for _, label := range reg.sortedModelLabels() {
		out = append(out, reg.models[label])
	}
	return out
}

// Subclasses returns the transitive subclass closure of a label, excluding
// the label itself. Results are memoized at Finalize.
func (reg *Registry) Subclasses(label string) []string {
	return reg.subclasses[label]
}

// TraitMembers returns the member labels of a trait: for heritable traits,
// every declaring class and all its subclasses; for non-heritable traits,
// exactly the declaring classes.
func (reg *Registry) TraitMembers(traitLabel string) []string {
	return reg.traitMembers[traitLabel]
}

// IsAbstract reports whether a label names an abstract model.
func (reg *Registry) IsAbstract(label string) bool {
	if d, ok := reg.declared[label]; ok {
		return d.Abstract
	}
	return false
}

// IsTrait reports whether a label names a trait.
func (reg *Registry) IsTrait(label string) bool {
	_, ok := reg.traits[label]
	return ok
}

func (reg *Registry) sortedModelLabels() []string {
	labels := make([]string, 0, len(reg.models))
	for l := range reg.models {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// checkReferences verifies every supertype, trait, embedded and template
// reference names something registered.
func (reg *Registry) checkReferences() error {
	for label, d := range reg.declared {
		for _, super := range d.Supertypes {
			if _, ok := reg.declared[super]; !ok {
				return fmt.Errorf("%w: model %q declares unknown supertype %q", ErrConflict, label, super)
			}
		}
		for _, trait := range d.Traits {
			if _, ok := reg.traits[trait]; !ok {
				return fmt.Errorf("%w: model %q declares unknown trait %q", ErrConflict, label, trait)
			}
		}
		for _, emb := range d.Embedded {
			for _, allowed := range emb.Allowed {
				if _, ok := reg.declared[allowed]; !ok {
					return fmt.Errorf("%w: embedded field %q.%q allows unknown label %q",
						ErrUnresolvedTarget, label, emb.Name, allowed)
				}
			}
		}
		for _, rel := range d.Relations {
			if rel.ReifiedTemplate != "" {
				if _, ok := reg.templates[rel.ReifiedTemplate]; !ok {
					return fmt.Errorf("%w: relation %q.%q uses unknown template %q",
						ErrUnresolvedTarget, label, rel.Name, rel.ReifiedTemplate)
				}
			}
			if rel.EdgeModel != "" {
				if _, ok := reg.declared[rel.EdgeModel]; !ok {
					return fmt.Errorf("%w: relation %q.%q uses unknown edge model %q",
						ErrUnresolvedTarget, label, rel.Name, rel.EdgeModel)
				}
			}
		}
	}
	return nil
}

// checkAcyclic rejects cycles in the supertype graph.
func (reg *Registry) checkAcyclic() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(reg.declared))

	var visit func(label string) error
	visit = func(label string) error {
		switch state[label] {
		case visiting:
			return fmt.Errorf("%w: supertype cycle through %q", ErrConflict, label)
		case done:
			return nil
		}
		state[label] = visiting
		for _, super := range reg.declared[label].Supertypes {
			if err := visit(super); err != nil {
				return err
			}
		}
		state[label] = done
		return nil
	}

	for label := range reg.declared {
		if err := visit(label); err != nil {
			return err
		}
	}
	return nil
}

// buildSubclassClosure computes the transitive subclass set for every model.
func (reg *Registry) buildSubclassClosure() {
	children := make(map[string][]string)
	for label, d := range reg.declared {
		for _, super := range d.Supertypes {
			children[super] = append(children[super], label)
		}
	}

	var collect func(label string, seen map[string]bool)
	collect = func(label string, seen map[string]bool) {
		for _, child := range children[label] {
			if !seen[child] {
				seen[child] = true
				collect(child, seen)
			}
		}
	}

	for label := range reg.declared {
		seen := make(map[string]bool)
		collect(label, seen)
		reg.subclasses[label] = sortedKeys(seen)
	}
}

// buildTraitMembership computes member sets per trait. A heritable trait
// reaches every subclass of a declaring model, including classes registered
// with no knowledge of the trait; a non-heritable trait stops at the
// declaring models.
func (reg *Registry) buildTraitMembership() {
	for traitLabel, trait := range reg.traits {
		members := make(map[string]bool)
		for label, d := range reg.declared {
			if !containsString(d.Traits, traitLabel) {
				continue
			}
			members[label] = true
			if trait.Heritable {
				for _, sub := range reg.subclasses[label] {
					members[sub] = true
				}
			}
		}
		reg.traitMembers[traitLabel] = sortedKeys(members)
	}
}

// resolveModel builds the effective (inheritance-merged) model for a label.
// Supertypes are resolved first; the merge is depth-first with earlier
// supertypes taking precedence, and a model's own declarations override
// anything inherited.
func (reg *Registry) resolveModel(label string, resolved map[string]bool) error {
	if resolved[label] {
		return nil
	}
	d := reg.declared[label]

	for _, super := range d.Supertypes {
		if err := reg.resolveModel(super, resolved); err != nil {
			return err
		}
	}

	m := &Model{
		Label:                label,
		Abstract:             d.Abstract,
		AllowReferenceCreate: d.AllowReferenceCreate,
	}

	// Transitive supertypes, nearest-first, deduplicated.
	seenSupers := make(map[string]bool)
	for _, super := range d.Supertypes {
		if !seenSupers[super] {
			seenSupers[super] = true
			m.AllSupertypes = append(m.AllSupertypes, super)
		}
		for _, ancestor := range reg.models[super].AllSupertypes {
			if !seenSupers[ancestor] {
				seenSupers[ancestor] = true
				m.AllSupertypes = append(m.AllSupertypes, ancestor)
			}
		}
	}

	// Trait membership: own traits plus heritable traits from ancestors.
	seenTraits := make(map[string]bool)
	for _, trait := range d.Traits {
		if !seenTraits[trait] {
			seenTraits[trait] = true
			m.AllTraits = append(m.AllTraits, trait)
		}
	}
	for _, super := range m.AllSupertypes {
		for _, trait := range reg.declared[super].Traits {
			if reg.traits[trait].Heritable && !seenTraits[trait] {
				seenTraits[trait] = true
				m.AllTraits = append(m.AllTraits, trait)
			}
		}
	}

	m.Labels = append([]string{label}, m.AllSupertypes...)
	m.Labels = append(m.Labels, m.AllTraits...)

	// Inherited members first, own declarations overriding by name.
	for _, super := range d.Supertypes {
		sm := reg.models[super]
		for i := range sm.Fields {
			if _, ok := m.Field(sm.Fields[i].Name); !ok {
				m.Fields = append(m.Fields, sm.Fields[i])
			}
		}
		for _, rel := range sm.Relations {
			if _, ok := m.Relation(rel.Name); !ok {
				inherited := *rel
				m.Relations = append(m.Relations, &inherited)
			}
		}
		for i := range sm.Embedded {
			if _, ok := m.EmbeddedField(sm.Embedded[i].Name); !ok {
				m.Embedded = append(m.Embedded, sm.Embedded[i])
			}
		}
		m.Bindings = append(m.Bindings, sm.Bindings...)
	}

	for i := range d.Fields {
		m.Fields = replaceOrAppendField(m.Fields, d.Fields[i])
	}
	for i := range d.Relations {
		rel := &Relation{RelationDescriptor: d.Relations[i], DeclaredOn: label}
		m.Relations = replaceOrAppendRelation(m.Relations, rel)
	}
	for i := range d.Embedded {
		m.Embedded = replaceOrAppendEmbedded(m.Embedded, d.Embedded[i])
	}
	m.Bindings = append(m.Bindings, d.Bindings...)

	reg.models[label] = m
	resolved[label] = true
	return nil
}

func replaceOrAppendField(fields []FieldDescriptor, f FieldDescriptor) []FieldDescriptor {
	for i := range fields {
		if fields[i].Name == f.Name {
			fields[i] = f
			return fields
		}
	}
	return append(fields, f)
}

func replaceOrAppendRelation(rels []*Relation, r *Relation) []*Relation {
	for i := range rels {
		if rels[i].Name == r.Name {
			rels[i] = r
			return rels
		}
	}
	return append(rels, r)
}

func replaceOrAppendEmbedded(embs []EmbeddedFieldDescriptor, e EmbeddedFieldDescriptor) []EmbeddedFieldDescriptor {
	for i := range embs {
		if embs[i].Name == e.Name {
			embs[i] = e
			return embs
		}
	}
	return append(embs, e)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
