package schema

import (
	"fmt"
	"sort"
)

// ConcreteTargets expands a target specification to the sorted set of
// concrete (instantiable) labels it covers: each model ref contributes
// itself plus its transitive subclasses, each trait ref contributes its
// member family. Abstract models are excluded; their subclasses are not.
func (reg *Registry) ConcreteTargets(spec TargetSpec) ([]string, error) {
	set := make(map[string]bool)
	for _, ref := range spec {
		switch ref.Kind {
		case TargetModel:
			d, ok := reg.declared[ref.Label]
			if !ok {
				return nil, fmt.Errorf("%w: no model %q", ErrUnresolvedTarget, ref.Label)
			}
			if !d.Abstract {
				set[ref.Label] = true
			}
			for _, sub := range reg.subclasses[ref.Label] {
				if !reg.declared[sub].Abstract {
					set[sub] = true
				}
			}
		case TargetTrait:
			if _, ok := reg.traits[ref.Label]; !ok {
				return nil, fmt.Errorf("%w: no trait %q", ErrUnresolvedTarget, ref.Label)
			}
			for _, member := range reg.traitMembers[ref.Label] {
				if !reg.declared[member].Abstract {
					set[member] = true
				}
			}
		case TargetTypeParam:
			return nil, fmt.Errorf("%w: type parameter outside template expansion", ErrUnresolvedTarget)
		default:
			return nil, fmt.Errorf("%w: unknown target kind %q", ErrUnresolvedTarget, ref.Kind)
		}
	}
	return sortedKeys(set), nil
}

// resolveRelations resolves every relation on a model: target expansion,
// edge-model fields, reified template expansion, subclassed-relation chains
// and narrowing validation. Relations subsumed by a subclassing relation are
// removed from the effective set afterwards.
func (reg *Registry) resolveRelations(m *Model) error {
	chained := make(map[string]bool)

	for _, rel := range m.Relations {
		if err := reg.resolveRelationTargets(m, rel); err != nil {
			return err
		}
	}

	// Chains reference sibling relations, so targets resolve first.
	for _, rel := range m.Relations {
		if err := reg.resolveChain(m, rel, chained); err != nil {
			return err
		}
		for _, ref := range rel.SupertypeChain {
			chained[ref.Name] = true
		}
	}

	if len(chained) > 0 {
		kept := m.Relations[:0]
		for _, rel := range m.Relations {
			if !chained[rel.Name] {
				kept = append(kept, rel)
			}
		}
		m.Relations = kept
	}
	return nil
}

func (reg *Registry) resolveRelationTargets(m *Model, rel *Relation) error {
	if rel.ReifiedTemplate != "" {
		expanded, err := reg.ExpandReified(rel.ReifiedTemplate, rel.ReifiedArg)
		if err != nil {
			return fmt.Errorf("relation %q.%q: %w", m.Label, rel.Name, err)
		}
		rel.ReifiedModel = expanded
		target, _ := expanded.Relation(TargetRelationName)
		rel.TargetLabels = target.TargetLabels
	} else {
		labels, err := reg.ConcreteTargets(rel.Targets)
		if err != nil {
			return fmt.Errorf("relation %q.%q: %w", m.Label, rel.Name, err)
		}
		rel.TargetLabels = labels
	}

	if len(rel.TargetLabels) == 0 && !rel.Optional {
		return fmt.Errorf("%w: relation %q.%q resolves to an empty target set",
			ErrConflict, m.Label, rel.Name)
	}

	if rel.EdgeModel != "" {
		em := reg.models[rel.EdgeModel]
		rel.EdgeFields = em.Fields
	}
	return nil
}

// resolveChain builds the supertype chain for a subclassing relation:
// the named ancestor relations, most specific first, each followed by its
// own chain. The subclassing relation's targets must be a subset of every
// ancestor's targets.
func (reg *Registry) resolveChain(m *Model, rel *Relation, _ map[string]bool) error {
	if len(rel.SubclassesRelations) == 0 || rel.SupertypeChain != nil {
		return nil
	}

	seen := make(map[string]bool)
	for _, ancestorName := range rel.SubclassesRelations {
		ancestor, ok := m.Relation(ancestorName)
		if !ok {
			return fmt.Errorf("%w: relation %q.%q subclasses unknown relation %q",
				ErrUnresolvedTarget, m.Label, rel.Name, ancestorName)
		}
		if ancestor == rel {
			return fmt.Errorf("%w: relation %q.%q subclasses itself",
				ErrConflict, m.Label, rel.Name)
		}
		if err := reg.resolveChain(m, ancestor, nil); err != nil {
			return err
		}
		if !isSubset(rel.TargetLabels, ancestor.TargetLabels) {
			return fmt.Errorf("%w: relation %q.%q targets %v, not a subset of %q targets %v",
				ErrConflict, m.Label, rel.Name, rel.TargetLabels, ancestorName, ancestor.TargetLabels)
		}
		if !seen[ancestor.Name] {
			seen[ancestor.Name] = true
			rel.SupertypeChain = append(rel.SupertypeChain,
				RelationRef{Name: ancestor.Name, ReverseName: ancestor.ReverseName})
		}
		for _, ref := range ancestor.SupertypeChain {
			if !seen[ref.Name] {
				seen[ref.Name] = true
				rel.SupertypeChain = append(rel.SupertypeChain, ref)
			}
		}
	}
	return nil
}

// isSubset reports whether every element of sub is in super. Both slices
// are sorted.
func isSubset(sub, super []string) bool {
	for _, s := range sub {
		i := sort.SearchStrings(super, s)
		if i >= len(super) || super[i] != s {
			return false
		}
	}
	return true
}
