package schema

import "fmt"

// ReifiedLabel returns the synthesized label for a template instantiation,
// e.g. "Identification[Person]".
func ReifiedLabel(template, arg string) string {
	return template + "[" + arg + "]"
}

// ExpandReified instantiates a reified template with a concrete model
// argument, substituting the argument for the template's type parameter and
// resolving every relation. Expansion is deterministic and memoized; two
// relations instantiating the same template with the same argument share
// one synthesized model.
//
// Only concrete model arguments are valid: a trait or type-parameter
// argument returns ErrInvalidReification.
func (reg *Registry) ExpandReified(templateLabel string, arg TargetRef) (*Model, error) {
	tpl, ok := reg.templates[templateLabel]
	if !ok {
		return nil, fmt.Errorf("%w: no template %q", ErrUnresolvedTarget, templateLabel)
	}
	if arg.Kind != TargetModel {
		return nil, fmt.Errorf("%w: template %q instantiated with %s argument %q",
			ErrInvalidReification, templateLabel, arg.Kind, arg.Label)
	}
	if _, ok := reg.declared[arg.Label]; !ok {
		return nil, fmt.Errorf("%w: no model %q", ErrUnresolvedTarget, arg.Label)
	}

	key := ReifiedLabel(templateLabel, arg.Label)
	if m, ok := reg.reifyCache.Get(key); ok {
		return m, nil
	}

	m := &Model{
		Label:   key,
		Labels:  []string{key, templateLabel},
		Fields:  tpl.Fields,
		Reified: true,
	}

	for i := range tpl.Relations {
		rel := &Relation{
			RelationDescriptor: tpl.Relations[i],
			DeclaredOn:         key,
		}
		rel.Targets = substituteTypeParam(rel.Targets, arg)
		if rel.ReifiedTemplate != "" {
			if rel.ReifiedArg.Kind == TargetTypeParam {
				rel.ReifiedArg = arg
			}
			nested, err := reg.ExpandReified(rel.ReifiedTemplate, rel.ReifiedArg)
			if err != nil {
				return nil, err
			}
			rel.ReifiedModel = nested
			target, _ := nested.Relation(TargetRelationName)
			rel.TargetLabels = target.TargetLabels
		} else {
			labels, err := reg.ConcreteTargets(rel.Targets)
			if err != nil {
				return nil, fmt.Errorf("template %q relation %q: %w", templateLabel, rel.Name, err)
			}
			rel.TargetLabels = labels
		}
		if len(rel.TargetLabels) == 0 && !rel.Optional {
			return nil, fmt.Errorf("%w: template %q relation %q resolves to an empty target set with argument %q",
				ErrConflict, templateLabel, rel.Name, arg.Label)
		}
		if rel.EdgeModel != "" {
			em, ok := reg.models[rel.EdgeModel]
			if !ok {
				return nil, fmt.Errorf("%w: template %q relation %q uses unknown edge model %q",
					ErrUnresolvedTarget, templateLabel, rel.Name, rel.EdgeModel)
			}
			rel.EdgeFields = em.Fields
		}
		m.Relations = append(m.Relations, rel)
	}

	reg.reifyCache.Add(key, m)
	return m, nil
}

// substituteTypeParam replaces type-parameter refs in a template relation's
// target spec with the expansion argument.
func substituteTypeParam(spec TargetSpec, arg TargetRef) TargetSpec {
	out := make(TargetSpec, len(spec))
	for i, ref := range spec {
		if ref.Kind == TargetTypeParam {
			out[i] = arg
		} else {
			out[i] = ref
		}
	}
	return out
}
