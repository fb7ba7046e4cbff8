package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/pkg/apperror"
)

// ExistingState is the current nested shape of a node, fetched by the
// service before compiling an update: the inline-editable relation targets
// and embedded children the patch is diffed against. Children carries the
// state of targets the request patches by identifier, so nested patches
// diff against their own current shape rather than an empty one.
type ExistingState struct {
	Relations map[string][]ExistingTarget
	Embedded  map[string][]uuid.UUID
	Children  map[uuid.UUID]*ExistingState
}

// child returns the nested state for one patched target.
func (s *ExistingState) child(id uuid.UUID) *ExistingState {
	if c, ok := s.Children[id]; ok && c != nil {
		return c
	}
	return &ExistingState{}
}

// ExistingTarget is one currently related node, with the properties stored
// on its edge.
type ExistingTarget struct {
	ID             uuid.UUID
	Label          string
	EdgeProperties map[string]any
}

// CompileUpdate builds the plan for patching one node. Present fields
// replace the stored value wholesale; present relations replace the full
// target set, except inline-editable relations which diff by identifier:
// matched targets are patched in place, absent ones created, and targets
// present before but missing from the request are deleted with cascade.
func (c *Compiler) CompileUpdate(label string, id uuid.UUID, req *UpdateRequest, existing *ExistingState) (*Plan, error) {
	m, ok := c.registry.Model(label)
	if !ok {
		return nil, apperror.NewBadRequest(fmt.Sprintf("no model %q", label))
	}
	if existing == nil {
		existing = &ExistingState{}
	}

	plan := &Plan{RootID: id}
	if err := c.compileUpdateNode(plan, m, id, req, existing, &headRef{id: id, label: label}); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *Compiler) compileUpdateNode(plan *Plan, m *schema.Model, id uuid.UUID, req *UpdateRequest, existing *ExistingState, head *headRef) error {
	if err := validateFields(m, req.Fields, false); err != nil {
		return err
	}

	upd := NodeUpdate{
		ID:      id,
		Set:     FlattenFields(m, req.Fields),
		SetURIs: req.URIs,
	}
	// Replacing a multi-key field clears sub-keys the new value omits.
	for name := range req.Fields {
		fd, ok := m.Field(name)
		if !ok || fd.Kind != schema.FieldMultiKey {
			continue
		}
		for _, key := range multiKeyPropertyKeys(fd) {
			if _, set := upd.Set[key]; !set {
				upd.Unset = append(upd.Unset, key)
			}
		}
	}
	plan.Updates = append(plan.Updates, upd)

	if err := c.updateEmbedded(plan, m, req, existing, id, head); err != nil {
		return err
	}

	for name, targets := range req.Relations {
		rel, ok := m.Relation(name)
		if !ok {
			return apperror.NewValidation(fieldErrors{
				name: fmt.Sprintf("no relation %q on %s", name, m.Label),
			})
		}
		var err error
		if rel.EditInline {
			err = c.patchRelation(plan, rel, id, head, targets, existing)
		} else {
			err = c.replaceRelation(plan, rel, id, head, targets)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// updateEmbedded replaces the embedded children of each field present in
// the request: previous children are deleted (the repository cascades over
// their structural edges, since grandchildren point at the top head) and
// the new payloads created.
func (c *Compiler) updateEmbedded(plan *Plan, m *schema.Model, req *UpdateRequest, existing *ExistingState, id uuid.UUID, head *headRef) error {
	for name := range req.Embedded {
		for _, prev := range existing.Embedded[name] {
			plan.Deletes = append(plan.Deletes, prev)
		}
	}
	return c.compileEmbedded(plan, m, req.Embedded, id, head)
}

// replaceRelation swaps the full target set: authored edges of the relation
// and the shortcut edges of its ancestor chain are removed, then the new
// targets compiled as on create.
func (c *Compiler) replaceRelation(plan *Plan, rel *schema.Relation, subjectID uuid.UUID, head *headRef, targets []RelationTarget) error {
	plan.EdgeDeletes = append(plan.EdgeDeletes, EdgeDelete{SrcID: subjectID, Type: rel.Name})
	for _, ref := range rel.SupertypeChain {
		plan.EdgeDeletes = append(plan.EdgeDeletes, EdgeDelete{
			SrcID:    subjectID,
			Type:     ref.Name,
			Shortcut: true,
		})
	}
	for i := range targets {
		if err := c.compileRelationTarget(plan, rel, subjectID, head, &targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// patchRelation applies inline-edit semantics: targets matched by
// identifier are patched, new targets created, and previously related nodes
// absent from the request deleted along with their subtrees and shortcut
// edges.
func (c *Compiler) patchRelation(plan *Plan, rel *schema.Relation, subjectID uuid.UUID, head *headRef, targets []RelationTarget, state *ExistingState) error {
	existing := state.Relations[rel.Name]
	current := make(map[uuid.UUID]ExistingTarget, len(existing))
	for _, t := range existing {
		current[t.ID] = t
	}

	requested := make(map[uuid.UUID]bool, len(targets))
	patchedProps := make(map[uuid.UUID]map[string]any)
	for i := range targets {
		t := &targets[i]
		if t.ID != nil {
			if prev, known := current[*t.ID]; known {
				requested[*t.ID] = true
				if t.EdgeProperties != nil {
					if err := validateEdgeProperties(rel, t.EdgeProperties); err != nil {
						return err
					}
					patchedProps[*t.ID] = t.EdgeProperties
				}
				if t.Create != nil {
					tm, ok := c.registry.Model(prev.Label)
					if !ok {
						return apperror.ErrInternal.WithMessage(
							fmt.Sprintf("related node %s has unknown label %q", prev.ID, prev.Label))
					}
					patch := &UpdateRequest{
						Fields:    t.Create.Fields,
						Embedded:  t.Create.Embedded,
						Relations: t.Create.Relations,
						URIs:      t.Create.URIs,
					}
					if err := c.compileUpdateNode(plan, tm, prev.ID, patch, state.child(prev.ID), head); err != nil {
						return err
					}
				}
				continue
			}
		}
		// Unknown identifier or no identifier: treat as a new target.
		if err := c.compileRelationTarget(plan, rel, subjectID, head, t); err != nil {
			return err
		}
	}

	removed := false
	for _, prev := range existing {
		if !requested[prev.ID] {
			removed = true
			plan.Deletes = append(plan.Deletes, prev.ID)
		}
	}
	if !removed && len(patchedProps) == 0 {
		return nil
	}

	// Edge deletion is by type, so edges to surviving targets are rewritten
	// carrying their stored (or freshly supplied) properties, and their
	// shortcut edges re-emitted (the deferred write is idempotent).
	plan.EdgeDeletes = append(plan.EdgeDeletes, EdgeDelete{SrcID: subjectID, Type: rel.Name})
	for _, ref := range rel.SupertypeChain {
		plan.EdgeDeletes = append(plan.EdgeDeletes, EdgeDelete{
			SrcID:    subjectID,
			Type:     ref.Name,
			Shortcut: true,
		})
	}
	for _, prev := range existing {
		if !requested[prev.ID] {
			continue
		}
		props := prev.EdgeProperties
		if p, ok := patchedProps[prev.ID]; ok {
			props = p
		}
		plan.Edges = append(plan.Edges, &Edge{
			ID:          NewNodeID(),
			Type:        rel.Name,
			ReverseType: rel.ReverseName,
			SrcID:       subjectID,
			DstID:       prev.ID,
			Properties:  props,
		})
		if len(rel.SupertypeChain) > 0 {
			plan.Shortcuts = append(plan.Shortcuts, ShortcutSpec{
				SrcID: subjectID,
				DstID: prev.ID,
				Chain: rel.SupertypeChain,
			})
		}
	}
	return nil
}

// CompileDelete builds the plan for deleting one node. The repository
// cascades to every node carrying it in its head chain and to all touching
// edges, including shortcut edges.
func (c *Compiler) CompileDelete(id uuid.UUID) *Plan {
	return &Plan{RootID: id, Deletes: []uuid.UUID{id}}
}
