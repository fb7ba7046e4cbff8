package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/pkg/apperror"
)

// reverseEmbeddedType names the structural edge as seen from the embedded
// node; reverse navigation from an embedded node resolves to its parent.
const reverseEmbeddedType = "embedded_in"

// Compiler translates write requests into Plans against the resolved
// schema. It is stateless apart from the registry and safe for concurrent
// use.
type Compiler struct {
	registry *schema.Registry
}

// NewCompiler creates a compiler over a finalized registry.
func NewCompiler(registry *schema.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// headRef identifies the top-level entity owning a contained node.
type headRef struct {
	id    uuid.UUID
	label string
}

func (h *headRef) apply(n *Node) {
	if h != nil {
		id := h.id
		label := h.label
		n.HeadID = &id
		n.HeadType = &label
	}
}

// CompileCreate builds the plan for creating one top-level entity with all
// its embedded children, inline-created targets and reference stubs.
func (c *Compiler) CompileCreate(req *CreateRequest) (*Plan, error) {
	m, ok := c.registry.Model(req.Label)
	if !ok {
		return nil, apperror.NewBadRequest(fmt.Sprintf("no model %q", req.Label))
	}
	if c.registry.IsAbstract(req.Label) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("%q is abstract and cannot be created", req.Label))
	}

	plan := &Plan{}
	rootID, err := c.compileCreateNode(plan, m, req, nil)
	if err != nil {
		return nil, err
	}
	plan.RootID = rootID
	return plan, nil
}

// compileCreateNode appends the insert for one node plus everything hanging
// off it. head is nil for the top node; every contained node receives the
// top node's identity (or the top node's own head when it is itself
// contained, which cannot happen on the create path since compilation starts
// at a head).
func (c *Compiler) compileCreateNode(plan *Plan, m *schema.Model, req *CreateRequest, head *headRef) (uuid.UUID, error) {
	if err := validateFields(m, req.Fields, true); err != nil {
		return uuid.Nil, err
	}

	node := &Node{
		ID:         NewNodeID(),
		Label:      m.Label,
		Labels:     m.Labels,
		Properties: FlattenFields(m, req.Fields),
		URIs:       req.URIs,
	}
	head.apply(node)
	plan.Inserts = append(plan.Inserts, node)

	childHead := head
	if childHead == nil {
		childHead = &headRef{id: node.ID, label: m.Label}
	}

	if err := c.compileEmbedded(plan, m, req.Embedded, node.ID, childHead); err != nil {
		return uuid.Nil, err
	}

	applyBindings(m, req)

	for name, targets := range req.Relations {
		rel, ok := m.Relation(name)
		if !ok {
			return uuid.Nil, apperror.NewValidation(fieldErrors{
				name: fmt.Sprintf("no relation %q on %s", name, m.Label),
			})
		}
		for i := range targets {
			if err := c.compileRelationTarget(plan, rel, node.ID, childHead, &targets[i]); err != nil {
				return uuid.Nil, err
			}
		}
	}

	return node.ID, nil
}

func (c *Compiler) compileEmbedded(plan *Plan, m *schema.Model, embedded map[string][]CreateRequest, parentID uuid.UUID, head *headRef) error {
	for name, children := range embedded {
		emb, ok := m.EmbeddedField(name)
		if !ok {
			return apperror.NewValidation(fieldErrors{
				name: fmt.Sprintf("no embedded field %q on %s", name, m.Label),
			})
		}
		allowed, err := c.embeddedAllowed(emb)
		if err != nil {
			return err
		}
		for i := range children {
			child := &children[i]
			if !containsLabel(allowed, child.Label) {
				return apperror.NewValidation(fieldErrors{
					name: fmt.Sprintf("label %q not permitted in embedded field %q", child.Label, name),
				})
			}
			cm, _ := c.registry.Model(child.Label)
			childID, err := c.compileCreateNode(plan, cm, child, head)
			if err != nil {
				return err
			}
			plan.Edges = append(plan.Edges, &Edge{
				ID:          NewNodeID(),
				Type:        name,
				ReverseType: reverseEmbeddedType,
				SrcID:       parentID,
				DstID:       childID,
				Embedded:    true,
			})
		}
	}
	return nil
}

// embeddedAllowed expands an embedded field's permitted labels to their
// concrete label families.
func (c *Compiler) embeddedAllowed(emb *schema.EmbeddedFieldDescriptor) ([]string, error) {
	spec := make(schema.TargetSpec, len(emb.Allowed))
	for i, label := range emb.Allowed {
		spec[i] = schema.TargetRef{Kind: schema.TargetModel, Label: label}
	}
	labels, err := c.registry.ConcreteTargets(spec)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return labels, nil
}

// compileRelationTarget resolves one relation object and appends its edge,
// injecting the reified intermediate hop when the relation declares one.
// Object addressing precedence: explicit identifier, then URIs, then inline
// create.
func (c *Compiler) compileRelationTarget(plan *Plan, rel *schema.Relation, subjectID uuid.UUID, head *headRef, target *RelationTarget) error {
	if err := validateEdgeProperties(rel, target.EdgeProperties); err != nil {
		return err
	}

	if rel.ReifiedModel != nil {
		return c.compileReifiedTarget(plan, rel, subjectID, head, target)
	}

	objectID, err := c.resolveObject(plan, rel, head, target)
	if err != nil {
		return err
	}

	plan.Edges = append(plan.Edges, &Edge{
		ID:          NewNodeID(),
		Type:        rel.Name,
		ReverseType: rel.ReverseName,
		SrcID:       subjectID,
		DstID:       objectID,
		Properties:  target.EdgeProperties,
	})

	if len(rel.SupertypeChain) > 0 {
		plan.Shortcuts = append(plan.Shortcuts, ShortcutSpec{
			SrcID: subjectID,
			DstID: objectID,
			Chain: rel.SupertypeChain,
		})
	}
	return nil
}

// compileReifiedTarget writes subject → reified node → object. The reified
// intermediate is a contained node and carries the subject's head.
func (c *Compiler) compileReifiedTarget(plan *Plan, rel *schema.Relation, subjectID uuid.UUID, head *headRef, target *RelationTarget) error {
	rm := rel.ReifiedModel
	if err := validateFields(rm, target.Fields, false); err != nil {
		return err
	}

	reified := &Node{
		ID:         NewNodeID(),
		Label:      rm.Label,
		Labels:     rm.Labels,
		Properties: FlattenFields(rm, target.Fields),
	}
	head.apply(reified)
	plan.Inserts = append(plan.Inserts, reified)

	plan.Edges = append(plan.Edges, &Edge{
		ID:          NewNodeID(),
		Type:        rel.Name,
		ReverseType: rel.ReverseName,
		SrcID:       subjectID,
		DstID:       reified.ID,
		Properties:  target.EdgeProperties,
	})

	if len(rel.SupertypeChain) > 0 {
		plan.Shortcuts = append(plan.Shortcuts, ShortcutSpec{
			SrcID: subjectID,
			DstID: reified.ID,
			Chain: rel.SupertypeChain,
		})
	}

	targetRel, ok := rm.Relation(schema.TargetRelationName)
	if !ok {
		return apperror.ErrInternal.WithMessage(
			fmt.Sprintf("reified model %q has no %s relation", rm.Label, schema.TargetRelationName))
	}
	inner := RelationTarget{
		ID:     target.ID,
		Label:  target.Label,
		URIs:   target.URIs,
		Create: target.Create,
	}
	return c.compileRelationTarget(plan, targetRel, reified.ID, head, &inner)
}

// resolveObject returns the object node identifier for one relation target,
// producing a check for existing references, a RefNode for URI
// reference-creation, or the recursive inline create.
func (c *Compiler) resolveObject(plan *Plan, rel *schema.Relation, head *headRef, target *RelationTarget) (uuid.UUID, error) {
	switch {
	case target.ID != nil:
		plan.Checks = append(plan.Checks, TargetCheck{
			NodeID:   *target.ID,
			Relation: rel.Name,
			Allowed:  rel.TargetLabels,
		})
		return *target.ID, nil

	case len(target.URIs) > 0:
		label := target.Label
		if label == "" && target.Create != nil {
			label = target.Create.Label
		}
		if label == "" {
			return uuid.Nil, apperror.NewValidation(fieldErrors{
				rel.Name: "reference-creation by URI requires a label",
			})
		}
		if !rel.HasTarget(label) {
			return uuid.Nil, c.narrowingError(rel, label)
		}
		tm, _ := c.registry.Model(label)
		if !tm.AllowReferenceCreate {
			return uuid.Nil, apperror.NewValidation(fieldErrors{
				rel.Name: fmt.Sprintf("%q does not allow reference-creation", label),
			})
		}
		stub := &Node{
			ID:         NewNodeID(),
			Label:      tm.Label,
			Labels:     tm.Labels,
			Properties: map[string]any{},
			URIs:       target.URIs,
		}
		plan.Refs = append(plan.Refs, &RefNode{Node: stub, URIs: target.URIs})
		return stub.ID, nil

	case target.Create != nil:
		if !rel.CreateInline {
			return uuid.Nil, apperror.NewValidation(fieldErrors{
				rel.Name: "relation does not allow inline creation",
			})
		}
		if !rel.HasTarget(target.Create.Label) {
			return uuid.Nil, c.narrowingError(rel, target.Create.Label)
		}
		cm, _ := c.registry.Model(target.Create.Label)
		return c.compileCreateNode(plan, cm, target.Create, head)

	default:
		return uuid.Nil, apperror.NewValidation(fieldErrors{
			rel.Name: "target requires an id, uris, or an inline create payload",
		})
	}
}

func (c *Compiler) narrowingError(rel *schema.Relation, label string) error {
	return apperror.NewValidation(fieldErrors{
		rel.Name: fmt.Sprintf("label %q is not a permitted target (allowed: %v)", label, rel.TargetLabels),
	})
}

// applyBindings copies declared bound-field values from one relation's
// targets onto sibling relations' inline-create payloads. This runs before
// the dependent nested creates are compiled, never after.
func applyBindings(m *schema.Model, req *CreateRequest) {
	for _, b := range m.Bindings {
		value, ok := bindingSource(req.Relations[b.FromRelation], b.FromField)
		if !ok {
			continue
		}
		for i := range req.Relations[b.ToRelation] {
			t := &req.Relations[b.ToRelation][i]
			if t.Create == nil {
				continue
			}
			if t.Create.Fields == nil {
				t.Create.Fields = make(map[string]any)
			}
			if _, set := t.Create.Fields[b.ToField]; !set {
				t.Create.Fields[b.ToField] = value
			}
		}
	}
}

func bindingSource(targets []RelationTarget, field string) (any, bool) {
	for i := range targets {
		if targets[i].Create != nil {
			if v, ok := targets[i].Create.Fields[field]; ok {
				return v, true
			}
		}
		if v, ok := targets[i].Fields[field]; ok {
			return v, true
		}
	}
	return nil, false
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
