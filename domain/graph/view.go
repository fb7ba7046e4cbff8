package graph

import (
	"context"

	"github.com/google/uuid"
)

// FetchView assembles the read projection of a top-level node: its own
// fields with multi-key properties unflattened, then relations and embeds
// resolved recursively to the given depth. The head view carries identity
// and URIs; nested views carry the identifier only when addressable
// (relation targets), and embedded children carry neither.
func (r *Repository) FetchView(ctx context.Context, id uuid.UUID, depth int) (*NodeView, error) {
	node, err := r.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.buildView(ctx, node, depth, true, true)
}

func (r *Repository) buildView(ctx context.Context, node *Node, depth int, head, withID bool) (*NodeView, error) {
	view := &NodeView{
		Label:  node.Label,
		Fields: r.unflatten(node),
	}
	if withID {
		view.ID = node.ID
	}
	if head {
		view.URIs = node.URIs
	}
	if depth <= 0 {
		return view, nil
	}

	edges, err := r.outEdges(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return view, nil
	}

	dstIDs := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		dstIDs = append(dstIDs, e.DstID)
	}
	dsts, err := r.nodesByID(ctx, dstIDs)
	if err != nil {
		return nil, err
	}

	for _, e := range edges {
		dst, ok := dsts[e.DstID]
		if !ok {
			// Target deleted out from under the edge.
			continue
		}
		child, err := r.buildView(ctx, dst, depth-1, false, !e.Embedded)
		if err != nil {
			return nil, err
		}
		if e.Embedded {
			if view.Embedded == nil {
				view.Embedded = make(map[string][]NodeView)
			}
			view.Embedded[e.Type] = append(view.Embedded[e.Type], *child)
		} else {
			if view.Relations == nil {
				view.Relations = make(map[string][]EdgeView)
			}
			view.Relations[e.Type] = append(view.Relations[e.Type], EdgeView{
				Target:         *child,
				EdgeProperties: e.Properties,
			})
		}
	}
	return view, nil
}

// unflatten regroups a node's stored properties into structured field
// values using its model; unknown labels (possible across schema changes)
// fall back to the raw property map.
func (r *Repository) unflatten(node *Node) map[string]any {
	m, ok := r.registry.Model(node.Label)
	if !ok {
		return node.Properties
	}
	return UnflattenProperties(m, node.Properties)
}
