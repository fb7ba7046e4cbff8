package graph

import "github.com/google/uuid"

// CreateRequest is the write payload for one node, top-level or nested.
type CreateRequest struct {
	Label string `json:"label"`

	// Fields holds scalar, list and multi-key values keyed by field name;
	// multi-key values are maps of sub-key name to value.
	Fields map[string]any `json:"fields,omitempty"`

	// Embedded holds child payloads per embedded field.
	Embedded map[string][]CreateRequest `json:"embedded,omitempty"`

	// Relations holds targets per relation name.
	Relations map[string][]RelationTarget `json:"relations,omitempty"`

	// URIs are external identifiers attached to the node; for
	// reference-creation they are also the match key.
	URIs []string `json:"uris,omitempty"`
}

// RelationTarget addresses the object of one relation write. Exactly one of
// ID, URIs or Create identifies the object; when several are supplied an
// explicit ID wins over URIs, and URIs win over an inline create.
type RelationTarget struct {
	// ID references an existing node.
	ID *uuid.UUID `json:"id,omitempty"`

	// Label is the object's model label. Required for the URI
	// reference-creation path; implied by Create.Label otherwise.
	Label string `json:"label,omitempty"`

	// URIs matches or creates a reference stub for a model that allows
	// reference-creation.
	URIs []string `json:"uris,omitempty"`

	// Create is the inline-create payload, valid only on relations marked
	// inline-creatable. On inline-editable relation updates it doubles as
	// the patch payload when ID is also set.
	Create *CreateRequest `json:"create,omitempty"`

	// Fields populates the reified intermediate node when the relation is
	// declared through a reified template.
	Fields map[string]any `json:"fields,omitempty"`

	// EdgeProperties are stored on the edge itself, validated against the
	// relation's edge model.
	EdgeProperties map[string]any `json:"edge_properties,omitempty"`
}

// UpdateRequest is the patch payload for an existing node. Fields present
// replace the stored value wholesale (for multi-key fields, all sub-keys);
// relations present replace the full target set unless the relation is
// inline-editable, in which case targets are diffed by identifier.
type UpdateRequest struct {
	Fields    map[string]any              `json:"fields,omitempty"`
	Embedded  map[string][]CreateRequest  `json:"embedded,omitempty"`
	Relations map[string][]RelationTarget `json:"relations,omitempty"`
	URIs      []string                    `json:"uris,omitempty"`
}

// NodeView is the read projection of a node. The head view carries identity
// and URIs; nested views omit URIs and carry the identifier only for
// addressable (non-embedded) nodes.
type NodeView struct {
	ID        uuid.UUID             `json:"id,omitzero"`
	Label     string                `json:"label"`
	URIs      []string              `json:"uris,omitempty"`
	Fields    map[string]any        `json:"fields,omitempty"`
	Embedded  map[string][]NodeView `json:"embedded,omitempty"`
	Relations map[string][]EdgeView `json:"relations,omitempty"`
}

// EdgeView is one resolved relation target in a read projection.
type EdgeView struct {
	Target         NodeView       `json:"target"`
	EdgeProperties map[string]any `json:"edge_properties,omitempty"`
	Shortcut       bool           `json:"shortcut,omitempty"`
}

// ListResult is a paginated label-family listing.
type ListResult struct {
	Count   int        `json:"count"`
	Results []NodeView `json:"results"`
}
