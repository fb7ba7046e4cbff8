package graph

import "github.com/google/uuid"

// Plan is an ordered batch of store operations produced by the Compiler and
// executed by the Repository in one transaction. Operation order inside the
// transaction: reference resolution, target checks, node inserts, node
// updates, edge deletes, edge inserts, node deletes. Shortcuts are not part
// of the transaction; the service defers them to the queue after commit.
type Plan struct {
	// RootID is the identifier of the top node of a create, or the patched
	// node of an update.
	RootID uuid.UUID

	// Refs are reference-creations: match an existing live node by URI, or
	// insert the stub. A match remaps the stub's identifier everywhere it
	// appears in the plan.
	Refs []*RefNode

	// Checks verify that referenced existing nodes are live and carry an
	// allowed label before any edge pointing at them is written.
	Checks []TargetCheck

	Inserts []*Node
	Updates []NodeUpdate

	EdgeDeletes []EdgeDelete
	Edges       []*Edge

	// Deletes lists node identifiers to delete; the repository cascades to
	// every node carrying them as head and to all touching edges.
	Deletes []uuid.UUID

	// Shortcuts are the deferred shortcut-edge writes derived from
	// subclassed relations written by this plan.
	Shortcuts []ShortcutSpec
}

// RefNode is one reference-creation: the stub to insert when no live node
// matches any of the URIs.
type RefNode struct {
	Node *Node
	URIs []string
}

// TargetCheck asserts that a referenced node exists, is not deleted, and
// carries one of the relation's allowed target labels.
type TargetCheck struct {
	NodeID   uuid.UUID
	Relation string
	Allowed  []string
}

// NodeUpdate replaces stored property keys on one node. Set keys are
// written, Unset keys removed (stale multi-key sub-properties). SetURIs
// replaces the URI set when non-nil.
type NodeUpdate struct {
	ID      uuid.UUID
	Set     map[string]any
	Unset   []string
	SetURIs []string
}

// EdgeDelete removes edges of one type leaving a node. Shortcut selects
// inferred edges instead of authored ones.
type EdgeDelete struct {
	SrcID    uuid.UUID
	Type     string
	Shortcut bool
}
