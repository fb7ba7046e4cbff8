// Package graph implements the property-graph store layer: node and edge
// entities, the query compiler that turns requests into ordered operation
// plans, the repository that executes plans transactionally, and the service
// that orchestrates the primary write phase plus the deferred shortcut-edge
// phase.
package graph

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/richardhadden/pangloss/domain/schema"
)

// Node is one graph node. Labels carries the node's own label plus every
// supertype and trait label so label-family matches are array containment
// scans. Contained nodes (embedded, inline-created, reified intermediates)
// carry HeadID/HeadType pointing at their owning top-level entity; the
// pointer is set at creation and never changes.
type Node struct {
	bun.BaseModel `bun:"table:pg.nodes,alias:n"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Label      string         `bun:"label,notnull" json:"label"`
	Labels     []string       `bun:"labels,array" json:"labels"`
	HeadID     *uuid.UUID     `bun:"head_id,type:uuid" json:"head_id,omitempty"`
	HeadType   *string        `bun:"head_type" json:"head_type,omitempty"`
	Properties map[string]any `bun:"properties,type:jsonb" json:"properties"`
	URIs       []string       `bun:"uris,array" json:"uris,omitempty"`
	IsDeleted  bool           `bun:"is_deleted,notnull,default:false" json:"-"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Contained reports whether the node lives inside a head entity.
func (n *Node) Contained() bool {
	return n.HeadID != nil
}

// Edge is one typed, directed edge. ReverseType names the edge as seen from
// the destination, so reverse traversal is a filter rather than a second
// row. Shortcut marks edges inferred from a subclassed relation's ancestor
// chain; Embedded marks the structural parent→embedded edge.
type Edge struct {
	bun.BaseModel `bun:"table:pg.edges,alias:e"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Type        string         `bun:"type,notnull" json:"type"`
	ReverseType string         `bun:"reverse_type,notnull" json:"reverse_type"`
	SrcID       uuid.UUID      `bun:"src_id,type:uuid,notnull" json:"src_id"`
	DstID       uuid.UUID      `bun:"dst_id,type:uuid,notnull" json:"dst_id"`
	Properties  map[string]any `bun:"properties,type:jsonb" json:"properties,omitempty"`
	Shortcut    bool           `bun:"shortcut,notnull,default:false" json:"shortcut"`
	Embedded    bool           `bun:"embedded,notnull,default:false" json:"embedded"`
	IsDeleted   bool           `bun:"is_deleted,notnull,default:false" json:"-"`
	CreatedAt   time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// ShortcutSpec is one deferred shortcut-edge write: for every ancestor
// relation in Chain, an edge with the same endpoints and the shortcut marker
// is written after the primary transaction commits.
type ShortcutSpec struct {
	SrcID uuid.UUID            `json:"src_id"`
	DstID uuid.UUID            `json:"dst_id"`
	Chain []schema.RelationRef `json:"chain"`
}

// ShortcutJob is one row of the deferred shortcut queue.
type ShortcutJob struct {
	bun.BaseModel `bun:"table:pg.shortcut_jobs,alias:sj"`

	ID           uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	Status       string       `bun:"status,notnull,default:'pending'" json:"status"`
	Payload      ShortcutSpec `bun:"payload,type:jsonb" json:"payload"`
	AttemptCount int          `bun:"attempt_count,notnull,default:0" json:"attempt_count"`
	LastError    *string      `bun:"last_error" json:"last_error,omitempty"`
	ScheduledAt  *time.Time   `bun:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt    *time.Time   `bun:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time   `bun:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// NewNodeID allocates a time-sortable globally unique identifier.
func NewNodeID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
