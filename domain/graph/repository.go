package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/internal/config"
	"github.com/richardhadden/pangloss/internal/database"
	"github.com/richardhadden/pangloss/pkg/apperror"
	"github.com/richardhadden/pangloss/pkg/logger"
	"github.com/richardhadden/pangloss/pkg/pgutils"
)

// Repository executes compiled plans and read queries against the store.
// Every read path filters is_deleted in SQL, never in application code.
type Repository struct {
	db             bun.IDB
	registry       *schema.Registry
	physicalDelete bool
	log            *slog.Logger
}

// NewRepository creates a graph repository.
func NewRepository(db bun.IDB, registry *schema.Registry, cfg *config.Config, log *slog.Logger) *Repository {
	return &Repository{
		db:             db,
		registry:       registry,
		physicalDelete: cfg.Graph.PhysicalDelete,
		log:            log.With(logger.Scope("graph.repository")),
	}
}

// PlanResult is the outcome of the primary write phase: the resolved root
// identifier and the shortcut specs with reference stubs remapped to the
// nodes they matched.
type PlanResult struct {
	RootID    uuid.UUID
	Shortcuts []ShortcutSpec
}

// RunPlan executes one plan in a single transaction. Reference-creations
// resolve first; a URI match remaps the stub identifier through the rest of
// the plan, which makes reference-creation idempotent by URI. The
// transaction fails atomically; no partial graph state survives an error.
func (r *Repository) RunPlan(ctx context.Context, plan *Plan) (*PlanResult, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	remap := make(map[uuid.UUID]uuid.UUID)
	mapped := func(id uuid.UUID) uuid.UUID {
		if to, ok := remap[id]; ok {
			return to
		}
		return id
	}

	for _, ref := range plan.Refs {
		var existing Node
		err := tx.NewSelect().
			Model(&existing).
			Column("id").
			Where("n.uris && ?", pgdialect.Array(ref.URIs)).
			Where("n.is_deleted = FALSE").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			remap[ref.Node.ID] = existing.ID
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.NewInsert().Model(ref.Node).Exec(ctx); err != nil {
				if pgutils.IsUniqueViolation(err) {
					// Lost a race to another creator of the same reference.
					return nil, apperror.ErrConflict.WithInternal(err)
				}
				return nil, apperror.ErrDatabase.WithInternal(err)
			}
		default:
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
	}

	for _, check := range plan.Checks {
		var node Node
		err := tx.NewSelect().
			Model(&node).
			Column("id", "label").
			Where("n.id = ?", check.NodeID).
			Where("n.is_deleted = FALSE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("node", check.NodeID.String())
		}
		if err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		if !containsLabel(check.Allowed, node.Label) {
			return nil, apperror.NewValidation(fieldErrors{
				check.Relation: fmt.Sprintf("node %s has label %q, not a permitted target", node.ID, node.Label),
			})
		}
	}

	if len(plan.Inserts) > 0 {
		if _, err := tx.NewInsert().Model(&plan.Inserts).Exec(ctx); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
	}

	for _, upd := range plan.Updates {
		if err := r.applyUpdate(ctx, tx, upd, mapped); err != nil {
			return nil, err
		}
	}

	for _, ed := range plan.EdgeDeletes {
		q := tx.NewUpdate().
			Model((*Edge)(nil)).
			Set("is_deleted = TRUE").
			Where("src_id = ?", mapped(ed.SrcID)).
			Where("type = ?", ed.Type).
			Where("shortcut = ?", ed.Shortcut).
			Where("is_deleted = FALSE")
		if _, err := q.Exec(ctx); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
	}

	if len(plan.Edges) > 0 {
		for _, e := range plan.Edges {
			e.SrcID = mapped(e.SrcID)
			e.DstID = mapped(e.DstID)
		}
		if _, err := tx.NewInsert().Model(&plan.Edges).Exec(ctx); err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
	}

	if len(plan.Deletes) > 0 {
		ids := make([]uuid.UUID, len(plan.Deletes))
		for i, id := range plan.Deletes {
			ids[i] = mapped(id)
		}
		if err := r.deleteCascade(ctx, tx, ids); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	result := &PlanResult{RootID: mapped(plan.RootID)}
	for _, spec := range plan.Shortcuts {
		result.Shortcuts = append(result.Shortcuts, ShortcutSpec{
			SrcID: mapped(spec.SrcID),
			DstID: mapped(spec.DstID),
			Chain: spec.Chain,
		})
	}
	return result, nil
}

func (r *Repository) applyUpdate(ctx context.Context, tx *database.SafeTx, upd NodeUpdate, mapped func(uuid.UUID) uuid.UUID) error {
	setJSON, err := json.Marshal(upd.Set)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}

	q := tx.NewUpdate().
		Model((*Node)(nil)).
		Set("properties = (properties - ?::text[]) || ?::jsonb", pgdialect.Array(upd.Unset), string(setJSON)).
		Set("updated_at = now()").
		Where("id = ?", mapped(upd.ID)).
		Where("is_deleted = FALSE")
	if upd.SetURIs != nil {
		q = q.Set("uris = ?", pgdialect.Array(upd.SetURIs))
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("node", upd.ID.String())
	}
	return nil
}

// doomedNodesCTE collects the full delete set for a cascade: the named
// nodes, every node carrying one of them as head, and the structural
// descendants of all of those. Contained nodes point at the top head, not
// their structural parent, so deleting a contained subtree root must
// recurse over embedded edges to reach its grandchildren.
const doomedNodesCTE = `
	WITH RECURSIVE doomed AS (
		SELECT id FROM pg.nodes WHERE id IN (?) OR head_id IN (?)
		UNION
		SELECT e.dst_id
		FROM pg.edges e
		JOIN doomed d ON e.src_id = d.id
		WHERE e.embedded AND e.is_deleted = FALSE
	)`

// deleteCascade deletes the doomed set and every edge touching it, shortcut
// edges included. Logical or physical per configuration.
func (r *Repository) deleteCascade(ctx context.Context, tx *database.SafeTx, ids []uuid.UUID) error {
	var deleted []uuid.UUID

	if r.physicalDelete {
		err := tx.NewRaw(doomedNodesCTE+`
			DELETE FROM pg.nodes
			WHERE id IN (SELECT id FROM doomed)
			RETURNING id`,
			bun.In(ids), bun.In(ids)).
			Scan(ctx, &deleted)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		if len(deleted) == 0 {
			return apperror.NewNotFound("node", ids[0].String())
		}
		_, err = tx.NewDelete().
			Model((*Edge)(nil)).
			Where("src_id IN (?) OR dst_id IN (?)", bun.In(deleted), bun.In(deleted)).
			Exec(ctx)
		if err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		return nil
	}

	err := tx.NewRaw(doomedNodesCTE+`
		UPDATE pg.nodes
		SET is_deleted = TRUE, updated_at = now()
		WHERE id IN (SELECT id FROM doomed) AND is_deleted = FALSE
		RETURNING id`,
		bun.In(ids), bun.In(ids)).
		Scan(ctx, &deleted)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	if len(deleted) == 0 {
		return apperror.NewNotFound("node", ids[0].String())
	}

	_, err = tx.NewUpdate().
		Model((*Edge)(nil)).
		Set("is_deleted = TRUE").
		Where("src_id IN (?) OR dst_id IN (?)", bun.In(deleted), bun.In(deleted)).
		Where("is_deleted = FALSE").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// GetNode fetches one live node by identifier.
func (r *Repository) GetNode(ctx context.Context, id uuid.UUID) (*Node, error) {
	node := new(Node)
	err := r.db.NewSelect().
		Model(node).
		Where("n.id = ?", id).
		Where("n.is_deleted = FALSE").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("node", id.String())
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return node, nil
}

// GetByURI resolves an external URI to its live node.
func (r *Repository) GetByURI(ctx context.Context, uri string) (*Node, error) {
	node := new(Node)
	err := r.db.NewSelect().
		Model(node).
		Where("n.uris @> ?", pgdialect.Array([]string{uri})).
		Where("n.is_deleted = FALSE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("uri", uri)
	}
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return node, nil
}

// List returns live top-level nodes of a label family, ordered by
// identifier (time-sortable), with the untruncated family count.
func (r *Repository) List(ctx context.Context, label string, limit, offset int) ([]Node, int, error) {
	var nodes []Node
	count, err := r.db.NewSelect().
		Model(&nodes).
		Where("n.labels @> ?", pgdialect.Array([]string{label})).
		Where("n.head_id IS NULL").
		Where("n.is_deleted = FALSE").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, apperror.ErrDatabase.WithInternal(err)
	}
	return nodes, count, nil
}

// outEdges fetches live authored edges leaving a node.
func (r *Repository) outEdges(ctx context.Context, srcID uuid.UUID) ([]Edge, error) {
	var edges []Edge
	err := r.db.NewSelect().
		Model(&edges).
		Where("e.src_id = ?", srcID).
		Where("e.shortcut = FALSE").
		Where("e.is_deleted = FALSE").
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return edges, nil
}

// nodesByID fetches live nodes for a set of identifiers.
func (r *Repository) nodesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Node, error) {
	out := make(map[uuid.UUID]*Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var nodes []Node
	err := r.db.NewSelect().
		Model(&nodes).
		Where("n.id IN (?)", bun.In(ids)).
		Where("n.is_deleted = FALSE").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for i := range nodes {
		out[nodes[i].ID] = &nodes[i]
	}
	return out, nil
}

// ExistingState fetches the current inline-editable relation targets and
// embedded children of a node, for update diffing.
func (r *Repository) ExistingState(ctx context.Context, m *schema.Model, id uuid.UUID) (*ExistingState, error) {
	state := &ExistingState{
		Relations: make(map[string][]ExistingTarget),
		Embedded:  make(map[string][]uuid.UUID),
	}

	edges, err := r.outEdges(ctx, id)
	if err != nil {
		return nil, err
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
			continue
		}
		if e.Embedded {
			if _, ok := m.EmbeddedField(e.Type); ok {
				state.Embedded[e.Type] = append(state.Embedded[e.Type], dst.ID)
			}
			continue
		}
		if rel, ok := m.Relation(e.Type); ok && rel.EditInline {
			state.Relations[e.Type] = append(state.Relations[e.Type], ExistingTarget{
				ID:             dst.ID,
				Label:          dst.Label,
				EdgeProperties: e.Properties,
			})
		}
	}
	return state, nil
}

// EnqueueShortcuts inserts deferred shortcut-edge jobs, scheduled
// immediately.
func (r *Repository) EnqueueShortcuts(ctx context.Context, specs []ShortcutSpec) error {
	if len(specs) == 0 {
		return nil
	}
	now := time.Now()
	jobs := make([]*ShortcutJob, len(specs))
	for i, spec := range specs {
		jobs[i] = &ShortcutJob{
			ID:          NewNodeID(),
			Status:      "pending",
			Payload:     spec,
			ScheduledAt: &now,
		}
	}
	if _, err := r.db.NewInsert().Model(&jobs).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// WriteShortcutEdges writes one shortcut edge per ancestor relation in the
// spec's chain, in chain order (most specific first). Idempotent: a
// re-delivered job conflicts on the existing edge and writes nothing.
func (r *Repository) WriteShortcutEdges(ctx context.Context, spec ShortcutSpec) error {
	for _, ref := range spec.Chain {
		edge := &Edge{
			ID:          NewNodeID(),
			Type:        ref.Name,
			ReverseType: ref.ReverseName,
			SrcID:       spec.SrcID,
			DstID:       spec.DstID,
			Shortcut:    true,
		}
		_, err := r.db.NewInsert().
			Model(edge).
			On("CONFLICT (type, src_id, dst_id) WHERE shortcut AND NOT is_deleted DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("shortcut edge %s %s->%s: %w", ref.Name, spec.SrcID, spec.DstID, err)
		}
	}
	return nil
}
