// Package search implements multi-term full-text search over the node
// store: one scored index query per term, head-entity resolution per hit,
// and a smallest-set-first intersection of the per-term head sets.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/richardhadden/pangloss/pkg/apperror"
	"github.com/richardhadden/pangloss/pkg/logger"
)

// Repository runs the store-side legs of a search: per-term index queries
// and the lookups used for head resolution. Every query filters is_deleted.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a search repository.
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("search.repository"))}
}

// tsqueryLexeme quotes a raw term as a single prefix-matched tsquery
// lexeme. Characters with tsquery syntax meaning (&, |, !, parentheses,
// colons, quotes) match literally instead of breaking the query.
func tsqueryLexeme(term string) string {
	escaped := strings.ReplaceAll(term, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `''`)
	return "'" + escaped + "':*"
}

// TermQuery runs one full-text query for a single term, prefix-matched,
// returning scored live rows. scope restricts hits to a label family.
func (r *Repository) TermQuery(ctx context.Context, term, scope string, limit int) ([]Hit, error) {
	var hits []Hit

	q := r.db.NewSelect().
		TableExpr("pg.nodes AS n").
		ColumnExpr("n.id, n.label, n.head_id, n.head_type").
		ColumnExpr("ts_rank(n.fts, query) AS score").
		Join("CROSS JOIN to_tsquery('simple', ?) AS query", tsqueryLexeme(term)).
		Where("n.fts @@ query").
		Where("n.is_deleted = FALSE").
		OrderExpr("score DESC").
		Limit(limit)
	if scope != "" {
		q = q.Where("n.labels @> ?", pgdialect.Array([]string{scope}))
	}

	if err := q.Scan(ctx, &hits); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return hits, nil
}

// LiveHeads returns, for the given candidate identifiers, those that are
// live, with their labels. Deleted heads drop out of the result set here.
func (r *Repository) LiveHeads(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		ID    uuid.UUID `bun:"id"`
		Label string    `bun:"label"`
	}
	err := r.db.NewSelect().
		TableExpr("pg.nodes AS n").
		ColumnExpr("n.id, n.label").
		Where("n.id IN (?)", bun.In(ids)).
		Where("n.is_deleted = FALSE").
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	for _, row := range rows {
		out[row.ID] = row.Label
	}
	return out, nil
}

// ContainersFor resolves, for hit nodes with no head pointer, the parent
// reachable over one reverse structural edge. The returned hits describe
// the parents, keyed by the contained node's identifier.
func (r *Repository) ContainersFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Hit, error) {
	out := make(map[uuid.UUID]Hit, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		ChildID uuid.UUID  `bun:"child_id"`
		ID      uuid.UUID  `bun:"id"`
		Label   string     `bun:"label"`
		HeadID  *uuid.UUID `bun:"head_id"`
	}
	err := r.db.NewSelect().
		TableExpr("pg.edges AS e").
		Join("JOIN pg.nodes AS p ON p.id = e.src_id AND p.is_deleted = FALSE").
		ColumnExpr("e.dst_id AS child_id, p.id, p.label, p.head_id").
		Where("e.dst_id IN (?)", bun.In(ids)).
		Where("e.embedded = TRUE").
		Where("e.is_deleted = FALSE").
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	for _, row := range rows {
		out[row.ChildID] = Hit{ID: row.ID, Label: row.Label, HeadID: row.HeadID}
	}
	return out, nil
}
