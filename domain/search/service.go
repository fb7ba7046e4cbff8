package search

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/google/uuid"

	"github.com/richardhadden/pangloss/internal/config"
	"github.com/richardhadden/pangloss/pkg/logger"
)

// termSplit breaks a raw query into independent search terms.
var termSplit = regexp.MustCompile(`[ \-_/]+`)

// SplitTerms splits a raw query string into its search terms, dropping
// empties.
func SplitTerms(q string) []string {
	parts := termSplit.Split(q, -1)
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// headSet maps head-entity identity to its accumulated result entry.
type headSet map[uuid.UUID]Head

// Service runs multi-term searches: one index query per term, hits
// resolved to their head entities, per-term head sets intersected smallest
// first.
type Service struct {
	repo         *Repository
	pageSize     int
	perTermLimit int
	log          *slog.Logger
}

// NewService creates the search service.
func NewService(repo *Repository, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		pageSize:     cfg.Search.PageSize,
		perTermLimit: cfg.Search.PerTermLimit,
		log:          log.With(logger.Scope("search.service")),
	}
}

// Search executes a query. Each term is queried independently; every hit
// resolves to its head entity; the per-term head sets are intersected
// ascending by cardinality, short-circuiting to NoMatches on the first
// empty intersection. The page is capped; Count is the untruncated
// intersection size.
func (s *Service) Search(ctx context.Context, query, scope string) (*Result, error) {
	terms := SplitTerms(query)
	if len(terms) == 0 {
		return NoMatches(), nil
	}

	sets := make([]headSet, 0, len(terms))
	for _, term := range terms {
		hits, err := s.repo.TermQuery(ctx, term, scope, s.perTermLimit)
		if err != nil {
			return nil, err
		}
		set, err := s.resolveHeads(ctx, hits)
		if err != nil {
			return nil, err
		}
		if len(set) == 0 {
			return NoMatches(), nil
		}
		sets = append(sets, set)
	}

	matched := intersect(orderBySize(sets))
	if len(matched) == 0 {
		return NoMatches(), nil
	}
	return s.page(matched), nil
}

// resolveHeads maps raw hits onto their head entities: a hit with a head
// pointer resolves through it; a headless hit reachable over a reverse
// structural edge resolves to its container's head; any other hit is its
// own head. Candidates are checked live in one lookup; deleted heads drop
// their hits. Scores of hits sharing a head accumulate.
func (s *Service) resolveHeads(ctx context.Context, hits []Hit) (headSet, error) {
	headless := make([]uuid.UUID, 0, len(hits))
	for i := range hits {
		if hits[i].HeadID == nil {
			headless = append(headless, hits[i].ID)
		}
	}
	containers, err := s.repo.ContainersFor(ctx, headless)
	if err != nil {
		return nil, err
	}

	candidate := func(h *Hit) uuid.UUID {
		if h.HeadID != nil {
			return *h.HeadID
		}
		if c, ok := containers[h.ID]; ok {
			if c.HeadID != nil {
				return *c.HeadID
			}
			return c.ID
		}
		return h.ID
	}

	candidates := make([]uuid.UUID, 0, len(hits))
	seen := make(map[uuid.UUID]bool, len(hits))
	for i := range hits {
		id := candidate(&hits[i])
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, id)
		}
	}
	live, err := s.repo.LiveHeads(ctx, candidates)
	if err != nil {
		return nil, err
	}

	set := make(headSet, len(hits))
	for i := range hits {
		id := candidate(&hits[i])
		label, ok := live[id]
		if !ok {
			continue
		}
		entry := set[id]
		entry.ID = id
		entry.Label = label
		entry.Score += hits[i].Score
		set[id] = entry
	}
	return set, nil
}

// orderBySize sorts the per-term sets ascending by cardinality so the fold
// intersects against the smallest candidate set first.
func orderBySize(sets []headSet) []headSet {
	sort.SliceStable(sets, func(i, j int) bool {
		return len(sets[i]) < len(sets[j])
	})
	return sets
}

// intersect folds the ordered sets left to right, keeping heads present in
// every set with summed scores, and short-circuits on an empty
// intersection.
func intersect(sets []headSet) headSet {
	if len(sets) == 0 {
		return nil
	}
	acc := sets[0]
	for _, next := range sets[1:] {
		merged := make(headSet, len(acc))
		for id, head := range acc {
			if other, ok := next[id]; ok {
				head.Score += other.Score
				merged[id] = head
			}
		}
		if len(merged) == 0 {
			return nil
		}
		acc = merged
	}
	return acc
}

// page ranks the intersection by score (identifier as tie-break for stable
// output) and truncates to the page size.
func (s *Service) page(matched headSet) *Result {
	heads := make([]Head, 0, len(matched))
	for _, h := range matched {
		heads = append(heads, h)
	}
	sort.Slice(heads, func(i, j int) bool {
		if heads[i].Score != heads[j].Score {
			return heads[i].Score > heads[j].Score
		}
		return heads[i].ID.String() < heads[j].ID.String()
	})

	count := len(heads)
	if len(heads) > s.pageSize {
		heads = heads[:s.pageSize]
	}
	return &Result{Count: count, Results: heads}
}
