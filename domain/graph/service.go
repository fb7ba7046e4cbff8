package graph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/richardhadden/pangloss/domain/schema"
	"github.com/richardhadden/pangloss/internal/config"
	"github.com/richardhadden/pangloss/pkg/apperror"
	"github.com/richardhadden/pangloss/pkg/logger"
	"github.com/richardhadden/pangloss/pkg/mathutil"
)

// Service orchestrates graph writes in two phases: the primary plan runs in
// one transaction and its result is returned to the caller; the inferred
// shortcut-edge writes are enqueued afterwards and executed by the worker,
// best-effort. A reader can therefore observe a primary edge whose shortcut
// is still pending, but never the reverse.
type Service struct {
	compiler *Compiler
	repo     *Repository
	registry *schema.Registry
	depth    int
	pageSize int
	log      *slog.Logger
}

// NewService creates the graph service.
func NewService(repo *Repository, registry *schema.Registry, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		compiler: NewCompiler(registry),
		repo:     repo,
		registry: registry,
		depth:    cfg.Graph.MaxReadDepth,
		pageSize: cfg.Search.PageSize,
		log:      log.With(logger.Scope("graph.service")),
	}
}

// Create compiles and executes a create, then enqueues the deferred
// shortcut phase. A failed enqueue is logged, not surfaced; the primary
// write has already committed.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*NodeView, error) {
	plan, err := s.compiler.CompileCreate(req)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.RunPlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.deferShortcuts(ctx, result.Shortcuts)

	return s.repo.FetchView(ctx, result.RootID, s.depth)
}

// Get returns the head view of a node, resolved to the given depth
// (clamped to the configured maximum; zero means maximum).
func (s *Service) Get(ctx context.Context, id uuid.UUID, depth int) (*NodeView, error) {
	if depth <= 0 || depth > s.depth {
		depth = s.depth
	}
	return s.repo.FetchView(ctx, id, depth)
}

// ResolveURI returns the head view of the node carrying an external URI.
func (s *Service) ResolveURI(ctx context.Context, uri string) (*NodeView, error) {
	node, err := s.repo.GetByURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	id := node.ID
	if node.Contained() {
		// A URI hit inside an entity resolves to its head.
		id = *node.HeadID
	}
	return s.repo.FetchView(ctx, id, s.depth)
}

// Update patches a node: current nested state is fetched first so
// inline-editable relations diff against it, then the plan runs and the
// shortcut phase is deferred.
func (s *Service) Update(ctx context.Context, label string, id uuid.UUID, req *UpdateRequest) (*NodeView, error) {
	m, ok := s.registry.Model(label)
	if !ok {
		return nil, apperror.NewBadRequest("no model " + label)
	}
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if !containsLabel(node.Labels, label) {
		return nil, apperror.NewNotFound(label, id.String())
	}

	existing, err := s.fetchStateTree(ctx, m, id, req)
	if err != nil {
		return nil, err
	}

	plan, err := s.compiler.CompileUpdate(node.Label, id, req, existing)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.RunPlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.deferShortcuts(ctx, result.Shortcuts)

	return s.repo.FetchView(ctx, result.RootID, s.depth)
}

// Delete removes a node and everything carrying it as head.
func (s *Service) Delete(ctx context.Context, label string, id uuid.UUID) error {
	node, err := s.repo.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if !containsLabel(node.Labels, label) {
		return apperror.NewNotFound(label, id.String())
	}
	_, err = s.repo.RunPlan(ctx, s.compiler.CompileDelete(id))
	return err
}

// List pages through the live top-level nodes of a label family.
func (s *Service) List(ctx context.Context, label string, limit, offset int) (*ListResult, error) {
	if _, ok := s.registry.Model(label); !ok && !s.registry.IsTrait(label) {
		return nil, apperror.NewBadRequest("no model or trait " + label)
	}
	limit = mathutil.ClampLimit(limit, s.pageSize, s.pageSize)
	if offset < 0 {
		offset = 0
	}

	nodes, count, err := s.repo.List(ctx, label, limit, offset)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Count: count, Results: make([]NodeView, 0, len(nodes))}
	for i := range nodes {
		result.Results = append(result.Results, NodeView{
			ID:     nodes[i].ID,
			Label:  nodes[i].Label,
			URIs:   nodes[i].URIs,
			Fields: s.repo.unflatten(&nodes[i]),
		})
	}
	return result, nil
}

// fetchStateTree fetches the nested shape an update diffs against: the
// node's own inline-editable targets and embeds, then recursively the state
// of every target the request patches by identifier, so a nested patch
// diffs against the child's real relations instead of an empty set.
func (s *Service) fetchStateTree(ctx context.Context, m *schema.Model, id uuid.UUID, req *UpdateRequest) (*ExistingState, error) {
	state, err := s.repo.ExistingState(ctx, m, id)
	if err != nil {
		return nil, err
	}

	for name, targets := range req.Relations {
		rel, ok := m.Relation(name)
		if !ok || !rel.EditInline {
			continue
		}
		current := make(map[uuid.UUID]ExistingTarget, len(state.Relations[name]))
		for _, t := range state.Relations[name] {
			current[t.ID] = t
		}
		for i := range targets {
			t := &targets[i]
			if t.ID == nil || t.Create == nil {
				continue
			}
			prev, known := current[*t.ID]
			if !known {
				continue
			}
			tm, ok := s.registry.Model(prev.Label)
			if !ok {
				continue
			}
			childReq := &UpdateRequest{
				Fields:    t.Create.Fields,
				Embedded:  t.Create.Embedded,
				Relations: t.Create.Relations,
				URIs:      t.Create.URIs,
			}
			child, err := s.fetchStateTree(ctx, tm, prev.ID, childReq)
			if err != nil {
				return nil, err
			}
			if state.Children == nil {
				state.Children = make(map[uuid.UUID]*ExistingState)
			}
			state.Children[prev.ID] = child
		}
	}
	return state, nil
}

func (s *Service) deferShortcuts(ctx context.Context, specs []ShortcutSpec) {
	if len(specs) == 0 {
		return
	}
	if err := s.repo.EnqueueShortcuts(ctx, specs); err != nil {
		s.log.Error("failed to enqueue shortcut edges",
			slog.Int("specs", len(specs)),
			logger.Error(err))
	}
}
