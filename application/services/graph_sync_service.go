package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/config"
	"versegraph/domain/core/aggregates"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
	domainservices "versegraph/domain/services"
	pkgerrors "versegraph/pkg/errors"
	"versegraph/pkg/observability"
)

// FocusOutcome describes how a focus request resolved
type FocusOutcome string

const (
	// FocusCentered means the verse is resident and the viewport centered on it
	FocusCentered FocusOutcome = "centered"
	// FocusAlreadyFocused means the verse was already the focus; no fetch, no animation
	FocusAlreadyFocused FocusOutcome = "already_focused"
	// FocusNotFound means every resolution step failed to locate the verse remotely
	FocusNotFound FocusOutcome = "not_found"
	// FocusSuperseded means a newer focus request arrived while this one fetched;
	// the merge still applied but the viewport must not move
	FocusSuperseded FocusOutcome = "superseded"
)

// FocusResult is the reported (never fatal) outcome of a focus request
type FocusResult struct {
	Outcome FocusOutcome          `json:"outcome"`
	Key     valueobjects.VerseKey `json:"key"`
	Center  *PositionDTO          `json:"center,omitempty"`
}

// ExpandResult reports an expand/collapse toggle
type ExpandResult struct {
	// Toggled is "expanded" or "collapsed"
	Toggled      string   `json:"toggled"`
	NewNodes     int      `json:"new_nodes"`
	NewEdges     int      `json:"new_edges"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
}

// PositionDTO is a plain coordinate pair for the rendering surface
type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RenderNode is the per-node payload pushed to the rendering surface
type RenderNode struct {
	Key      string                   `json:"key"`
	Label    string                   `json:"label"`
	Text     string                   `json:"text,omitempty"`
	Position PositionDTO              `json:"position"`
	Flags    domainservices.NodeFlags `json:"flags"`
}

// RenderEdge is the per-edge payload pushed to the rendering surface
type RenderEdge struct {
	Key       string                   `json:"key"`
	Endpoints [2]string                `json:"endpoints"`
	Flags     domainservices.EdgeFlags `json:"flags"`
}

// RenderSnapshot is the full state the rendering surface consumes
type RenderSnapshot struct {
	Nodes  []RenderNode          `json:"nodes"`
	Edges  []RenderEdge          `json:"edges"`
	Focus  string                `json:"focus,omitempty"`
	Filter domainservices.Filter `json:"filter"`
	Hover  *RenderNode           `json:"hover,omitempty"`
}

// GraphSyncService is the graph state manager of one browsing session. It
// owns the canonical node/edge collections, lazily loads neighborhoods from
// the remote source, merges fragments idempotently through the aggregate's
// dedup gate, places new nodes deterministically, tracks expansion state, and
// resolves focus requests through an ordered fallback ladder.
//
// All state is per-instance; nothing here is shared process-wide. Access is
// serialized by the mutex, which is released around remote fetches so a hung
// fetch blocks only its own resolution chain.
type GraphSyncService struct {
	mu sync.Mutex

	graph      *aggregates.ViewGraph
	layout     *domainservices.CircularLayout
	visibility *domainservices.VisibilityService
	scripture  ports.ScriptureReader
	config     *config.DomainConfig
	logger     *zap.Logger
	metrics    *observability.Metrics

	filter          domainservices.Filter
	focus           *valueobjects.VerseKey
	lastFocused     string
	focusGen        uint64
	hovered         *valueobjects.VerseKey
	expandsInFlight map[string]bool
	nodeCategories  map[string][]entities.AnnotationCategory
}

// NewGraphSyncService creates a sync service with a fresh canonical graph
func NewGraphSyncService(
	scripture ports.ScriptureReader,
	layout *domainservices.CircularLayout,
	visibility *domainservices.VisibilityService,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *GraphSyncService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GraphSyncService{
		graph:           aggregates.NewViewGraph(cfg),
		layout:          layout,
		visibility:      visibility,
		scripture:       scripture,
		config:          cfg,
		logger:          logger,
		metrics:         metrics,
		expandsInFlight: make(map[string]bool),
		nodeCategories:  make(map[string][]entities.AnnotationCategory),
	}
}

// LoadNeighborhood fetches a bounded relationship window around key and
// merges it into canonical state. A window already loaded or in flight is
// answered from the memo without a second request. Empty windows are
// memoized too, so empty regions are never re-fetched. Returns whether the
// requested verse ended up resident.
func (s *GraphSyncService) LoadNeighborhood(ctx context.Context, key valueobjects.VerseKey, pageSize int) (bool, error) {
	if pageSize <= 0 || pageSize > s.config.MaxPageSize {
		pageSize = s.config.DefaultPageSize
	}
	page := key.Page()

	s.mu.Lock()
	if !s.graph.BeginPageLoad(page) {
		found := s.graph.HasNode(key)
		s.mu.Unlock()
		s.metrics.PagesCached.Inc()
		return found, nil
	}
	s.mu.Unlock()

	rels, err := s.scripture.GetNeighborhood(ctx, page, pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// A failed fetch contributes zero nodes and edges, and the page
		// stays eligible for retry.
		s.graph.EndPageLoad(page, false)
		return false, pkgerrors.Wrap(err, "neighborhood load failed")
	}

	s.mergeRelationships(rels, key, aggregates.EdgeKindCrossReference, valueobjects.VerseKey{})
	s.graph.EndPageLoad(page, true)

	s.logger.Debug("neighborhood merged",
		zap.String("page", page.String()),
		zap.Int("relationships", len(rels)),
		zap.Int("nodes", s.graph.NodeCount()),
		zap.Int("edges", s.graph.EdgeCount()),
	)

	return s.graph.HasNode(key), nil
}

// FocusOn resolves a "show and center this verse" request through ordered
// fallbacks: resident check, direct neighborhood load, adjacent-chapter
// loads up to the retry bound, then a direct single-verse fetch synthesizing
// a standalone node at a reproducible position. Not-found is a reported
// outcome, never an error; only transient remote failures surface as errors.
func (s *GraphSyncService) FocusOn(ctx context.Context, key valueobjects.VerseKey) (FocusResult, error) {
	s.mu.Lock()
	if s.lastFocused == key.String() && s.graph.HasNode(key) {
		// Repeated focus with no intervening change: no fetch, no
		// duplicate viewport animation.
		result := s.centeredResultLocked(key, FocusAlreadyFocused)
		s.mu.Unlock()
		return result, nil
	}
	s.focusGen++
	gen := s.focusGen
	if s.graph.HasNode(key) {
		result := s.applyFocusLocked(key, gen)
		s.mu.Unlock()
		s.metrics.FocusResolutions.WithLabelValues("resident").Inc()
		return result, nil
	}
	s.mu.Unlock()

	// Step 2: load the verse's own neighborhood.
	found, err := s.LoadNeighborhood(ctx, key, s.config.DefaultPageSize)
	if err != nil {
		return FocusResult{Outcome: FocusNotFound, Key: key}, err
	}
	if found {
		s.metrics.FocusResolutions.WithLabelValues("neighborhood").Inc()
		return s.applyFocus(key, gen), nil
	}

	// Step 3: broaden to adjacent chapters, bounded by the retry limit.
	for _, chapter := range s.adjacentChapters(key) {
		probe, probeErr := key.WithChapter(chapter)
		if probeErr != nil {
			continue
		}
		if _, err := s.LoadNeighborhood(ctx, probe, s.config.DefaultPageSize); err != nil {
			return FocusResult{Outcome: FocusNotFound, Key: key}, err
		}
		if s.resident(key) {
			s.metrics.FocusResolutions.WithLabelValues("adjacent").Inc()
			return s.applyFocus(key, gen), nil
		}
	}

	// Step 4: direct single-verse fetch, standalone node at a
	// deterministic fallback position.
	verse, err := s.scripture.GetVerse(ctx, key)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			s.metrics.FocusResolutions.WithLabelValues("not_found").Inc()
			return FocusResult{Outcome: FocusNotFound, Key: key}, nil
		}
		return FocusResult{Outcome: FocusNotFound, Key: key}, pkgerrors.Wrap(err, "verse fetch failed")
	}

	s.mu.Lock()
	node, nodeErr := entities.NewVerseNode(verse.Key, verse.Text, s.layout.FallbackPosition(verse.Key), entities.OriginFallback)
	if nodeErr == nil {
		if created, ensureErr := s.graph.EnsureNode(node); ensureErr != nil {
			s.mu.Unlock()
			return FocusResult{Outcome: FocusNotFound, Key: key}, ensureErr
		} else if created {
			s.metrics.NodesMerged.Inc()
		}
	}
	result := s.applyFocusLocked(key, gen)
	s.mu.Unlock()
	s.metrics.FocusResolutions.WithLabelValues("fallback").Inc()
	return result, nil
}

// Expand toggles disclosure of a verse's direct relationships. Expanding an
// already-expanded verse collapses it. A fetch failure leaves the expansion
// set untouched so the toggle never sticks half-applied.
func (s *GraphSyncService) Expand(ctx context.Context, key valueobjects.VerseKey) (ExpandResult, error) {
	s.mu.Lock()
	if !s.graph.HasNode(key) {
		s.mu.Unlock()
		return ExpandResult{}, pkgerrors.NewNotFoundError("verse node")
	}
	if s.graph.IsExpanded(key) {
		removed := s.graph.Collapse(key)
		s.mu.Unlock()
		return ExpandResult{Toggled: "collapsed", RemovedEdges: removed}, nil
	}
	if s.expandsInFlight[key.String()] {
		s.mu.Unlock()
		return ExpandResult{Toggled: "expanded"}, nil
	}
	s.expandsInFlight[key.String()] = true
	s.mu.Unlock()

	targets, err := s.scripture.GetCrossReferences(ctx, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expandsInFlight, key.String())

	if err != nil {
		return ExpandResult{}, pkgerrors.Wrap(err, "expand fetch failed")
	}

	rels := make([]ports.Relationship, 0, len(targets))
	for _, target := range targets {
		rels = append(rels, ports.Relationship{Source: key, Target: target})
	}

	nodesAdded, edgesAdded := s.mergeRelationships(rels, key, aggregates.EdgeKindExpansion, key)
	s.graph.MarkExpanded(key)

	return ExpandResult{Toggled: "expanded", NewNodes: nodesAdded, NewEdges: edgesAdded}, nil
}

// Collapse retracts the expansion edges of key. Discovered nodes persist.
func (s *GraphSyncService) Collapse(key valueobjects.VerseKey) ExpandResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.graph.Collapse(key)
	return ExpandResult{Toggled: "collapsed", RemovedEdges: removed}
}

// DragNode applies a user drag, the only position mutation for an existing node
func (s *GraphSyncService) DragNode(key valueobjects.VerseKey, x, y float64) error {
	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.MoveNode(key, pos)
}

// SetFilter updates the UI restriction applied at snapshot time
func (s *GraphSyncService) SetFilter(term string, category entities.AnnotationCategory) error {
	if category != "" && !entities.ValidCategory(category) {
		return pkgerrors.NewValidationError("invalid annotation category")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = domainservices.Filter{Term: term, Category: category}
	return nil
}

// ClearFocus removes the focus restriction without touching canonical state
func (s *GraphSyncService) ClearFocus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = nil
	s.lastFocused = ""
}

// SetHover records the hovered verse; the snapshot carries its payload so
// the rendering surface owns all presentation.
func (s *GraphSyncService) SetHover(key *valueobjects.VerseKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hovered = key
}

// SetNodeCategories replaces the annotation-category index used by the
// category filter
func (s *GraphSyncService) SetNodeCategories(categories map[string][]entities.AnnotationCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeCategories = categories
}

// Snapshot computes the current render payload: canonical state restyled by
// the visible-subset filter. It never mutates canonical state.
func (s *GraphSyncService) Snapshot() RenderSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	subset := s.visibility.Compute(s.graph, s.filter, s.focus, s.nodeCategories)

	snapshot := RenderSnapshot{
		Nodes:  make([]RenderNode, 0, s.graph.NodeCount()),
		Edges:  make([]RenderEdge, 0, s.graph.EdgeCount()),
		Filter: s.filter,
	}
	if s.focus != nil {
		snapshot.Focus = s.focus.String()
	}

	for _, node := range s.graph.Nodes() {
		rn := renderNode(node, subset.Nodes[node.Key().String()])
		snapshot.Nodes = append(snapshot.Nodes, rn)
		if s.hovered != nil && node.Key().Equals(*s.hovered) {
			hover := rn
			snapshot.Hover = &hover
		}
	}
	for _, edge := range s.graph.Edges() {
		snapshot.Edges = append(snapshot.Edges, RenderEdge{
			Key:       edge.Key,
			Endpoints: [2]string{edge.A.String(), edge.B.String()},
			Flags:     subset.Edges[edge.Key],
		})
	}

	return snapshot
}

// NodeCount returns the canonical node count
func (s *GraphSyncService) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.NodeCount()
}

// EdgeCount returns the canonical edge count
func (s *GraphSyncService) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.EdgeCount()
}

// Internal helpers

// mergeRelationships routes a fetched fragment through the dedup gate:
// unseen endpoints become nodes placed on a ring around the anchor, and each
// relationship becomes at most one canonical edge. Existing nodes keep their
// positions. Returns how many nodes and edges were actually created.
func (s *GraphSyncService) mergeRelationships(
	rels []ports.Relationship,
	anchor valueobjects.VerseKey,
	kind aggregates.EdgeKind,
	expandedFrom valueobjects.VerseKey,
) (int, int) {
	// Collect genuinely new endpoints in first-seen order.
	seen := make(map[string]bool)
	var newKeys []valueobjects.VerseKey
	for _, rel := range rels {
		for _, k := range []valueobjects.VerseKey{rel.Source, rel.Target} {
			ks := k.String()
			if seen[ks] || s.graph.HasNode(k) {
				continue
			}
			seen[ks] = true
			newKeys = append(newKeys, k)
		}
	}

	anchorPos := s.layout.FallbackPosition(anchor)
	if node := s.graph.Node(anchor); node != nil {
		anchorPos = node.Position()
	}

	positions := s.layout.PlaceNeighbors(anchorPos, s.graph.Positions(), len(newKeys))

	origin := entities.OriginNeighborhood
	if kind == aggregates.EdgeKindExpansion {
		origin = entities.OriginExpansion
	}

	nodesAdded := 0
	for i, k := range newKeys {
		node, err := entities.NewVerseNode(k, "", positions[i], origin)
		if err != nil {
			s.logger.Warn("skipping invalid fetched verse", zap.String("key", k.String()), zap.Error(err))
			continue
		}
		created, err := s.graph.EnsureNode(node)
		if err != nil {
			s.logger.Warn("node merge rejected", zap.String("key", k.String()), zap.Error(err))
			continue
		}
		if created {
			nodesAdded++
			s.metrics.NodesMerged.Inc()
		} else {
			s.metrics.DedupHits.Inc()
		}
	}

	edgesAdded := 0
	for _, rel := range rels {
		created, err := s.graph.EnsureEdge(rel.Source, rel.Target, kind, expandedFrom)
		if err != nil {
			s.logger.Debug("edge merge rejected",
				zap.String("source", rel.Source.String()),
				zap.String("target", rel.Target.String()),
				zap.Error(err))
			continue
		}
		if created {
			edgesAdded++
			s.metrics.EdgesMerged.Inc()
		} else {
			s.metrics.DedupHits.Inc()
		}
	}

	return nodesAdded, edgesAdded
}

// adjacentChapters yields the broadened probe chapters, bounded by the retry limit
func (s *GraphSyncService) adjacentChapters(key valueobjects.VerseKey) []int {
	var chapters []int
	if key.Chapter() > 1 {
		chapters = append(chapters, key.Chapter()-1)
	}
	chapters = append(chapters, key.Chapter()+1)
	if len(chapters) > s.config.FocusRetryLimit {
		chapters = chapters[:s.config.FocusRetryLimit]
	}
	return chapters
}

func (s *GraphSyncService) resident(key valueobjects.VerseKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.HasNode(key)
}

func (s *GraphSyncService) applyFocus(key valueobjects.VerseKey, gen uint64) FocusResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyFocusLocked(key, gen)
}

// applyFocusLocked records the focus and produces the centering instruction,
// unless a newer focus request superseded this one while it was fetching.
func (s *GraphSyncService) applyFocusLocked(key valueobjects.VerseKey, gen uint64) FocusResult {
	if gen != s.focusGen {
		return FocusResult{Outcome: FocusSuperseded, Key: key}
	}
	if !s.graph.HasNode(key) {
		return FocusResult{Outcome: FocusNotFound, Key: key}
	}
	s.focus = &key
	s.lastFocused = key.String()
	return s.centeredResultLocked(key, FocusCentered)
}

func (s *GraphSyncService) centeredResultLocked(key valueobjects.VerseKey, outcome FocusOutcome) FocusResult {
	node := s.graph.Node(key)
	if node == nil {
		return FocusResult{Outcome: FocusNotFound, Key: key}
	}
	pos := node.Position()
	return FocusResult{
		Outcome: outcome,
		Key:     key,
		Center:  &PositionDTO{X: pos.X(), Y: pos.Y()},
	}
}

func renderNode(node *entities.VerseNode, flags domainservices.NodeFlags) RenderNode {
	pos := node.Position()
	return RenderNode{
		Key:      node.Key().String(),
		Label:    node.Label(),
		Text:     node.Text(),
		Position: PositionDTO{X: pos.X(), Y: pos.Y()},
		Flags:    flags,
	}
}
