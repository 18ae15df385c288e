package aggregates

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"versegraph/domain/config"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

// EdgeKind distinguishes ordinary cross-references from edges created by an
// explicit expansion of a node's direct relationships
type EdgeKind string

const (
	EdgeKindCrossReference EdgeKind = "crossref"
	EdgeKindExpansion      EdgeKind = "expansion"
)

// Edge is an unordered relationship between two verses. Identity is the
// sorted pair of endpoint keys, so the same relationship discovered from
// either direction collapses to one edge.
type Edge struct {
	Key  string
	A    valueobjects.VerseKey
	B    valueobjects.VerseKey
	Kind EdgeKind
	// ExpandedFrom is set on expansion edges and names the node whose
	// expansion produced them; collapse retracts exactly those.
	ExpandedFrom valueobjects.VerseKey
}

// Touches reports whether the edge has key as one of its endpoints
func (e *Edge) Touches(key valueobjects.VerseKey) bool {
	return e.A.Equals(key) || e.B.Equals(key)
}

// Other returns the endpoint opposite to key
func (e *Edge) Other(key valueobjects.VerseKey) valueobjects.VerseKey {
	if e.A.Equals(key) {
		return e.B
	}
	return e.A
}

// EdgeKeyFor computes the canonical edge identity for an endpoint pair
func EdgeKeyFor(a, b valueobjects.VerseKey) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return "edge:" + lo + "|" + hi
}

// ViewGraph is the canonical in-memory graph state of one browsing session:
// node and edge collections, the per-node expansion set, and the memos that
// guard against redundant neighborhood fetches. It is not safe for concurrent
// use; the owning sync service serializes access.
//
// The single invariant enforced on every insert path: a node is only created
// if its canonical key is absent, an edge only if its sorted-pair key is
// absent and both endpoints exist. All fetch-result processing routes through
// EnsureNode/EnsureEdge.
type ViewGraph struct {
	nodes map[string]*entities.VerseNode
	edges map[string]*Edge

	expanded            mapset.Set[string]
	loadedNeighborhoods mapset.Set[string]
	pendingFetches      mapset.Set[string]

	config *config.DomainConfig
}

// NewViewGraph creates an empty canonical graph for one session
func NewViewGraph(cfg *config.DomainConfig) *ViewGraph {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &ViewGraph{
		nodes:               make(map[string]*entities.VerseNode),
		edges:               make(map[string]*Edge),
		expanded:            mapset.NewThreadUnsafeSet[string](),
		loadedNeighborhoods: mapset.NewThreadUnsafeSet[string](),
		pendingFetches:      mapset.NewThreadUnsafeSet[string](),
		config:              cfg,
	}
}

// EnsureNode inserts a node if its canonical key is absent. Returns whether
// the node was created; an existing node is left untouched except that a
// previously unknown verse text is filled in.
func (g *ViewGraph) EnsureNode(node *entities.VerseNode) (bool, error) {
	if node == nil {
		return false, pkgerrors.NewValidationError("node cannot be nil")
	}

	key := node.Key().String()
	if existing, ok := g.nodes[key]; ok {
		existing.FillText(node.Text())
		return false, nil
	}

	if len(g.nodes) >= g.config.MaxNodesPerSession {
		return false, pkgerrors.NewConflictError(fmt.Sprintf("maximum nodes reached: %d", g.config.MaxNodesPerSession))
	}

	g.nodes[key] = node
	return true, nil
}

// EnsureEdge inserts the canonical edge for (a, b) if absent. Both endpoints
// must already exist as nodes; self-references are rejected. Returns whether
// the edge was created.
func (g *ViewGraph) EnsureEdge(a, b valueobjects.VerseKey, kind EdgeKind, expandedFrom valueobjects.VerseKey) (bool, error) {
	if a.Equals(b) {
		return false, pkgerrors.NewValidationError("cannot connect a verse to itself")
	}
	if _, ok := g.nodes[a.String()]; !ok {
		return false, pkgerrors.NewValidationError("source node missing from graph")
	}
	if _, ok := g.nodes[b.String()]; !ok {
		return false, pkgerrors.NewValidationError("target node missing from graph")
	}

	key := EdgeKeyFor(a, b)
	if _, ok := g.edges[key]; ok {
		return false, nil
	}

	if len(g.edges) >= g.config.MaxEdgesPerSession {
		return false, pkgerrors.NewConflictError(fmt.Sprintf("maximum edges reached: %d", g.config.MaxEdgesPerSession))
	}

	g.edges[key] = &Edge{
		Key:          key,
		A:            a,
		B:            b,
		Kind:         kind,
		ExpandedFrom: expandedFrom,
	}
	return true, nil
}

// HasNode checks residency of a verse key
func (g *ViewGraph) HasNode(key valueobjects.VerseKey) bool {
	_, ok := g.nodes[key.String()]
	return ok
}

// Node returns the resident node for a key, or nil
func (g *ViewGraph) Node(key valueobjects.VerseKey) *entities.VerseNode {
	return g.nodes[key.String()]
}

// Nodes returns all resident nodes
func (g *ViewGraph) Nodes() []*entities.VerseNode {
	nodes := make([]*entities.VerseNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// Edges returns all resident edges
func (g *ViewGraph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	return edges
}

// EdgeByKey returns the edge with the given canonical key, or nil
func (g *ViewGraph) EdgeByKey(key string) *Edge {
	return g.edges[key]
}

// NodeCount returns the number of resident nodes
func (g *ViewGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of resident edges
func (g *ViewGraph) EdgeCount() int {
	return len(g.edges)
}

// NeighborKeys returns the keys directly connected to key by any edge
func (g *ViewGraph) NeighborKeys(key valueobjects.VerseKey) []valueobjects.VerseKey {
	var neighbors []valueobjects.VerseKey
	for _, e := range g.edges {
		if e.Touches(key) {
			neighbors = append(neighbors, e.Other(key))
		}
	}
	return neighbors
}

// MoveNode repositions a resident node. This is the only merge-independent
// position mutation; layout never revisits existing nodes.
func (g *ViewGraph) MoveNode(key valueobjects.VerseKey, pos valueobjects.Position) error {
	node, ok := g.nodes[key.String()]
	if !ok {
		return pkgerrors.NewNotFoundError("node")
	}
	node.MoveTo(pos)
	return nil
}

// Positions returns the positions of all resident nodes
func (g *ViewGraph) Positions() []valueobjects.Position {
	positions := make([]valueobjects.Position, 0, len(g.nodes))
	for _, n := range g.nodes {
		positions = append(positions, n.Position())
	}
	return positions
}

// Expansion state

// IsExpanded reports whether key's direct relationships are shown expanded
func (g *ViewGraph) IsExpanded(key valueobjects.VerseKey) bool {
	return g.expanded.Contains(key.String())
}

// MarkExpanded records key as expanded
func (g *ViewGraph) MarkExpanded(key valueobjects.VerseKey) {
	g.expanded.Add(key.String())
}

// ExpandedKeys returns the canonical keys of all expanded nodes
func (g *ViewGraph) ExpandedKeys() []string {
	return g.expanded.ToSlice()
}

// Collapse removes key from the expansion set and retracts the expansion
// edges it produced. Nodes are never removed; a neighbor independently
// referenced elsewhere keeps its other edges. Returns the retracted edge keys.
func (g *ViewGraph) Collapse(key valueobjects.VerseKey) []string {
	g.expanded.Remove(key.String())

	var removed []string
	for edgeKey, e := range g.edges {
		if e.Kind == EdgeKindExpansion && e.ExpandedFrom.Equals(key) {
			delete(g.edges, edgeKey)
			removed = append(removed, edgeKey)
		}
	}
	return removed
}

// Neighborhood page memo and in-flight guard

// PageLoaded reports whether the (book, chapter) window was already fetched.
// Empty windows count as loaded so empty regions are not re-fetched.
func (g *ViewGraph) PageLoaded(page valueobjects.PageKey) bool {
	return g.loadedNeighborhoods.Contains(page.String())
}

// BeginPageLoad claims the page for fetching. It returns false when the page
// is already loaded or a fetch for it is in flight, in which case the caller
// must not issue another request.
func (g *ViewGraph) BeginPageLoad(page valueobjects.PageKey) bool {
	key := page.String()
	if g.loadedNeighborhoods.Contains(key) || g.pendingFetches.Contains(key) {
		return false
	}
	g.pendingFetches.Add(key)
	return true
}

// EndPageLoad releases the in-flight claim. On success the page is memoized
// as loaded; on failure it stays eligible for a retry.
func (g *ViewGraph) EndPageLoad(page valueobjects.PageKey, success bool) {
	key := page.String()
	g.pendingFetches.Remove(key)
	if success {
		g.loadedNeighborhoods.Add(key)
	}
}

// PageLoadPending reports whether a fetch for the page is in flight
func (g *ViewGraph) PageLoadPending(page valueobjects.PageKey) bool {
	return g.pendingFetches.Contains(page.String())
}

// Validate ensures graph invariants
func (g *ViewGraph) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.nodes[e.A.String()]; !ok {
			return pkgerrors.NewValidationError("edge references non-existent node " + e.A.String())
		}
		if _, ok := g.nodes[e.B.String()]; !ok {
			return pkgerrors.NewValidationError("edge references non-existent node " + e.B.String())
		}
	}
	return nil
}
