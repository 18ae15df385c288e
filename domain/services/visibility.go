package services

import (
	"strings"

	"versegraph/domain/config"
	"versegraph/domain/core/aggregates"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
)

// Filter is the UI's current search/category restriction
type Filter struct {
	Term     string
	Category entities.AnnotationCategory
}

// IsZero reports whether the filter restricts nothing
func (f Filter) IsZero() bool {
	return f.Term == "" && f.Category == ""
}

// NodeFlags is the per-node style state pushed to the rendering surface
type NodeFlags struct {
	Hidden     bool `json:"hidden"`
	Dimmed     bool `json:"dimmed"`
	Emphasized bool `json:"emphasized"`
	Expanded   bool `json:"expanded"`
	Focused    bool `json:"focused"`
}

// EdgeFlags is the per-edge style state pushed to the rendering surface
type EdgeFlags struct {
	Hidden    bool `json:"hidden"`
	Expansion bool `json:"expansion"`
}

// VisibleSubset maps canonical keys to style flags. It is a pure function of
// canonical state plus the UI filters and never feeds back into it.
type VisibleSubset struct {
	Nodes map[string]NodeFlags
	Edges map[string]EdgeFlags
}

// VisibilityService computes the visible subset of a canonical graph
type VisibilityService struct {
	config *config.DomainConfig
}

// NewVisibilityService creates a visibility service
func NewVisibilityService(cfg *config.DomainConfig) *VisibilityService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &VisibilityService{config: cfg}
}

// Compute derives per-node and per-edge flags. nodeCategories maps a node's
// canonical key to the annotation categories present on it, used by the
// category filter. When focus is non-nil, visibility is restricted to the
// focus node, its direct neighbors, and the expansion closure; everything
// else is dimmed or hidden per the configured policy. An edge is visible only
// if both endpoints are.
func (s *VisibilityService) Compute(
	g *aggregates.ViewGraph,
	filter Filter,
	focus *valueobjects.VerseKey,
	nodeCategories map[string][]entities.AnnotationCategory,
) VisibleSubset {
	subset := VisibleSubset{
		Nodes: make(map[string]NodeFlags, g.NodeCount()),
		Edges: make(map[string]EdgeFlags, g.EdgeCount()),
	}

	closure := s.focusClosure(g, focus)

	term := strings.ToLower(strings.TrimSpace(filter.Term))

	for _, node := range g.Nodes() {
		key := node.Key().String()

		matches := matchesTerm(node, term) && s.matchesCategory(key, filter.Category, nodeCategories)

		flags := NodeFlags{
			Expanded:   g.IsExpanded(node.Key()),
			Focused:    focus != nil && node.Key().Equals(*focus),
			Emphasized: term != "" && matchesTerm(node, term),
		}

		if !matches {
			flags.Hidden = true
		} else if closure != nil && !closure[key] {
			switch s.config.DimPolicy {
			case config.DimPolicyHide:
				flags.Hidden = true
			default:
				flags.Dimmed = true
			}
		}

		subset.Nodes[key] = flags
	}

	for _, edge := range g.Edges() {
		aFlags := subset.Nodes[edge.A.String()]
		bFlags := subset.Nodes[edge.B.String()]

		subset.Edges[edge.Key] = EdgeFlags{
			Hidden:    aFlags.Hidden || bFlags.Hidden,
			Expansion: edge.Kind == aggregates.EdgeKindExpansion,
		}
	}

	return subset
}

// focusClosure returns the set of keys that stay fully visible under a focus
// restriction: the focus itself, nodes one edge away from it, every expanded
// node, and the endpoints of expansion edges. Nil means no restriction.
func (s *VisibilityService) focusClosure(g *aggregates.ViewGraph, focus *valueobjects.VerseKey) map[string]bool {
	if focus == nil {
		return nil
	}

	closure := make(map[string]bool)
	closure[focus.String()] = true
	for _, neighbor := range g.NeighborKeys(*focus) {
		closure[neighbor.String()] = true
	}
	for _, expanded := range g.ExpandedKeys() {
		closure[expanded] = true
	}
	for _, edge := range g.Edges() {
		if edge.Kind == aggregates.EdgeKindExpansion {
			closure[edge.A.String()] = true
			closure[edge.B.String()] = true
		}
	}
	return closure
}

func matchesTerm(node *entities.VerseNode, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(node.Key().String()), term) ||
		strings.Contains(strings.ToLower(node.Label()), term) ||
		strings.Contains(strings.ToLower(node.Text()), term)
}

func (s *VisibilityService) matchesCategory(key string, category entities.AnnotationCategory, nodeCategories map[string][]entities.AnnotationCategory) bool {
	if category == "" {
		return true
	}
	for _, c := range nodeCategories[key] {
		if c == category {
			return true
		}
	}
	return false
}
