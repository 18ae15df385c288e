package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versegraph/domain/config"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

func mustKey(t *testing.T, s string) valueobjects.VerseKey {
	t.Helper()
	key, err := valueobjects.ParseVerseKey(s)
	require.NoError(t, err)
	return key
}

func mustNode(t *testing.T, s, text string) *entities.VerseNode {
	t.Helper()
	node, err := entities.NewVerseNode(mustKey(t, s), text, valueobjects.Origin(), entities.OriginNeighborhood)
	require.NoError(t, err)
	return node
}

func TestViewGraph_EnsureNode_Dedup(t *testing.T) {
	g := NewViewGraph(nil)

	created, err := g.EnsureNode(mustNode(t, "Genesis-1-1", "In the beginning"))
	require.NoError(t, err)
	assert.True(t, created)

	// Same key again: no second node, regardless of differing payload.
	created, err = g.EnsureNode(mustNode(t, "Genesis-1-1", "other text"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, g.NodeCount())

	// The original text wins; dedup never overwrites.
	assert.Equal(t, "In the beginning", g.Node(mustKey(t, "Genesis-1-1")).Text())
}

func TestViewGraph_EnsureNode_FillsMissingText(t *testing.T) {
	g := NewViewGraph(nil)

	_, err := g.EnsureNode(mustNode(t, "Genesis-1-2", ""))
	require.NoError(t, err)

	created, err := g.EnsureNode(mustNode(t, "Genesis-1-2", "And the earth was without form"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "And the earth was without form", g.Node(mustKey(t, "Genesis-1-2")).Text())
}

func TestViewGraph_EnsureNode_Limit(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxNodesPerSession = 1
	g := NewViewGraph(cfg)

	_, err := g.EnsureNode(mustNode(t, "Genesis-1-1", ""))
	require.NoError(t, err)

	_, err = g.EnsureNode(mustNode(t, "Genesis-1-2", ""))
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestViewGraph_EnsureEdge_Dedup(t *testing.T) {
	g := NewViewGraph(nil)
	a := mustKey(t, "Genesis-1-1")
	b := mustKey(t, "Genesis-1-3")

	_, err := g.EnsureNode(mustNode(t, "Genesis-1-1", ""))
	require.NoError(t, err)
	_, err = g.EnsureNode(mustNode(t, "Genesis-1-3", ""))
	require.NoError(t, err)

	created, err := g.EnsureEdge(a, b, EdgeKindCrossReference, valueobjects.VerseKey{})
	require.NoError(t, err)
	assert.True(t, created)

	// Same pair in reverse order is the same edge.
	created, err = g.EnsureEdge(b, a, EdgeKindCrossReference, valueobjects.VerseKey{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestViewGraph_EnsureEdge_Validation(t *testing.T) {
	g := NewViewGraph(nil)
	a := mustKey(t, "Genesis-1-1")
	b := mustKey(t, "Genesis-1-3")

	// Self-reference rejected.
	_, err := g.EnsureEdge(a, a, EdgeKindCrossReference, valueobjects.VerseKey{})
	assert.True(t, pkgerrors.IsValidation(err))

	// Both endpoints must be resident.
	_, err = g.EnsureEdge(a, b, EdgeKindCrossReference, valueobjects.VerseKey{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = g.EnsureNode(mustNode(t, "Genesis-1-1", ""))
	require.NoError(t, err)
	_, err = g.EnsureEdge(a, b, EdgeKindCrossReference, valueobjects.VerseKey{})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestEdgeKeyFor_OrderIndependent(t *testing.T) {
	a, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	b, _ := valueobjects.ParseVerseKey("John-3-16")

	assert.Equal(t, EdgeKeyFor(a, b), EdgeKeyFor(b, a))
	assert.Equal(t, "edge:Genesis-1-1|John-3-16", EdgeKeyFor(a, b))
}

func TestViewGraph_Collapse_RemovesOnlyOwnExpansionEdges(t *testing.T) {
	g := NewViewGraph(nil)
	center := mustKey(t, "Genesis-1-1")
	near := mustKey(t, "Genesis-1-3")
	far := mustKey(t, "John-3-16")

	for _, s := range []string{"Genesis-1-1", "Genesis-1-3", "John-3-16"} {
		_, err := g.EnsureNode(mustNode(t, s, ""))
		require.NoError(t, err)
	}

	// A pre-existing cross-reference and two expansion edges from center.
	_, err := g.EnsureEdge(center, near, EdgeKindCrossReference, valueobjects.VerseKey{})
	require.NoError(t, err)
	_, err = g.EnsureEdge(center, far, EdgeKindExpansion, center)
	require.NoError(t, err)
	_, err = g.EnsureEdge(near, far, EdgeKindExpansion, near)
	require.NoError(t, err)
	g.MarkExpanded(center)
	g.MarkExpanded(near)

	removed := g.Collapse(center)

	assert.Equal(t, []string{EdgeKeyFor(center, far)}, removed)
	assert.False(t, g.IsExpanded(center))
	assert.True(t, g.IsExpanded(near))
	// Cross-reference and the other node's expansion edge survive.
	assert.NotNil(t, g.EdgeByKey(EdgeKeyFor(center, near)))
	assert.NotNil(t, g.EdgeByKey(EdgeKeyFor(near, far)))
	// Nodes are never removed on collapse.
	assert.Equal(t, 3, g.NodeCount())
}

func TestViewGraph_PageMemo(t *testing.T) {
	g := NewViewGraph(nil)
	page := valueobjects.NewPageKey("Genesis", 1)

	assert.False(t, g.PageLoaded(page))
	assert.True(t, g.BeginPageLoad(page))

	// Second claim while the first is in flight must be refused.
	assert.False(t, g.BeginPageLoad(page))
	assert.True(t, g.PageLoadPending(page))

	// A failed load stays retryable.
	g.EndPageLoad(page, false)
	assert.False(t, g.PageLoaded(page))
	assert.True(t, g.BeginPageLoad(page))

	// A successful load, even an empty one, is memoized.
	g.EndPageLoad(page, true)
	assert.True(t, g.PageLoaded(page))
	assert.False(t, g.BeginPageLoad(page))
}

func TestViewGraph_NeighborKeys(t *testing.T) {
	g := NewViewGraph(nil)
	center := mustKey(t, "Genesis-1-1")

	for _, s := range []string{"Genesis-1-1", "Genesis-1-2", "Genesis-1-3"} {
		_, err := g.EnsureNode(mustNode(t, s, ""))
		require.NoError(t, err)
	}
	_, err := g.EnsureEdge(center, mustKey(t, "Genesis-1-2"), EdgeKindCrossReference, valueobjects.VerseKey{})
	require.NoError(t, err)
	_, err = g.EnsureEdge(mustKey(t, "Genesis-1-3"), center, EdgeKindCrossReference, valueobjects.VerseKey{})
	require.NoError(t, err)

	neighbors := g.NeighborKeys(center)
	require.Len(t, neighbors, 2)

	found := map[string]bool{}
	for _, n := range neighbors {
		found[n.String()] = true
	}
	assert.True(t, found["Genesis-1-2"])
	assert.True(t, found["Genesis-1-3"])
}

func TestViewGraph_MoveNode(t *testing.T) {
	g := NewViewGraph(nil)
	key := mustKey(t, "Genesis-1-1")

	_, err := g.EnsureNode(mustNode(t, "Genesis-1-1", ""))
	require.NoError(t, err)

	pos, _ := valueobjects.NewPosition(42, -7)
	require.NoError(t, g.MoveNode(key, pos))
	assert.True(t, g.Node(key).Position().Equals(pos))

	err = g.MoveNode(mustKey(t, "John-3-16"), pos)
	assert.True(t, pkgerrors.IsNotFound(err))
}
