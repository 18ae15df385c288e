package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versegraph/domain/config"
	"versegraph/domain/core/valueobjects"
)

func TestCircularLayout_PlaceNeighbors_FourOnRing(t *testing.T) {
	layout := NewCircularLayout(nil, NoJitter)
	center := valueobjects.Origin()

	positions := layout.PlaceNeighbors(center, nil, 4)
	require.Len(t, positions, 4)

	// Defaults: base 250, clamp is a no-op, sqrt(4/4) leaves the radius at 250.
	for _, pos := range positions {
		assert.InDelta(t, 250.0, center.DistanceTo(pos), 1e-9)
	}

	// Equal angular steps starting at angle 0.
	assert.InDelta(t, 250.0, positions[0].X(), 1e-9)
	assert.InDelta(t, 0.0, positions[0].Y(), 1e-9)
	assert.InDelta(t, 0.0, positions[1].X(), 1e-9)
	assert.InDelta(t, 250.0, positions[1].Y(), 1e-9)
	assert.InDelta(t, -250.0, positions[2].X(), 1e-9)
	assert.InDelta(t, 0.0, positions[3].X(), 1e-9)
	assert.InDelta(t, -250.0, positions[3].Y(), 1e-9)
}

func TestCircularLayout_PlaceNeighbors_RadiusScalesWithCount(t *testing.T) {
	layout := NewCircularLayout(nil, NoJitter)
	center := valueobjects.Origin()

	single := layout.PlaceNeighbors(center, nil, 1)
	require.Len(t, single, 1)
	assert.InDelta(t, 250.0*math.Sqrt(0.25), center.DistanceTo(single[0]), 1e-9)

	sixteen := layout.PlaceNeighbors(center, nil, 16)
	require.Len(t, sixteen, 16)
	assert.InDelta(t, 500.0, center.DistanceTo(sixteen[0]), 1e-9)
}

func TestCircularLayout_PlaceNeighbors_ObservedSpacingClamped(t *testing.T) {
	layout := NewCircularLayout(nil, NoJitter)
	center := valueobjects.Origin()

	// Two existing nodes 1000 apart: observed spacing exceeds the maximum
	// and must be clamped to it.
	a, _ := valueobjects.NewPosition(0, 0)
	b, _ := valueobjects.NewPosition(1000, 0)

	positions := layout.PlaceNeighbors(center, []valueobjects.Position{a, b}, 4)
	require.Len(t, positions, 4)
	assert.InDelta(t, 400.0, center.DistanceTo(positions[0]), 1e-9)

	// Two nodes 10 apart: clamped up to the minimum.
	c, _ := valueobjects.NewPosition(10, 0)
	positions = layout.PlaceNeighbors(center, []valueobjects.Position{a, c}, 4)
	assert.InDelta(t, 200.0, center.DistanceTo(positions[0]), 1e-9)
}

func TestCircularLayout_PlaceNeighbors_JitterBounded(t *testing.T) {
	// Worst-case jitter in both directions stays within the configured factor.
	up := NewCircularLayout(nil, func() float64 { return 1 })
	down := NewCircularLayout(nil, func() float64 { return -1 })
	center := valueobjects.Origin()

	high := up.PlaceNeighbors(center, nil, 4)
	low := down.PlaceNeighbors(center, nil, 4)

	assert.InDelta(t, 275.0, center.DistanceTo(high[0]), 1e-9)
	assert.InDelta(t, 225.0, center.DistanceTo(low[0]), 1e-9)
}

func TestCircularLayout_PlaceNeighbors_ZeroCount(t *testing.T) {
	layout := NewCircularLayout(nil, NoJitter)
	assert.Nil(t, layout.PlaceNeighbors(valueobjects.Origin(), nil, 0))
}

func TestCircularLayout_FallbackPosition_Deterministic(t *testing.T) {
	layout := NewCircularLayout(nil, NoJitter)
	key, _ := valueobjects.ParseVerseKey("Genesis-1-1")

	first := layout.FallbackPosition(key)
	second := layout.FallbackPosition(key)
	assert.True(t, first.Equals(second))

	other, _ := valueobjects.ParseVerseKey("Genesis-2-5")
	assert.False(t, first.Equals(layout.FallbackPosition(other)))
}

func TestCircularLayout_FallbackPosition_GridKeepsChaptersApart(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	layout := NewCircularLayout(cfg, NoJitter)

	ch1, _ := valueobjects.ParseVerseKey("Genesis-1-1")
	ch2, _ := valueobjects.ParseVerseKey("Genesis-2-1")

	// Same book hash, one chapter apart: exactly one grid column of distance.
	p1 := layout.FallbackPosition(ch1)
	p2 := layout.FallbackPosition(ch2)
	assert.InDelta(t, cfg.FallbackGridX, p2.X()-p1.X(), 1e-9)
	assert.InDelta(t, 0.0, p2.Y()-p1.Y(), 1e-9)
}
