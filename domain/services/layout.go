package services

import (
	"hash/fnv"
	"math"

	"versegraph/domain/config"
	"versegraph/domain/core/valueobjects"
)

// Jitter produces values in [-1, 1]. It is injected so tests can pin the
// placement while production wires a seeded source per session.
type Jitter func() float64

// NoJitter always returns 0
func NoJitter() float64 { return 0 }

// CircularLayout places newly discovered nodes on a ring around their
// anchor. It is a placement heuristic, not a physics simulation: given the
// same inputs and jitter source it is fully deterministic, and it never
// touches the position of an existing node.
type CircularLayout struct {
	config *config.DomainConfig
	jitter Jitter
}

// NewCircularLayout creates a layout service with the given jitter source
func NewCircularLayout(cfg *config.DomainConfig, jitter Jitter) *CircularLayout {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if jitter == nil {
		jitter = NoJitter
	}
	return &CircularLayout{config: cfg, jitter: jitter}
}

// PlaceNeighbors computes positions for n new neighbors of center. The ring
// radius derives from the observed average spacing of existing nodes
// (falling back to the configured base when fewer than 2 exist), clamped,
// then scaled by sqrt(n/denom) so denser expansions get proportionally more
// room without unbounded growth. Each placement gets a small radius jitter to
// avoid perfectly overlapping rings on repeated same-size expansions.
func (l *CircularLayout) PlaceNeighbors(center valueobjects.Position, existing []valueobjects.Position, n int) []valueobjects.Position {
	if n <= 0 {
		return nil
	}

	base := l.config.BaseSpacing
	if len(existing) >= 2 {
		if observed := averageSpacing(existing); observed > 0 {
			base = observed
		}
	}

	radius := clamp(base, l.config.MinSpacing, l.config.MaxSpacing)
	radius *= math.Sqrt(float64(n) / l.config.DensityDenom)

	step := 2 * math.Pi / float64(n)
	positions := make([]valueobjects.Position, 0, n)
	for i := 0; i < n; i++ {
		r := radius * (1 + l.config.JitterFactor*l.jitter())
		angle := float64(i) * step
		pos, err := valueobjects.NewPosition(
			center.X()+r*math.Cos(angle),
			center.Y()+r*math.Sin(angle),
		)
		if err != nil {
			// Finite center and radius cannot produce non-finite
			// coordinates; keep the anchor as a safety net.
			pos = center
		}
		positions = append(positions, pos)
	}
	return positions
}

// FallbackPosition derives a reproducible standalone placement for a verse
// that was resolved by a direct single-entity fetch. The chapter/verse grid
// keeps nearby verses near each other; the book hash separates books.
func (l *CircularLayout) FallbackPosition(key valueobjects.VerseKey) valueobjects.Position {
	h := fnv.New32a()
	h.Write([]byte(key.Book()))
	angle := float64(h.Sum32()%360) * math.Pi / 180

	x := float64(key.Chapter())*l.config.FallbackGridX + l.config.BaseSpacing*math.Cos(angle)
	y := float64(key.Verse())*l.config.FallbackGridY + l.config.BaseSpacing*math.Sin(angle)

	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return valueobjects.Origin()
	}
	return pos
}

// averageSpacing estimates node density as the mean pairwise distance over a
// bounded sample, so large graphs stay cheap to place into.
func averageSpacing(positions []valueobjects.Position) float64 {
	const sampleCap = 32

	sample := positions
	if len(sample) > sampleCap {
		sample = sample[:sampleCap]
	}

	var total float64
	var count int
	for i := 0; i < len(sample); i++ {
		for j := i + 1; j < len(sample); j++ {
			total += sample[i].DistanceTo(sample[j])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
