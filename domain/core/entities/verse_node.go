package entities

import (
	"time"

	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

// NodeOrigin records which load path first produced a node. It has no effect
// on identity; the canonical verse key alone decides deduplication.
type NodeOrigin string

const (
	OriginNeighborhood NodeOrigin = "neighborhood"
	OriginExpansion    NodeOrigin = "expansion"
	OriginFallback     NodeOrigin = "fallback"
)

// VerseNode is a graph node for a single verse. The verse payload is
// immutable once fetched; only the position (via user drag) and the text
// (filled in lazily when a detail fetch supplies it) may change.
type VerseNode struct {
	key       valueobjects.VerseKey
	text      string
	position  valueobjects.Position
	origin    NodeOrigin
	createdAt time.Time
}

// NewVerseNode creates a node at the given layout position
func NewVerseNode(key valueobjects.VerseKey, text string, position valueobjects.Position, origin NodeOrigin) (*VerseNode, error) {
	if key.IsZero() {
		return nil, pkgerrors.NewValidationError("verse key is required")
	}
	return &VerseNode{
		key:       key,
		text:      text,
		position:  position,
		origin:    origin,
		createdAt: time.Now(),
	}, nil
}

// Key returns the canonical verse key
func (n *VerseNode) Key() valueobjects.VerseKey {
	return n.key
}

// Text returns the verse text, empty if only the relationship fetch has seen it
func (n *VerseNode) Text() string {
	return n.text
}

// Label returns the display label
func (n *VerseNode) Label() string {
	return n.key.Label()
}

// Position returns the node's position
func (n *VerseNode) Position() valueobjects.Position {
	return n.position
}

// Origin returns which load path created the node
func (n *VerseNode) Origin() NodeOrigin {
	return n.origin
}

// CreatedAt returns when the node entered canonical state
func (n *VerseNode) CreatedAt() time.Time {
	return n.createdAt
}

// MoveTo moves the node. Only the drag intent path calls this; merges never
// reposition existing nodes.
func (n *VerseNode) MoveTo(position valueobjects.Position) {
	n.position = position
}

// FillText sets the verse text if it is not already known. Later fetches
// never overwrite an existing text.
func (n *VerseNode) FillText(text string) {
	if n.text == "" && text != "" {
		n.text = text
	}
}
