// Package ports defines the interfaces this application consumes. The remote
// graph data source and the annotation store are external collaborators; the
// core never mutates remote verse or relationship data.
package ports

import (
	"context"

	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
)

// Verse is a single verse detail as returned by the remote source
type Verse struct {
	Key  valueobjects.VerseKey
	Text string
}

// Relationship is one cross-reference between two verses as returned by the
// remote source. Direction is an artifact of storage; canonical state treats
// the pair as unordered.
type Relationship struct {
	Source valueobjects.VerseKey
	Target valueobjects.VerseKey
}

// ScriptureReader reads verses and cross-references from the remote graph
// data source. Implementations return a NOT_FOUND AppError for absent verses
// and an EXTERNAL/NETWORK AppError for transient failures.
type ScriptureReader interface {
	// GetVerse fetches a single verse's details
	GetVerse(ctx context.Context, key valueobjects.VerseKey) (*Verse, error)

	// GetNeighborhood fetches a bounded set of relationships in the given
	// (book, chapter) window. An empty slice means the region has no
	// relationships; that is a successful outcome, not an error.
	GetNeighborhood(ctx context.Context, page valueobjects.PageKey, limit int) ([]Relationship, error)

	// GetCrossReferences fetches the direct relationships of one verse
	GetCrossReferences(ctx context.Context, key valueobjects.VerseKey) ([]valueobjects.VerseKey, error)
}

// AnnotationFilter restricts annotation listings
type AnnotationFilter struct {
	VerseKey *valueobjects.VerseKey
	Category entities.AnnotationCategory
}

// AnnotationStore persists knowledge cards behind the remote annotation API.
// Write operations carry the owner identity token minted by the external auth
// collaborator; the store rejects writes whose token does not match the
// card's owner.
type AnnotationStore interface {
	Create(ctx context.Context, ownerToken string, annotation *entities.Annotation) error
	List(ctx context.Context, filter AnnotationFilter) ([]*entities.Annotation, error)
	Update(ctx context.Context, ownerToken string, annotation *entities.Annotation) error
	Delete(ctx context.Context, ownerToken string, annotationID string) error
}
