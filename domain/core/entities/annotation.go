package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"versegraph/domain/config"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

// AnnotationCategory is the closed category set for knowledge cards
type AnnotationCategory string

const (
	CategoryNote       AnnotationCategory = "note"
	CategoryCommentary AnnotationCategory = "commentary"
	CategoryReflection AnnotationCategory = "reflection"
	CategoryQuestion   AnnotationCategory = "question"
)

// ValidCategory reports whether c is one of the closed category set
func ValidCategory(c AnnotationCategory) bool {
	switch c {
	case CategoryNote, CategoryCommentary, CategoryReflection, CategoryQuestion:
		return true
	default:
		return false
	}
}

// Annotation is a user-authored knowledge card attached to exactly one
// (verse, owner) pair. Only the owner mutates it; everyone else reads it.
type Annotation struct {
	id        string
	verseKey  valueobjects.VerseKey
	ownerID   string
	title     string
	body      string
	category  AnnotationCategory
	tags      []string
	createdAt time.Time
	updatedAt time.Time
}

// NewAnnotation creates an annotation with validation
func NewAnnotation(ownerID string, verseKey valueobjects.VerseKey, title, body string, category AnnotationCategory, tags []string) (*Annotation, error) {
	return NewAnnotationWithConfig(ownerID, verseKey, title, body, category, tags, config.DefaultDomainConfig())
}

// NewAnnotationWithConfig creates an annotation with validation and configuration
func NewAnnotationWithConfig(ownerID string, verseKey valueobjects.VerseKey, title, body string, category AnnotationCategory, tags []string, cfg *config.DomainConfig) (*Annotation, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if ownerID == "" {
		return nil, pkgerrors.NewUnauthorizedError("annotation requires an owner identity")
	}
	if verseKey.IsZero() {
		return nil, pkgerrors.NewValidationError("verse key is required")
	}

	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)

	if err := validateContent(title, body, cfg); err != nil {
		return nil, err
	}
	if !ValidCategory(category) {
		return nil, pkgerrors.NewValidationError("invalid annotation category")
	}

	deduped, err := dedupeTags(tags, cfg)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Annotation{
		id:        uuid.New().String(),
		verseKey:  verseKey,
		ownerID:   ownerID,
		title:     title,
		body:      body,
		category:  category,
		tags:      deduped,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructAnnotation recreates an annotation from stored data
func ReconstructAnnotation(id, ownerID string, verseKey valueobjects.VerseKey, title, body string, category AnnotationCategory, tags []string, createdAt, updatedAt time.Time) (*Annotation, error) {
	if id == "" || ownerID == "" || verseKey.IsZero() {
		return nil, pkgerrors.NewValidationError("required fields missing for annotation reconstruction")
	}
	return &Annotation{
		id:        id,
		verseKey:  verseKey,
		ownerID:   ownerID,
		title:     title,
		body:      body,
		category:  category,
		tags:      tags,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// ID returns the annotation's unique identifier
func (a *Annotation) ID() string {
	return a.id
}

// VerseKey returns the verse this card is attached to
func (a *Annotation) VerseKey() valueobjects.VerseKey {
	return a.verseKey
}

// OwnerID returns the owning user's ID
func (a *Annotation) OwnerID() string {
	return a.ownerID
}

// Title returns the card title
func (a *Annotation) Title() string {
	return a.title
}

// Body returns the card body
func (a *Annotation) Body() string {
	return a.body
}

// Category returns the card category
func (a *Annotation) Category() AnnotationCategory {
	return a.category
}

// Tags returns a copy of the tag set
func (a *Annotation) Tags() []string {
	tags := make([]string, len(a.tags))
	copy(tags, a.tags)
	return tags
}

// CreatedAt returns when the card was created
func (a *Annotation) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt returns when the card was last updated
func (a *Annotation) UpdatedAt() time.Time {
	return a.updatedAt
}

// IsOwnedBy reports whether userID owns this card
func (a *Annotation) IsOwnedBy(userID string) bool {
	return userID != "" && a.ownerID == userID
}

// Update replaces the card content. Caller identity must be the owner.
func (a *Annotation) Update(userID, title, body string, category AnnotationCategory, tags []string, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if !a.IsOwnedBy(userID) {
		return pkgerrors.NewForbiddenError("only the owner may edit this annotation")
	}

	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)

	if err := validateContent(title, body, cfg); err != nil {
		return err
	}
	if !ValidCategory(category) {
		return pkgerrors.NewValidationError("invalid annotation category")
	}

	deduped, err := dedupeTags(tags, cfg)
	if err != nil {
		return err
	}

	a.title = title
	a.body = body
	a.category = category
	a.tags = deduped
	a.updatedAt = time.Now()

	return nil
}

func validateContent(title, body string, cfg *config.DomainConfig) error {
	titleLen := utf8.RuneCountInString(title)
	if titleLen < cfg.MinTitleLength {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	if titleLen > cfg.MaxTitleLength {
		return pkgerrors.NewValidationError("title too long")
	}
	if body == "" && !cfg.AllowEmptyBodies {
		return pkgerrors.NewValidationError("body cannot be empty")
	}
	if utf8.RuneCountInString(body) > cfg.MaxBodyLength {
		return pkgerrors.NewValidationError("body too long")
	}
	return nil
}

// dedupeTags normalizes and deduplicates a tag list, preserving first-seen order
func dedupeTags(tags []string, cfg *config.DomainConfig) ([]string, error) {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) > cfg.MaxTagsPerCard {
		return nil, pkgerrors.NewValidationError("too many tags")
	}
	return out, nil
}
