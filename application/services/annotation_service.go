package services

import (
	"context"

	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/config"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
	"versegraph/pkg/common"
	pkgerrors "versegraph/pkg/errors"
)

// CreateAnnotationRequest carries a new knowledge card
type CreateAnnotationRequest struct {
	VerseKey string   `json:"verse_key" validate:"required"`
	Title    string   `json:"title" validate:"required,max=200"`
	Body     string   `json:"body"`
	Category string   `json:"category" validate:"required,oneof=note commentary reflection question"`
	Tags     []string `json:"tags"`
}

// UpdateAnnotationRequest carries an edit to an existing card
type UpdateAnnotationRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Body     string   `json:"body"`
	Category string   `json:"category" validate:"required,oneof=note commentary reflection question"`
	Tags     []string `json:"tags"`
}

// AnnotationView is the read model returned to callers
type AnnotationView struct {
	ID        string   `json:"id"`
	VerseKey  string   `json:"verse_key"`
	OwnerID   string   `json:"owner_id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	Editable  bool     `json:"editable"`
}

// AnnotationService mediates between callers and the remote annotation
// store. Ownership is decided locally from the caller's identity before any
// remote call is attempted: writes without an identity fail Unauthorized
// immediately, and unauthenticated listings return an empty result.
type AnnotationService struct {
	store  ports.AnnotationStore
	config *config.DomainConfig
	logger *zap.Logger
}

// NewAnnotationService creates an annotation service
func NewAnnotationService(store ports.AnnotationStore, cfg *config.DomainConfig, logger *zap.Logger) *AnnotationService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &AnnotationService{store: store, config: cfg, logger: logger}
}

// Create attaches a new card to a verse for the calling user
func (s *AnnotationService) Create(ctx context.Context, req CreateAnnotationRequest) (*AnnotationView, error) {
	userID, ok := common.GetUserID(ctx)
	if !ok {
		return nil, pkgerrors.NewUnauthorizedError("annotation writes require authentication")
	}
	token, _ := common.GetAuthToken(ctx)

	key, err := valueobjects.ParseVerseKey(req.VerseKey)
	if err != nil {
		return nil, err
	}

	annotation, err := entities.NewAnnotationWithConfig(
		userID, key, req.Title, req.Body,
		entities.AnnotationCategory(req.Category), req.Tags, s.config,
	)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, token, annotation); err != nil {
		return nil, pkgerrors.Wrap(err, "annotation create failed")
	}

	s.logger.Info("annotation created",
		zap.String("annotationID", annotation.ID()),
		zap.String("verseKey", key.String()),
	)

	view := s.toView(annotation, userID)
	return &view, nil
}

// List returns the cards matching the filter. Unauthenticated callers get an
// empty list, not an error.
func (s *AnnotationService) List(ctx context.Context, verseKey string, category string) ([]AnnotationView, error) {
	userID, authenticated := common.GetUserID(ctx)
	if !authenticated {
		return []AnnotationView{}, nil
	}

	filter := ports.AnnotationFilter{}
	if verseKey != "" {
		key, err := valueobjects.ParseVerseKey(verseKey)
		if err != nil {
			return nil, err
		}
		filter.VerseKey = &key
	}
	if category != "" {
		c := entities.AnnotationCategory(category)
		if !entities.ValidCategory(c) {
			return nil, pkgerrors.NewValidationError("invalid annotation category")
		}
		filter.Category = c
	}

	annotations, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "annotation list failed")
	}

	views := make([]AnnotationView, 0, len(annotations))
	for _, a := range annotations {
		views = append(views, s.toView(a, userID))
	}
	return views, nil
}

// CategoriesByVerse lists cards and folds them into the per-verse category
// index the visibility filter consumes
func (s *AnnotationService) CategoriesByVerse(ctx context.Context) (map[string][]entities.AnnotationCategory, error) {
	if _, authenticated := common.GetUserID(ctx); !authenticated {
		return map[string][]entities.AnnotationCategory{}, nil
	}

	annotations, err := s.store.List(ctx, ports.AnnotationFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "annotation list failed")
	}

	index := make(map[string][]entities.AnnotationCategory)
	for _, a := range annotations {
		key := a.VerseKey().String()
		if !containsCategory(index[key], a.Category()) {
			index[key] = append(index[key], a.Category())
		}
	}
	return index, nil
}

// Update edits a card owned by the calling user
func (s *AnnotationService) Update(ctx context.Context, annotationID string, req UpdateAnnotationRequest) (*AnnotationView, error) {
	userID, ok := common.GetUserID(ctx)
	if !ok {
		return nil, pkgerrors.NewUnauthorizedError("annotation writes require authentication")
	}
	token, _ := common.GetAuthToken(ctx)

	// Find the card among the caller's own; the remote store enforces
	// ownership again on the write itself.
	existing, err := s.findOwned(ctx, annotationID, userID)
	if err != nil {
		return nil, err
	}

	if err := existing.Update(userID, req.Title, req.Body, entities.AnnotationCategory(req.Category), req.Tags, s.config); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, token, existing); err != nil {
		return nil, pkgerrors.Wrap(err, "annotation update failed")
	}

	view := s.toView(existing, userID)
	return &view, nil
}

// Delete removes a card owned by the calling user
func (s *AnnotationService) Delete(ctx context.Context, annotationID string) error {
	userID, ok := common.GetUserID(ctx)
	if !ok {
		return pkgerrors.NewUnauthorizedError("annotation writes require authentication")
	}
	token, _ := common.GetAuthToken(ctx)

	if _, err := s.findOwned(ctx, annotationID, userID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, token, annotationID); err != nil {
		return pkgerrors.Wrap(err, "annotation delete failed")
	}

	s.logger.Info("annotation deleted", zap.String("annotationID", annotationID))
	return nil
}

func (s *AnnotationService) findOwned(ctx context.Context, annotationID, userID string) (*entities.Annotation, error) {
	annotations, err := s.store.List(ctx, ports.AnnotationFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "annotation lookup failed")
	}
	for _, a := range annotations {
		if a.ID() == annotationID {
			if !a.IsOwnedBy(userID) {
				return nil, pkgerrors.NewForbiddenError("only the owner may modify this annotation")
			}
			return a, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("annotation")
}

func (s *AnnotationService) toView(a *entities.Annotation, callerID string) AnnotationView {
	return AnnotationView{
		ID:        a.ID(),
		VerseKey:  a.VerseKey().String(),
		OwnerID:   a.OwnerID(),
		Title:     a.Title(),
		Body:      a.Body(),
		Category:  string(a.Category()),
		Tags:      a.Tags(),
		CreatedAt: a.CreatedAt().UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: a.UpdatedAt().UTC().Format("2006-01-02T15:04:05Z07:00"),
		Editable:  a.IsOwnedBy(callerID),
	}
}

func containsCategory(list []entities.AnnotationCategory, c entities.AnnotationCategory) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
