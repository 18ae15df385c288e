package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/core/entities"
	"versegraph/pkg/common"
	pkgerrors "versegraph/pkg/errors"
)

// fakeAnnotationStore records calls so tests can assert no network traffic
// happens for locally rejected operations
type fakeAnnotationStore struct {
	annotations []*entities.Annotation

	createCalls int
	listCalls   int
	updateCalls int
	deleteCalls int

	lastToken string
}

func (f *fakeAnnotationStore) Create(ctx context.Context, ownerToken string, annotation *entities.Annotation) error {
	f.createCalls++
	f.lastToken = ownerToken
	f.annotations = append(f.annotations, annotation)
	return nil
}

func (f *fakeAnnotationStore) List(ctx context.Context, filter ports.AnnotationFilter) ([]*entities.Annotation, error) {
	f.listCalls++
	var out []*entities.Annotation
	for _, a := range f.annotations {
		if filter.VerseKey != nil && !a.VerseKey().Equals(*filter.VerseKey) {
			continue
		}
		if filter.Category != "" && a.Category() != filter.Category {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAnnotationStore) Update(ctx context.Context, ownerToken string, annotation *entities.Annotation) error {
	f.updateCalls++
	f.lastToken = ownerToken
	return nil
}

func (f *fakeAnnotationStore) Delete(ctx context.Context, ownerToken string, annotationID string) error {
	f.deleteCalls++
	f.lastToken = ownerToken
	for i, a := range f.annotations {
		if a.ID() == annotationID {
			f.annotations = append(f.annotations[:i], f.annotations[i+1:]...)
			return nil
		}
	}
	return pkgerrors.NewNotFoundError("annotation")
}

func authedCtx(userID, token string) context.Context {
	ctx := common.WithUserID(context.Background(), userID)
	return common.WithAuthToken(ctx, token)
}

func TestAnnotationService_Create(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())

	view, err := svc.Create(authedCtx("user-1", "tok-1"), CreateAnnotationRequest{
		VerseKey: "Genesis-1-1",
		Title:    "Creation",
		Body:     "First words.",
		Category: "note",
		Tags:     []string{"Beginnings", "beginnings"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Genesis-1-1", view.VerseKey)
	assert.Equal(t, "user-1", view.OwnerID)
	assert.True(t, view.Editable)
	assert.Equal(t, []string{"beginnings"}, view.Tags)
	assert.Equal(t, 1, store.createCalls)
	assert.Equal(t, "tok-1", store.lastToken)
}

func TestAnnotationService_Create_UnauthenticatedRejectedLocally(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateAnnotationRequest{
		VerseKey: "Genesis-1-1",
		Title:    "Creation",
		Category: "note",
	})

	assert.True(t, pkgerrors.IsUnauthorized(err))
	// The rejection happens before any remote call.
	assert.Equal(t, 0, store.createCalls)
	assert.Equal(t, 0, store.listCalls)
}

func TestAnnotationService_Create_InvalidKeyAndCategory(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())
	ctx := authedCtx("user-1", "tok-1")

	_, err := svc.Create(ctx, CreateAnnotationRequest{VerseKey: "nonsense", Title: "t", Category: "note"})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.Create(ctx, CreateAnnotationRequest{VerseKey: "Genesis-1-1", Title: "t", Category: "musing"})
	assert.True(t, pkgerrors.IsValidation(err))

	assert.Equal(t, 0, store.createCalls)
}

func TestAnnotationService_List_UnauthenticatedIsEmpty(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())

	views, err := svc.List(context.Background(), "", "")
	require.NoError(t, err)

	assert.Empty(t, views)
	assert.Equal(t, 0, store.listCalls)
}

func TestAnnotationService_List_FiltersAndMarksEditable(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())

	_, err := svc.Create(authedCtx("user-1", "tok-1"), CreateAnnotationRequest{
		VerseKey: "Genesis-1-1", Title: "Mine", Category: "note",
	})
	require.NoError(t, err)
	_, err = svc.Create(authedCtx("user-2", "tok-2"), CreateAnnotationRequest{
		VerseKey: "Genesis-1-1", Title: "Theirs", Category: "question",
	})
	require.NoError(t, err)

	views, err := svc.List(authedCtx("user-1", "tok-1"), "Genesis-1-1", "")
	require.NoError(t, err)
	require.Len(t, views, 2)

	for _, v := range views {
		assert.Equal(t, v.OwnerID == "user-1", v.Editable)
	}

	views, err = svc.List(authedCtx("user-1", "tok-1"), "", "question")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Theirs", views[0].Title)
}

func TestAnnotationService_Update_OwnershipEnforcedLocally(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())

	created, err := svc.Create(authedCtx("user-1", "tok-1"), CreateAnnotationRequest{
		VerseKey: "Genesis-1-1", Title: "Mine", Category: "note",
	})
	require.NoError(t, err)

	_, err = svc.Update(authedCtx("user-2", "tok-2"), created.ID, UpdateAnnotationRequest{
		Title: "Hijacked", Category: "note",
	})
	assert.True(t, pkgerrors.IsForbidden(err))
	assert.Equal(t, 0, store.updateCalls)

	view, err := svc.Update(authedCtx("user-1", "tok-1"), created.ID, UpdateAnnotationRequest{
		Title: "Mine, revised", Category: "reflection",
	})
	require.NoError(t, err)
	assert.Equal(t, "Mine, revised", view.Title)
	assert.Equal(t, "reflection", view.Category)
	assert.Equal(t, 1, store.updateCalls)
}

func TestAnnotationService_Delete(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())

	created, err := svc.Create(authedCtx("user-1", "tok-1"), CreateAnnotationRequest{
		VerseKey: "Genesis-1-1", Title: "Mine", Category: "note",
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID)
	assert.True(t, pkgerrors.IsUnauthorized(err))
	assert.Equal(t, 0, store.deleteCalls)

	err = svc.Delete(authedCtx("user-2", "tok-2"), created.ID)
	assert.True(t, pkgerrors.IsForbidden(err))

	require.NoError(t, svc.Delete(authedCtx("user-1", "tok-1"), created.ID))
	assert.Equal(t, 1, store.deleteCalls)

	err = svc.Delete(authedCtx("user-1", "tok-1"), created.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAnnotationService_CategoriesByVerse(t *testing.T) {
	store := &fakeAnnotationStore{}
	svc := NewAnnotationService(store, nil, zap.NewNop())
	ctx := authedCtx("user-1", "tok-1")

	for _, req := range []CreateAnnotationRequest{
		{VerseKey: "Genesis-1-1", Title: "a", Category: "note"},
		{VerseKey: "Genesis-1-1", Title: "b", Category: "note"},
		{VerseKey: "Genesis-1-1", Title: "c", Category: "question"},
		{VerseKey: "John-3-16", Title: "d", Category: "reflection"},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	index, err := svc.CategoriesByVerse(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]entities.AnnotationCategory{entities.CategoryNote, entities.CategoryQuestion},
		index["Genesis-1-1"])
	assert.Equal(t,
		[]entities.AnnotationCategory{entities.CategoryReflection},
		index["John-3-16"])

	// Anonymous callers get an empty index without touching the store.
	calls := store.listCalls
	index, err = svc.CategoriesByVerse(context.Background())
	require.NoError(t, err)
	assert.Empty(t, index)
	assert.Equal(t, calls, store.listCalls)
}
