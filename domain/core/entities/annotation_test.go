package entities

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versegraph/domain/config"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

func verseKey(t *testing.T) valueobjects.VerseKey {
	t.Helper()
	key, err := valueobjects.ParseVerseKey("Genesis-1-1")
	require.NoError(t, err)
	return key
}

func TestNewAnnotation_Valid(t *testing.T) {
	a, err := NewAnnotation("user-1", verseKey(t), "Creation", "First words.", CategoryNote, []string{"beginnings"})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID())
	assert.Equal(t, "user-1", a.OwnerID())
	assert.Equal(t, "Creation", a.Title())
	assert.Equal(t, CategoryNote, a.Category())
	assert.True(t, a.IsOwnedBy("user-1"))
	assert.False(t, a.IsOwnedBy("user-2"))
}

func TestNewAnnotation_RequiresOwner(t *testing.T) {
	_, err := NewAnnotation("", verseKey(t), "Creation", "", CategoryNote, nil)
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestNewAnnotation_RejectsInvalidCategory(t *testing.T) {
	_, err := NewAnnotation("user-1", verseKey(t), "Creation", "", AnnotationCategory("musing"), nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewAnnotation_TitleBounds(t *testing.T) {
	_, err := NewAnnotation("user-1", verseKey(t), "   ", "", CategoryNote, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	long := strings.Repeat("x", 201)
	_, err = NewAnnotation("user-1", verseKey(t), long, "", CategoryNote, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewAnnotation_EmptyBodyAllowedByDefault(t *testing.T) {
	a, err := NewAnnotation("user-1", verseKey(t), "Creation", "", CategoryNote, nil)
	require.NoError(t, err)
	assert.Empty(t, a.Body())

	cfg := config.DefaultDomainConfig()
	cfg.AllowEmptyBodies = false
	_, err = NewAnnotationWithConfig("user-1", verseKey(t), "Creation", "", CategoryNote, nil, cfg)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewAnnotation_TagDedup(t *testing.T) {
	a, err := NewAnnotation("user-1", verseKey(t), "Creation", "", CategoryNote,
		[]string{"Light", "light", " LIGHT ", "darkness"})
	require.NoError(t, err)

	assert.Equal(t, []string{"light", "darkness"}, a.Tags())
}

func TestAnnotation_Update_OwnerOnly(t *testing.T) {
	a, err := NewAnnotation("user-1", verseKey(t), "Creation", "v1", CategoryNote, nil)
	require.NoError(t, err)

	err = a.Update("user-2", "Stolen", "v2", CategoryNote, nil, nil)
	assert.True(t, pkgerrors.IsForbidden(err))
	assert.Equal(t, "Creation", a.Title())

	before := a.UpdatedAt()
	require.NoError(t, a.Update("user-1", "Creation revisited", "v2", CategoryReflection, nil, nil))
	assert.Equal(t, "Creation revisited", a.Title())
	assert.Equal(t, CategoryReflection, a.Category())
	assert.False(t, a.UpdatedAt().Before(before))
}

func TestReconstructAnnotation_RequiresIdentity(t *testing.T) {
	now := time.Now()

	_, err := ReconstructAnnotation("", "user-1", verseKey(t), "t", "", CategoryNote, nil, now, now)
	assert.Error(t, err)

	_, err = ReconstructAnnotation("id-1", "", verseKey(t), "t", "", CategoryNote, nil, now, now)
	assert.Error(t, err)
}
