package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
)

func seededCatalog() *fakeCatalog {
	return &fakeCatalog{
		ingredients: []model.Ingredient{
			{ID: 1, Name: "flour", MeasurementUnit: "g"},
			{ID: 2, Name: "eggs", MeasurementUnit: "pcs"},
			{ID: 3, Name: "Fennel seeds", MeasurementUnit: "g"},
			{ID: 4, Name: "sunflower oil", MeasurementUnit: "ml"},
		},
	}
}

// ===== INGREDIENTS =====

func TestIngredientList_PrefixIsCached(t *testing.T) {
	repo := seededCatalog()
	svc := NewIngredientService(repo, newTestLogger())

	got, err := svc.List(context.Background(), "F")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Fennel seeds", got[0].Name)
	assert.Equal(t, "flour", got[1].Name)

	_, err = svc.List(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls, "second lookup for the same prefix hits the cache")
}

func TestIngredientList_EmptyResultIsNotNil(t *testing.T) {
	svc := NewIngredientService(seededCatalog(), newTestLogger())

	got, err := svc.List(context.Background(), "zzz")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIngredientSearch_Fuzzy(t *testing.T) {
	svc := NewIngredientService(seededCatalog(), newTestLogger())

	got, err := svc.Search(context.Background(), "flr", 0)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "flour", got[0].Name)

	got, err = svc.Search(context.Background(), "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIngredientSearch_Limit(t *testing.T) {
	svc := NewIngredientService(seededCatalog(), newTestLogger())

	got, err := svc.Search(context.Background(), "e", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIngredientImport(t *testing.T) {
	repo := seededCatalog()
	svc := NewIngredientService(repo, newTestLogger())

	_, err := svc.List(context.Background(), "s")
	require.NoError(t, err)

	res, err := svc.Import(context.Background(), []model.Ingredient{
		{Name: " salt ", MeasurementUnit: "g"},
		{Name: "flour", MeasurementUnit: "g"},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 1, Existing: 1}, res)

	// Import purged the cache, so the new ingredient is visible.
	got, err := svc.List(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestIngredientImport_InvalidRowWritesNothing(t *testing.T) {
	repo := seededCatalog()
	svc := NewIngredientService(repo, newTestLogger())

	_, err := svc.Import(context.Background(), []model.Ingredient{
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "pepper", MeasurementUnit: ""},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Len(t, repo.ingredients, 4)
}

func TestIngredientImport_NameWithTwoUnits(t *testing.T) {
	repo := seededCatalog()
	svc := NewIngredientService(repo, newTestLogger())

	_, err := svc.Import(context.Background(), []model.Ingredient{
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "salt", MeasurementUnit: "pinch"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Len(t, repo.ingredients, 4, "nothing written")

	// A name already in the catalog with another unit is rejected too.
	_, err = svc.Import(context.Background(), []model.Ingredient{{Name: "flour", MeasurementUnit: "kg"}})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Len(t, repo.ingredients, 4)
}

func TestIngredientGet_NotFound(t *testing.T) {
	svc := NewIngredientService(seededCatalog(), newTestLogger())

	_, err := svc.Get(context.Background(), 100)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// ===== TAGS =====

func TestTagImport(t *testing.T) {
	repo := &fakeCatalog{}
	svc := NewTagService(repo, newTestLogger())

	res, err := svc.Import(context.Background(), []model.Tag{
		{Name: "Breakfast", Slug: "breakfast"},
		{Name: "Lunch", Slug: "lunch"},
		{Name: "Morning", Slug: "breakfast"},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Created: 2, Existing: 1}, res)

	tags, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, tags, 2)
	assert.Equal(t, "Breakfast", tags[0].Name)
}

func TestTagImport_Validation(t *testing.T) {
	tests := []struct {
		name string
		tag  model.Tag
	}{
		{"missing name", model.Tag{Slug: "x"}},
		{"bad slug", model.Tag{Name: "X", Slug: "has space"}},
		{"long slug", model.Tag{Name: "X", Slug: "abcdefghijklmnopqrstuvwxyz0123456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTagService(&fakeCatalog{}, newTestLogger())
			_, err := svc.Import(context.Background(), []model.Tag{tt.tag})
			assert.True(t, errors.Is(err, apperror.ErrValidation))
		})
	}
}

func TestTagList_EmptyIsNotNil(t *testing.T) {
	svc := NewTagService(&fakeCatalog{}, newTestLogger())

	tags, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tags)
}
