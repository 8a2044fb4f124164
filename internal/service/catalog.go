package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

// Catalog bounds.
const (
	MaxIngredientNameLength = 128
	MaxUnitLength           = 64
	MaxTagLength            = 32

	// DefaultSearchLimit caps fuzzy ingredient search results.
	DefaultSearchLimit = 20

	prefixCacheSize = 512
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// ImportResult counts rows seen by a catalog import.
type ImportResult struct {
	Created  int
	Existing int
}

// =========================================================================
// INGREDIENTS
// =========================================================================

// IngredientService serves the read-only ingredient catalog.
//
// The catalog only changes through Import, so prefix lookups (the
// autocomplete in the recipe form) are memoised per lowercased prefix in an
// LRU cache and the cache is purged after every import.
type IngredientService struct {
	repo   repository.IngredientRepository
	cache  *lru.Cache
	logger *slog.Logger
}

func NewIngredientService(repo repository.IngredientRepository, logger *slog.Logger) *IngredientService {
	cache, err := lru.New(prefixCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &IngredientService{repo: repo, cache: cache, logger: logger}
}

// List returns ingredients whose name starts with prefix (case-insensitive),
// ordered by name.
func (s *IngredientService) List(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	key := strings.ToLower(strings.TrimSpace(prefix))
	if v, ok := s.cache.Get(key); ok {
		return v.([]model.Ingredient), nil
	}

	items, err := s.repo.ListIngredients(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("service/ingredient: listing %q: %w", key, err)
	}
	if items == nil {
		items = []model.Ingredient{}
	}
	s.cache.Add(key, items)
	return items, nil
}

// ingredientSource adapts a slice to fuzzy.Source.
type ingredientSource []model.Ingredient

func (src ingredientSource) Len() int            { return len(src) }
func (src ingredientSource) String(i int) string { return strings.ToLower(src[i].Name) }

// Search ranks ingredients by fuzzy match of query against the name, best
// first. limit <= 0 means DefaultSearchLimit.
func (s *IngredientService) Search(ctx context.Context, query string, limit int) ([]model.Ingredient, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []model.Ingredient{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	all, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}

	matches := fuzzy.FindFrom(query, ingredientSource(all))
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]model.Ingredient, len(matches))
	for i, m := range matches {
		results[i] = all[m.Index]
	}
	return results, nil
}

func (s *IngredientService) Get(ctx context.Context, id int64) (*model.Ingredient, error) {
	ing, err := s.repo.GetIngredient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/ingredient: fetching %d: %w", id, err)
	}
	return ing, nil
}

// Import get-or-creates every ingredient. Invalid rows, including one name
// listed with two units, abort the import before anything is written. A
// name stored earlier with another unit fails at that row.
func (s *IngredientService) Import(ctx context.Context, items []model.Ingredient) (ImportResult, error) {
	units := make(map[string]string, len(items))
	for i := range items {
		items[i].Name = strings.TrimSpace(items[i].Name)
		items[i].MeasurementUnit = strings.TrimSpace(items[i].MeasurementUnit)
		if err := validateIngredient(&items[i]); err != nil {
			return ImportResult{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		name, unit := items[i].Name, items[i].MeasurementUnit
		if prev, ok := units[name]; ok && prev != unit {
			return ImportResult{}, fmt.Errorf("row %d: %w", i+1, apperror.ValidationFailed("name",
				fmt.Sprintf("ingredient %q is listed with units %q and %q", name, prev, unit)))
		}
		units[name] = unit
	}

	var res ImportResult
	for i := range items {
		created, err := s.repo.EnsureIngredient(ctx, &items[i])
		if err != nil {
			return res, fmt.Errorf("service/ingredient: importing %q: %w", items[i].Name, err)
		}
		if created {
			res.Created++
		} else {
			res.Existing++
		}
	}

	s.cache.Purge()
	s.logger.Info("ingredients imported",
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
	)
	return res, nil
}

func validateIngredient(ing *model.Ingredient) error {
	switch {
	case ing.Name == "":
		return apperror.ValidationFailed("name", "ingredient name is required")
	case utf8.RuneCountInString(ing.Name) > MaxIngredientNameLength:
		return lengthError("name", MaxIngredientNameLength)
	case ing.MeasurementUnit == "":
		return apperror.ValidationFailed("measurement_unit", "measurement unit is required")
	case utf8.RuneCountInString(ing.MeasurementUnit) > MaxUnitLength:
		return lengthError("measurement_unit", MaxUnitLength)
	}
	return nil
}

// =========================================================================
// TAGS
// =========================================================================

type TagService struct {
	repo   repository.TagRepository
	logger *slog.Logger
}

func NewTagService(repo repository.TagRepository, logger *slog.Logger) *TagService {
	return &TagService{repo: repo, logger: logger}
}

func (s *TagService) List(ctx context.Context) ([]model.Tag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/tag: listing: %w", err)
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	return tags, nil
}

func (s *TagService) Get(ctx context.Context, id int64) (*model.Tag, error) {
	tag, err := s.repo.GetTag(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/tag: fetching %d: %w", id, err)
	}
	return tag, nil
}

// Import get-or-creates tags by slug. A slug that already exists keeps its
// stored name.
func (s *TagService) Import(ctx context.Context, tags []model.Tag) (ImportResult, error) {
	for i := range tags {
		tags[i].Name = strings.TrimSpace(tags[i].Name)
		tags[i].Slug = strings.TrimSpace(tags[i].Slug)
		if err := validateTag(&tags[i]); err != nil {
			return ImportResult{}, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	var res ImportResult
	for i := range tags {
		created, err := s.repo.EnsureTag(ctx, &tags[i])
		if err != nil {
			return res, fmt.Errorf("service/tag: importing %q: %w", tags[i].Slug, err)
		}
		if created {
			res.Created++
		} else {
			res.Existing++
		}
	}

	s.logger.Info("tags imported",
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
	)
	return res, nil
}

func validateTag(tag *model.Tag) error {
	switch {
	case tag.Name == "":
		return apperror.ValidationFailed("name", "tag name is required")
	case utf8.RuneCountInString(tag.Name) > MaxTagLength:
		return lengthError("name", MaxTagLength)
	case tag.Slug == "":
		return apperror.ValidationFailed("slug", "tag slug is required")
	case utf8.RuneCountInString(tag.Slug) > MaxTagLength:
		return lengthError("slug", MaxTagLength)
	case !slugPattern.MatchString(tag.Slug):
		return apperror.ValidationFailed("slug", "slug may contain only letters, digits, - and _")
	}
	return nil
}
