package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
	"github.com/sakif/recipe-share/internal/storage"
)

// Recipe bounds.
const (
	MaxRecipeNameLength = 256
	MinCookingTime      = 1
	MaxCookingTime      = 32000
	MinAmount           = 1
	MaxAmount           = 32000
)

// IngredientAmount is one {id, amount} entry of a recipe payload.
type IngredientAmount struct {
	ID     int64
	Amount int
}

// RecipeInput is the body of recipe create and update. Image is a data URI;
// on update an empty Image keeps the current one.
type RecipeInput struct {
	Name        string
	Text        string
	CookingTime int
	Image       string
	Tags        []int64
	Ingredients []IngredientAmount
}

// RecipeQuery holds list filters as the client sends them. Favorite and
// cart filters only apply to authenticated viewers.
type RecipeQuery struct {
	Tags             []string
	AuthorID         int64
	IsFavorited      bool
	IsInShoppingCart bool
}

// linkEvicter is the part of ShortLinkService recipe deletion needs.
type linkEvicter interface {
	Evict(recipeID int64)
}

// RecipeService validates and persists recipes and enforces author-only
// mutation.
type RecipeService struct {
	recipes repository.RecipeRepository
	images  storage.Store
	links   linkEvicter
	logger  *slog.Logger
}

func NewRecipeService(
	recipes repository.RecipeRepository,
	images storage.Store,
	links linkEvicter,
	logger *slog.Logger,
) *RecipeService {
	return &RecipeService{
		recipes: recipes,
		images:  images,
		links:   links,
		logger:  logger,
	}
}

// validateRecipe checks the payload before anything touches storage, so a
// duplicate ingredient never leaves an uploaded image or a partial row
// behind. Unknown tag and ingredient ids are left to the foreign keys.
func validateRecipe(in *RecipeInput, requireImage bool) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Text = strings.TrimSpace(in.Text)

	if len(in.Ingredients) == 0 {
		return apperror.ValidationFailed("ingredients", "at least one ingredient is required")
	}
	seenIngredients := make(map[int64]struct{}, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		if ing.ID <= 0 {
			return apperror.ValidationFailed("ingredients", fmt.Sprintf("invalid ingredient id %d", ing.ID))
		}
		if _, dup := seenIngredients[ing.ID]; dup {
			return apperror.ValidationFailed("ingredients", fmt.Sprintf("ingredient %d is listed twice", ing.ID))
		}
		seenIngredients[ing.ID] = struct{}{}
		if ing.Amount < MinAmount || ing.Amount > MaxAmount {
			return apperror.ValidationFailed("amount",
				fmt.Sprintf("amount must be between %d and %d", MinAmount, MaxAmount))
		}
	}

	if len(in.Tags) == 0 {
		return apperror.ValidationFailed("tags", "at least one tag is required")
	}
	seenTags := make(map[int64]struct{}, len(in.Tags))
	for _, id := range in.Tags {
		if id <= 0 {
			return apperror.ValidationFailed("tags", fmt.Sprintf("invalid tag id %d", id))
		}
		if _, dup := seenTags[id]; dup {
			return apperror.ValidationFailed("tags", fmt.Sprintf("tag %d is listed twice", id))
		}
		seenTags[id] = struct{}{}
	}

	switch {
	case requireImage && strings.TrimSpace(in.Image) == "":
		return apperror.ValidationFailed("image", "image is required")
	case in.Name == "":
		return apperror.ValidationFailed("name", "name is required")
	case utf8.RuneCountInString(in.Name) > MaxRecipeNameLength:
		return lengthError("name", MaxRecipeNameLength)
	case in.Text == "":
		return apperror.ValidationFailed("text", "text is required")
	case in.CookingTime < MinCookingTime || in.CookingTime > MaxCookingTime:
		return apperror.ValidationFailed("cooking_time",
			fmt.Sprintf("cooking time must be between %d and %d", MinCookingTime, MaxCookingTime))
	}
	return nil
}

func (in *RecipeInput) apply(r *model.Recipe) {
	r.Name = in.Name
	r.Text = in.Text
	r.CookingTime = in.CookingTime

	r.Tags = make([]model.Tag, len(in.Tags))
	for i, id := range in.Tags {
		r.Tags[i] = model.Tag{ID: id}
	}
	r.Ingredients = make([]model.RecipeIngredient, len(in.Ingredients))
	for i, ing := range in.Ingredients {
		r.Ingredients[i] = model.RecipeIngredient{IngredientID: ing.ID, Amount: ing.Amount}
	}
}

// saveImage decodes and stores a data URI, returning its key.
func (s *RecipeService) saveImage(ctx context.Context, dataURI string) (string, error) {
	img, err := storage.DecodeDataURI("image", dataURI)
	if err != nil {
		return "", err
	}
	key := storage.NewKey(storage.RecipeImages, img.Ext)
	if err := s.images.Save(ctx, key, img); err != nil {
		return "", fmt.Errorf("service/recipe: saving image: %w", err)
	}
	return key, nil
}

// Create validates the payload, uploads the image and writes the recipe
// with its links in one transaction. If the write fails the uploaded image
// is removed again.
func (s *RecipeService) Create(ctx context.Context, viewerID int64, in RecipeInput) (*model.Recipe, error) {
	if err := requireViewer(viewerID); err != nil {
		return nil, err
	}
	if err := validateRecipe(&in, true); err != nil {
		return nil, err
	}

	key, err := s.saveImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	recipe := &model.Recipe{AuthorID: viewerID, Image: key}
	in.apply(recipe)

	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		discardImage(ctx, s.images, s.logger, key)
		return nil, s.writeError("creating", recipe, err)
	}

	s.logger.Info("recipe created",
		slog.Int64("recipeID", recipe.ID),
		slog.Int64("authorID", viewerID),
		slog.String("name", recipe.Name),
	)
	return s.Get(ctx, recipe.ID, viewerID)
}

// Update replaces the recipe. Only the author may update; ingredients and
// tags are required, the image is optional.
func (s *RecipeService) Update(ctx context.Context, viewerID, id int64, in RecipeInput) (*model.Recipe, error) {
	existing, err := s.authorized(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	if err := validateRecipe(&in, false); err != nil {
		return nil, err
	}

	recipe := &model.Recipe{ID: id, AuthorID: existing.AuthorID, Image: existing.Image}
	in.apply(recipe)

	var newKey string
	if strings.TrimSpace(in.Image) != "" {
		if newKey, err = s.saveImage(ctx, in.Image); err != nil {
			return nil, err
		}
		recipe.Image = newKey
	}

	if err := s.recipes.UpdateRecipe(ctx, recipe); err != nil {
		if newKey != "" {
			discardImage(ctx, s.images, s.logger, newKey)
		}
		return nil, s.writeError("updating", recipe, err)
	}
	if newKey != "" && existing.Image != "" {
		discardImage(ctx, s.images, s.logger, existing.Image)
	}

	s.logger.Info("recipe updated", slog.Int64("recipeID", id))
	return s.Get(ctx, id, viewerID)
}

// Delete removes the recipe (links, favorites, cart entries and short link
// cascade) and its image. Only the author may delete.
func (s *RecipeService) Delete(ctx context.Context, viewerID, id int64) error {
	existing, err := s.authorized(ctx, viewerID, id)
	if err != nil {
		return err
	}

	if err := s.recipes.DeleteRecipe(ctx, id); err != nil {
		return fmt.Errorf("service/recipe: deleting %d: %w", id, err)
	}
	s.links.Evict(id)
	if existing.Image != "" {
		discardImage(ctx, s.images, s.logger, existing.Image)
	}

	s.logger.Info("recipe deleted", slog.Int64("recipeID", id))
	return nil
}

// authorized loads the recipe and checks viewerID wrote it.
func (s *RecipeService) authorized(ctx context.Context, viewerID, id int64) (*model.Recipe, error) {
	if err := requireViewer(viewerID); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != viewerID {
		s.logger.Warn("recipe change by non-author",
			slog.Int64("recipeID", id),
			slog.Int64("userID", viewerID),
		)
		return nil, apperror.Forbidden("only the author can change this recipe")
	}
	return existing, nil
}

func (s *RecipeService) writeError(op string, recipe *model.Recipe, err error) error {
	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	s.logger.Error("failed to write recipe",
		slog.String("op", op),
		slog.String("name", recipe.Name),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("service/recipe: %s recipe: %w", op, err)
}

func (s *RecipeService) Get(ctx context.Context, id, viewerID int64) (*model.Recipe, error) {
	recipe, err := s.recipes.GetRecipe(ctx, id, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: fetching %d: %w", id, err)
	}
	return recipe, nil
}

// List returns one page of recipes, newest first, and the total match count.
func (s *RecipeService) List(ctx context.Context, q RecipeQuery, viewerID int64, opts repository.ListOptions) ([]model.Recipe, int, error) {
	filter := repository.RecipeFilter{
		Tags:     q.Tags,
		AuthorID: q.AuthorID,
	}
	if viewerID > 0 {
		if q.IsFavorited {
			filter.FavoritedBy = viewerID
		}
		if q.IsInShoppingCart {
			filter.InCartOf = viewerID
		}
	}

	recipes, total, err := s.recipes.ListRecipes(ctx, filter, viewerID, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("service/recipe: listing: %w", err)
	}
	return recipes, total, nil
}

// ImageURL turns a stored key into its public URL.
func (s *RecipeService) ImageURL(key string) string {
	return s.images.URL(key)
}
