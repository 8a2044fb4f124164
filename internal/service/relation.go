package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

// authorLoadConcurrency bounds the per-author recipe queries of one
// subscriptions page.
const authorLoadConcurrency = 4

// RelationService manages favorites, the shopping cart and subscriptions.
//
// Favorites and cart adds are idempotent: adding twice reports created=false
// and leaves one edge. Subscriptions are strict: a second subscribe is
// ErrDuplicateEdge. Removing an absent edge is ErrEdgeNotFound for all three.
type RelationService struct {
	relations repository.RelationRepository
	recipes   repository.RecipeRepository
	users     repository.UserRepository
	logger    *slog.Logger
}

func NewRelationService(
	relations repository.RelationRepository,
	recipes repository.RecipeRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *RelationService {
	return &RelationService{
		relations: relations,
		recipes:   recipes,
		users:     users,
		logger:    logger,
	}
}

// Favorite adds recipeID to userID's favorites and returns the recipe.
func (s *RelationService) Favorite(ctx context.Context, userID, recipeID int64) (*model.Recipe, bool, error) {
	return s.addRecipeEdge(ctx, "favorite", s.relations.AddFavorite, userID, recipeID)
}

func (s *RelationService) Unfavorite(ctx context.Context, userID, recipeID int64) error {
	return s.removeRecipeEdge(ctx, "favorite", s.relations.RemoveFavorite, userID, recipeID)
}

// AddToCart puts recipeID in userID's shopping cart and returns the recipe.
func (s *RelationService) AddToCart(ctx context.Context, userID, recipeID int64) (*model.Recipe, bool, error) {
	return s.addRecipeEdge(ctx, "cart", s.relations.AddToCart, userID, recipeID)
}

func (s *RelationService) RemoveFromCart(ctx context.Context, userID, recipeID int64) error {
	return s.removeRecipeEdge(ctx, "cart", s.relations.RemoveFromCart, userID, recipeID)
}

type addEdgeFunc func(ctx context.Context, userID, recipeID int64) (bool, error)

func (s *RelationService) addRecipeEdge(ctx context.Context, relation string, add addEdgeFunc, userID, recipeID int64) (*model.Recipe, bool, error) {
	if err := requireViewer(userID); err != nil {
		return nil, false, err
	}

	created, err := add(ctx, userID, recipeID)
	if err != nil {
		return nil, false, fmt.Errorf("service/relation: adding %s %d: %w", relation, recipeID, err)
	}

	recipe, err := s.recipes.GetRecipe(ctx, recipeID, userID)
	if err != nil {
		return nil, false, fmt.Errorf("service/relation: fetching recipe %d: %w", recipeID, err)
	}

	if created {
		s.logger.Info("recipe edge added",
			slog.String("relation", relation),
			slog.Int64("userID", userID),
			slog.Int64("recipeID", recipeID),
		)
	}
	return recipe, created, nil
}

type removeEdgeFunc func(ctx context.Context, userID, recipeID int64) error

func (s *RelationService) removeRecipeEdge(ctx context.Context, relation string, remove removeEdgeFunc, userID, recipeID int64) error {
	if err := requireViewer(userID); err != nil {
		return err
	}
	if err := remove(ctx, userID, recipeID); err != nil {
		return fmt.Errorf("service/relation: removing %s %d: %w", relation, recipeID, err)
	}
	return nil
}

// Subscribe makes userID follow authorID and returns the author with up to
// recipesLimit recipes (negative means all).
func (s *RelationService) Subscribe(ctx context.Context, userID, authorID int64, recipesLimit int) (*model.Author, error) {
	if err := requireViewer(userID); err != nil {
		return nil, err
	}
	if userID == authorID {
		return nil, apperror.SelfReference("you cannot subscribe to yourself")
	}

	if err := s.relations.Subscribe(ctx, userID, authorID); err != nil {
		return nil, fmt.Errorf("service/relation: subscribing %d to %d: %w", userID, authorID, err)
	}

	user, err := s.users.GetUserByID(ctx, authorID, userID)
	if err != nil {
		return nil, fmt.Errorf("service/relation: fetching author %d: %w", authorID, err)
	}
	author, err := s.loadAuthor(ctx, *user, userID, recipesLimit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscribed",
		slog.Int64("userID", userID),
		slog.Int64("authorID", authorID),
	)
	return author, nil
}

func (s *RelationService) Unsubscribe(ctx context.Context, userID, authorID int64) error {
	if err := requireViewer(userID); err != nil {
		return err
	}
	if err := s.relations.Unsubscribe(ctx, userID, authorID); err != nil {
		return fmt.Errorf("service/relation: unsubscribing %d from %d: %w", userID, authorID, err)
	}
	return nil
}

// Subscriptions lists the authors userID follows, each with their newest
// recipes. Authors on the page are loaded concurrently.
func (s *RelationService) Subscriptions(ctx context.Context, userID int64, opts repository.ListOptions, recipesLimit int) ([]model.Author, int, error) {
	if err := requireViewer(userID); err != nil {
		return nil, 0, err
	}

	users, total, err := s.relations.ListSubscriptions(ctx, userID, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("service/relation: listing subscriptions of %d: %w", userID, err)
	}

	authors := make([]model.Author, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(authorLoadConcurrency)
	for i := range users {
		g.Go(func() error {
			author, err := s.loadAuthor(gctx, users[i], userID, recipesLimit)
			if err != nil {
				return err
			}
			authors[i] = *author
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return authors, total, nil
}

// loadAuthor attaches the author's recipes (newest first) and total count.
func (s *RelationService) loadAuthor(ctx context.Context, user model.User, viewerID int64, recipesLimit int) (*model.Author, error) {
	opts := repository.ListOptions{}
	if recipesLimit > 0 {
		opts.Limit = recipesLimit
	}
	if recipesLimit == 0 {
		// Still run the query for the count.
		opts.Limit = 1
	}

	recipes, count, err := s.recipes.ListRecipes(ctx, repository.RecipeFilter{AuthorID: user.ID}, viewerID, opts)
	if err != nil {
		return nil, fmt.Errorf("service/relation: loading recipes of author %d: %w", user.ID, err)
	}
	if recipesLimit == 0 {
		recipes = recipes[:0]
	}

	return &model.Author{User: user, Recipes: recipes, RecipesCount: count}, nil
}
