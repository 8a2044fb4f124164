// Package repository declares the storage contracts the service layer depends
// on. The only implementation lives in repository/sqlite; services and their
// tests see nothing but these interfaces.
package repository

import (
	"context"

	"github.com/sakif/recipe-share/internal/model"
)

// ListOptions pages a listing. A Limit of zero or less means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	// UpsertGitHubUser links an account by GitHub ID, creating it on first login.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id, viewerID int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, viewerID int64, opts ListOptions) ([]model.User, int, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	// SetAvatar stores a new avatar key and returns the previous one ("" if none).
	SetAvatar(ctx context.Context, id int64, key string) (string, error)
}

type IngredientRepository interface {
	// ListIngredients returns ingredients whose name starts with prefix,
	// case-insensitively, ordered by name. An empty prefix lists everything.
	ListIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error)
	GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error)
	// EnsureIngredient is get-or-create on (name, unit). It fills in ing.ID.
	EnsureIngredient(ctx context.Context, ing *model.Ingredient) (bool, error)
}

type TagRepository interface {
	ListTags(ctx context.Context) ([]model.Tag, error)
	GetTag(ctx context.Context, id int64) (*model.Tag, error)
	// EnsureTag is get-or-create on slug. It fills in tag.ID.
	EnsureTag(ctx context.Context, tag *model.Tag) (bool, error)
}

// RecipeFilter narrows ListRecipes. Zero values disable a predicate.
// Tags match by slug with OR semantics.
type RecipeFilter struct {
	Tags        []string
	AuthorID    int64
	FavoritedBy int64
	InCartOf    int64
}

type RecipeRepository interface {
	// CreateRecipe writes the recipe row, its tag links and ingredient rows
	// in one transaction. Tags and Ingredients only need their IDs set.
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	// UpdateRecipe replaces the row and all of its links atomically.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	DeleteRecipe(ctx context.Context, id int64) error
	GetRecipe(ctx context.Context, id, viewerID int64) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter, viewerID int64, opts ListOptions) ([]model.Recipe, int, error)
}

// RelationRepository stores the user relationship graph. Inserts rely on
// primary-key and CHECK constraints rather than pre-checks.
type RelationRepository interface {
	// AddFavorite and AddToCart are idempotent: they report whether a new
	// edge was created.
	AddFavorite(ctx context.Context, userID, recipeID int64) (bool, error)
	RemoveFavorite(ctx context.Context, userID, recipeID int64) error
	AddToCart(ctx context.Context, userID, recipeID int64) (bool, error)
	RemoveFromCart(ctx context.Context, userID, recipeID int64) error

	Subscribe(ctx context.Context, userID, authorID int64) error
	Unsubscribe(ctx context.Context, userID, authorID int64) error
	ListSubscriptions(ctx context.Context, userID int64, opts ListOptions) ([]model.User, int, error)
}

type ShoppingRepository interface {
	CartRecipeIDs(ctx context.Context, userID int64) ([]int64, error)
	CartIngredients(ctx context.Context, recipeIDs []int64) ([]model.CartIngredient, error)
}

type ShortLinkRepository interface {
	// CreateShortLink stores token for recipeID unless the recipe already has
	// a link, and returns whichever link is now stored. A token already used
	// by another recipe is reported as apperror.ErrConflict.
	CreateShortLink(ctx context.Context, recipeID int64, token string) (*model.ShortLink, error)
	GetShortLinkByToken(ctx context.Context, token string) (*model.ShortLink, error)
	GetShortLinkByRecipe(ctx context.Context, recipeID int64) (*model.ShortLink, error)
}
