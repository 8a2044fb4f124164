package handler

import (
	"github.com/sakif/recipe-share/internal/model"
)

// JSON VIEWS:
// Models never go on the wire directly. These structs fix the response
// shapes and turn stored image keys into URLs through an urlFunc.

// urlFunc turns a storage key into a public URL ("" stays "").
type urlFunc func(key string) string

type UserResponse struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	IsSubscribed bool    `json:"is_subscribed"`
	Avatar       *string `json:"avatar"`
}

func newUserResponse(u *model.User, url urlFunc) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: u.IsSubscribed,
		Avatar:       optionalURL(u.Avatar, url),
	}
}

func optionalURL(key string, url urlFunc) *string {
	if key == "" {
		return nil
	}
	s := url(key)
	return &s
}

type RecipeIngredientResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

type RecipeResponse struct {
	ID               int64                      `json:"id"`
	Tags             []model.Tag                `json:"tags"`
	Author           UserResponse               `json:"author"`
	Ingredients      []RecipeIngredientResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
	Name             string                     `json:"name"`
	Image            string                     `json:"image"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
}

func newRecipeResponse(r *model.Recipe, url urlFunc) RecipeResponse {
	tags := r.Tags
	if tags == nil {
		tags = []model.Tag{}
	}
	ingredients := make([]RecipeIngredientResponse, len(r.Ingredients))
	for i, ing := range r.Ingredients {
		ingredients[i] = RecipeIngredientResponse{
			ID:              ing.IngredientID,
			Name:            ing.Name,
			MeasurementUnit: ing.MeasurementUnit,
			Amount:          ing.Amount,
		}
	}
	return RecipeResponse{
		ID:               r.ID,
		Tags:             tags,
		Author:           newUserResponse(&r.Author, url),
		Ingredients:      ingredients,
		IsFavorited:      r.IsFavorited,
		IsInShoppingCart: r.IsInShoppingCart,
		Name:             r.Name,
		Image:            url(r.Image),
		Text:             r.Text,
		CookingTime:      r.CookingTime,
	}
}

func newRecipeList(recipes []model.Recipe, url urlFunc) []RecipeResponse {
	out := make([]RecipeResponse, len(recipes))
	for i := range recipes {
		out[i] = newRecipeResponse(&recipes[i], url)
	}
	return out
}

// ShortRecipeResponse is the compact recipe used by favorites, the cart and
// subscription listings.
type ShortRecipeResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

func newShortRecipe(r *model.Recipe, url urlFunc) ShortRecipeResponse {
	return ShortRecipeResponse{
		ID:          r.ID,
		Name:        r.Name,
		Image:       url(r.Image),
		CookingTime: r.CookingTime,
	}
}

type AuthorResponse struct {
	UserResponse
	Recipes      []ShortRecipeResponse `json:"recipes"`
	RecipesCount int                   `json:"recipes_count"`
}

func newAuthorResponse(a *model.Author, url urlFunc) AuthorResponse {
	recipes := make([]ShortRecipeResponse, len(a.Recipes))
	for i := range a.Recipes {
		recipes[i] = newShortRecipe(&a.Recipes[i], url)
	}
	return AuthorResponse{
		UserResponse: newUserResponse(&a.User, url),
		Recipes:      recipes,
		RecipesCount: a.RecipesCount,
	}
}
