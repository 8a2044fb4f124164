package model

import "time"

// Recipe is the aggregate root for a recipe: the row itself plus its tag links
// and per-ingredient amounts. Image is a storage key.
//
// IsFavorited and IsInShoppingCart are relative to the requesting user and are
// false for anonymous reads.
type Recipe struct {
	ID          int64
	AuthorID    int64
	Author      User
	Name        string
	Image       string
	Text        string
	CookingTime int
	CreatedAt   time.Time

	Tags        []Tag
	Ingredients []RecipeIngredient

	IsFavorited      bool
	IsInShoppingCart bool
}

// RecipeIngredient is one (ingredient, amount) row of a recipe. Name and
// MeasurementUnit are denormalised from the catalog on read.
type RecipeIngredient struct {
	IngredientID    int64
	Name            string
	MeasurementUnit string
	Amount          int
}

// TagIDs returns the IDs of r.Tags in order.
func (r *Recipe) TagIDs() []int64 {
	ids := make([]int64, len(r.Tags))
	for i, t := range r.Tags {
		ids[i] = t.ID
	}
	return ids
}
