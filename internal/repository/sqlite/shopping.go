package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

var _ repository.ShoppingRepository = (*DB)(nil)

// CartRecipeIDs returns the recipes in userID's cart, in the order they
// were added.
func (db *DB) CartRecipeIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT recipe_id FROM shopping_cart WHERE user_id = ? ORDER BY rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading cart of user %d: %w", userID, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cart entry: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cart of user %d: %w", userID, err)
	}
	return ids, nil
}

// CartIngredients returns the raw ingredient rows of the given recipes.
// Aggregation happens in the service.
func (db *DB) CartIngredients(ctx context.Context, recipeIDs []int64) ([]model.CartIngredient, error) {
	items := []model.CartIngredient{}
	if len(recipeIDs) == 0 {
		return items, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT ri.recipe_id, i.name, i.measurement_unit, ri.amount
		 FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id IN (`+placeholders(len(recipeIDs))+`)`,
		int64Args(recipeIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading cart ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartIngredient
		if err := rows.Scan(&item.RecipeID, &item.Name, &item.MeasurementUnit, &item.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cart ingredient: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cart ingredients: %w", err)
	}
	return items, nil
}
