package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

// recipeColumns selects a recipe, the viewer's favorite/cart flags and the
// author. It binds the viewer ID three times: favorites, cart, subscription.
const recipeColumns = `
	r.id, r.author_id, r.name, r.image, r.text, r.cooking_time, r.created_at,
	EXISTS (SELECT 1 FROM favorites f WHERE f.user_id = ? AND f.recipe_id = r.id),
	EXISTS (SELECT 1 FROM shopping_cart c WHERE c.user_id = ? AND c.recipe_id = r.id),` +
	userColumns

const recipeFrom = ` FROM recipes r JOIN users u ON u.id = r.author_id`

func scanRecipe(row rowScanner, r *model.Recipe) error {
	var githubID sql.NullInt64
	dest := []any{
		&r.ID,
		&r.AuthorID,
		&r.Name,
		&r.Image,
		&r.Text,
		&r.CookingTime,
		&r.CreatedAt,
		&r.IsFavorited,
		&r.IsInShoppingCart,
	}
	dest = append(dest, userDest(&r.Author, &githubID)...)
	err := row.Scan(dest...)
	r.Author.GitHubID = githubID.Int64
	return err
}

// translateRecipeWrite maps constraint violations on the recipes row.
func translateRecipeWrite(err error) error {
	switch violation(err) {
	case uniqueConstraint:
		if strings.Contains(err.Error(), "recipes.name") {
			return apperror.ValidationFailed("name", "a recipe with this name already exists")
		}
	case checkConstraint:
		return apperror.ValidationFailed("cooking_time", "cooking time must be between 1 and 32000")
	case foreignKeyConstraint:
		return apperror.ValidationFailed("author", "author does not exist")
	}
	return nil
}

// CreateRecipe writes the recipe and all of its links in one transaction.
// Unknown tag or ingredient IDs fail the foreign key and roll everything back.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now().UTC()
	var id int64

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (author_id, name, image, text, cooking_time, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			recipe.AuthorID,
			recipe.Name,
			recipe.Image,
			recipe.Text,
			recipe.CookingTime,
			now,
		)
		if err != nil {
			if domainErr := translateRecipeWrite(err); domainErr != nil {
				return domainErr
			}
			return fmt.Errorf("sqlite: inserting recipe %q: %w", recipe.Name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sqlite: reading new recipe id: %w", err)
		}
		return writeRecipeLinks(ctx, tx, id, recipe)
	})
	if err != nil {
		return err
	}

	recipe.ID = id
	recipe.CreatedAt = now
	return nil
}

// UpdateRecipe replaces the row and its tag and ingredient sets.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE recipes SET name = ?, image = ?, text = ?, cooking_time = ? WHERE id = ?`,
			recipe.Name,
			recipe.Image,
			recipe.Text,
			recipe.CookingTime,
			recipe.ID,
		)
		if err != nil {
			if domainErr := translateRecipeWrite(err); domainErr != nil {
				return domainErr
			}
			return fmt.Errorf("sqlite: updating recipe %d: %w", recipe.ID, err)
		}
		if err := requireAffected(res, apperror.NotFound("recipe", strconv.FormatInt(recipe.ID, 10))); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_tags WHERE recipe_id = ?`, recipe.ID); err != nil {
			return fmt.Errorf("sqlite: clearing tags of recipe %d: %w", recipe.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipe.ID); err != nil {
			return fmt.Errorf("sqlite: clearing ingredients of recipe %d: %w", recipe.ID, err)
		}
		return writeRecipeLinks(ctx, tx, recipe.ID, recipe)
	})
}

func writeRecipeLinks(ctx context.Context, tx *sql.Tx, recipeID int64, recipe *model.Recipe) error {
	for _, tag := range recipe.Tags {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_tags (recipe_id, tag_id) VALUES (?, ?)`, recipeID, tag.ID)
		switch violation(err) {
		case noConstraint:
		case foreignKeyConstraint:
			return apperror.ValidationFailed("tags", fmt.Sprintf("tag %d does not exist", tag.ID))
		case uniqueConstraint:
			return apperror.ValidationFailed("tags", fmt.Sprintf("tag %d is listed twice", tag.ID))
		}
		if err != nil {
			return fmt.Errorf("sqlite: linking tag %d to recipe %d: %w", tag.ID, recipeID, err)
		}
	}

	for _, ing := range recipe.Ingredients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount) VALUES (?, ?, ?)`,
			recipeID, ing.IngredientID, ing.Amount)
		switch violation(err) {
		case noConstraint:
		case foreignKeyConstraint:
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("ingredient %d does not exist", ing.IngredientID))
		case uniqueConstraint:
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("ingredient %d is listed twice", ing.IngredientID))
		case checkConstraint:
			return apperror.ValidationFailed("amount", "amount must be between 1 and 32000")
		}
		if err != nil {
			return fmt.Errorf("sqlite: adding ingredient %d to recipe %d: %w", ing.IngredientID, recipeID, err)
		}
	}
	return nil
}

// DeleteRecipe removes the recipe. Links, edges and its short link go with it
// through ON DELETE CASCADE.
func (db *DB) DeleteRecipe(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
	}
	return requireAffected(res, apperror.NotFound("recipe", strconv.FormatInt(id, 10)))
}

func (db *DB) GetRecipe(ctx context.Context, id, viewerID int64) (*model.Recipe, error) {
	var r model.Recipe
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+recipeColumns+recipeFrom+` WHERE r.id = ?`,
		viewerID, viewerID, viewerID, id,
	)
	if err := scanRecipe(row, &r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recipe", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}

	recipes := []model.Recipe{r}
	if err := db.loadRecipeLinks(ctx, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// ListRecipes returns one page of recipes matching filter, newest first,
// and the total number of matches.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter, viewerID int64, opts repository.ListOptions) ([]model.Recipe, int, error) {
	where, whereArgs := recipeWhere(filter)

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes r`+where, whereArgs...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes: %w", err)
	}

	query := `SELECT ` + recipeColumns + recipeFrom + where + ` ORDER BY r.id DESC`
	args := append([]any{viewerID, viewerID, viewerID}, whereArgs...)
	query, args = withPaging(query, args, opts)

	recipes, err := db.queryRecipes(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := db.loadRecipeLinks(ctx, recipes); err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

// recipeWhere builds the WHERE clause for filter. Each predicate is an
// EXISTS or equality test so they compose with AND.
func recipeWhere(filter repository.RecipeFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if filter.AuthorID != 0 {
		clauses = append(clauses, `r.author_id = ?`)
		args = append(args, filter.AuthorID)
	}
	if len(filter.Tags) > 0 {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id
			WHERE rt.recipe_id = r.id AND t.slug IN (`+placeholders(len(filter.Tags))+`))`)
		for _, slug := range filter.Tags {
			args = append(args, slug)
		}
	}
	if filter.FavoritedBy != 0 {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM favorites fav WHERE fav.recipe_id = r.id AND fav.user_id = ?)`)
		args = append(args, filter.FavoritedBy)
	}
	if filter.InCartOf != 0 {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM shopping_cart sc WHERE sc.recipe_id = r.id AND sc.user_id = ?)`)
		args = append(args, filter.InCartOf)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(clauses, ` AND `), args
}

func (db *DB) queryRecipes(ctx context.Context, query string, args ...any) ([]model.Recipe, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	defer rows.Close()

	recipes := []model.Recipe{}
	for rows.Next() {
		var r model.Recipe
		if err := scanRecipe(rows, &r); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}
	return recipes, nil
}

// loadRecipeLinks fills Tags and Ingredients for every recipe with two
// batched queries. It runs after the recipe rows are closed, which matters
// for the single-connection in-memory database.
func (db *DB) loadRecipeLinks(ctx context.Context, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	index := make(map[int64]int, len(recipes))
	ids := make([]int64, len(recipes))
	for i := range recipes {
		index[recipes[i].ID] = i
		ids[i] = recipes[i].ID
		recipes[i].Tags = []model.Tag{}
		recipes[i].Ingredients = []model.RecipeIngredient{}
	}
	in := `(` + placeholders(len(ids)) + `)`

	tagRows, err := db.conn.QueryContext(ctx,
		`SELECT rt.recipe_id, t.id, t.name, t.slug
		 FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id
		 WHERE rt.recipe_id IN `+in+` ORDER BY t.id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading recipe tags: %w", err)
	}
	for tagRows.Next() {
		var (
			recipeID int64
			t        model.Tag
		)
		if err := tagRows.Scan(&recipeID, &t.ID, &t.Name, &t.Slug); err != nil {
			tagRows.Close()
			return fmt.Errorf("sqlite: scanning recipe tag: %w", err)
		}
		r := &recipes[index[recipeID]]
		r.Tags = append(r.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		tagRows.Close()
		return fmt.Errorf("sqlite: iterating recipe tags: %w", err)
	}
	tagRows.Close()

	ingRows, err := db.conn.QueryContext(ctx,
		`SELECT ri.recipe_id, i.id, i.name, i.measurement_unit, ri.amount
		 FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id IN `+in+` ORDER BY ri.id`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading recipe ingredients: %w", err)
	}
	defer ingRows.Close()
	for ingRows.Next() {
		var (
			recipeID int64
			ing      model.RecipeIngredient
		)
		if err := ingRows.Scan(&recipeID, &ing.IngredientID, &ing.Name, &ing.MeasurementUnit, &ing.Amount); err != nil {
			return fmt.Errorf("sqlite: scanning recipe ingredient: %w", err)
		}
		r := &recipes[index[recipeID]]
		r.Ingredients = append(r.Ingredients, ing)
	}
	if err := ingRows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating recipe ingredients: %w", err)
	}
	return nil
}
