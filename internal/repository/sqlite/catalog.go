package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

var (
	_ repository.IngredientRepository = (*DB)(nil)
	_ repository.TagRepository        = (*DB)(nil)
)

// ===== INGREDIENTS =====

// ListIngredients filters by prefix in Go rather than with LIKE: SQLite's
// case folding only covers ASCII and ingredient names are often Cyrillic.
func (db *DB) ListIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, measurement_unit FROM ingredients ORDER BY name, measurement_unit`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ingredients: %w", err)
	}
	defer rows.Close()

	prefix = strings.ToLower(prefix)
	ingredients := []model.Ingredient{}
	for rows.Next() {
		var ing model.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.MeasurementUnit); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient: %w", err)
		}
		if prefix != "" && !strings.HasPrefix(strings.ToLower(ing.Name), prefix) {
			continue
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredients: %w", err)
	}
	return ingredients, nil
}

func (db *DB) GetIngredient(ctx context.Context, id int64) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, measurement_unit FROM ingredients WHERE id = ?`, id,
	).Scan(&ing.ID, &ing.Name, &ing.MeasurementUnit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ingredient", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting ingredient %d: %w", id, err)
	}
	return &ing, nil
}

// EnsureIngredient inserts (name, unit) unless the name exists and reports
// whether a row was created. Either way ing.ID is set. Names are unique, so
// a name already stored with another unit fails validation on the name
// field.
func (db *DB) EnsureIngredient(ctx context.Context, ing *model.Ingredient) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO ingredients (name, measurement_unit) VALUES (?, ?)
		 ON CONFLICT (name) DO NOTHING`,
		ing.Name, ing.MeasurementUnit,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting ingredient %q: %w", ing.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading affected rows: %w", err)
	}

	var unit string
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, measurement_unit FROM ingredients WHERE name = ?`, ing.Name,
	).Scan(&ing.ID, &unit)
	if err != nil {
		return false, fmt.Errorf("sqlite: reading ingredient %q: %w", ing.Name, err)
	}
	if unit != ing.MeasurementUnit {
		ing.ID = 0
		return false, apperror.ValidationFailed("name",
			fmt.Sprintf("ingredient %q already exists with measurement unit %q", ing.Name, unit))
	}
	return n > 0, nil
}

// ===== TAGS =====

func (db *DB) ListTags(ctx context.Context) ([]model.Tag, error) {
	return db.queryTags(ctx, db.conn, `SELECT id, name, slug FROM tags ORDER BY name`)
}

func (db *DB) GetTag(ctx context.Context, id int64) (*model.Tag, error) {
	var tag model.Tag
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, slug FROM tags WHERE id = ?`, id,
	).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tag", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting tag %d: %w", id, err)
	}
	return &tag, nil
}

// EnsureTag inserts the tag unless its slug exists. The stored name wins
// over tag.Name for an existing slug.
func (db *DB) EnsureTag(ctx context.Context, tag *model.Tag) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO tags (name, slug) VALUES (?, ?) ON CONFLICT (slug) DO NOTHING`,
		tag.Name, tag.Slug,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting tag %q: %w", tag.Slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading affected rows: %w", err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT id, name FROM tags WHERE slug = ?`, tag.Slug,
	).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return false, fmt.Errorf("sqlite: reading tag %q: %w", tag.Slug, err)
	}
	return n > 0, nil
}

func (db *DB) queryTags(ctx context.Context, q querier, query string, args ...any) ([]model.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying tags: %w", err)
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}
