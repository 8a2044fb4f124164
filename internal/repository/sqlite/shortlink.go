package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

var _ repository.ShortLinkRepository = (*DB)(nil)

// CreateShortLink is an atomic get-or-create keyed on recipe_id.
//
// ON CONFLICT (recipe_id) only absorbs the "recipe already has a link" case.
// A clash on the token column still raises, and is returned as a Conflict so
// the caller can draw a new token.
func (db *DB) CreateShortLink(ctx context.Context, recipeID int64, token string) (*model.ShortLink, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO short_links (recipe_id, token, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (recipe_id) DO NOTHING`,
		recipeID, token, time.Now().UTC(),
	)
	if err != nil {
		switch {
		case violatesColumn(err, "short_links.token"):
			return nil, apperror.Conflict("short link token", token)
		case violation(err) == foreignKeyConstraint:
			return nil, apperror.NotFound("recipe", strconv.FormatInt(recipeID, 10))
		}
		return nil, fmt.Errorf("sqlite: inserting short link for recipe %d: %w", recipeID, err)
	}

	return db.GetShortLinkByRecipe(ctx, recipeID)
}

func (db *DB) GetShortLinkByToken(ctx context.Context, token string) (*model.ShortLink, error) {
	return db.getShortLink(ctx, `token = ?`, token, token)
}

func (db *DB) GetShortLinkByRecipe(ctx context.Context, recipeID int64) (*model.ShortLink, error) {
	return db.getShortLink(ctx, `recipe_id = ?`, recipeID, strconv.FormatInt(recipeID, 10))
}

func (db *DB) getShortLink(ctx context.Context, cond string, arg any, label string) (*model.ShortLink, error) {
	var link model.ShortLink
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, recipe_id, token, created_at FROM short_links WHERE `+cond, arg,
	).Scan(&link.ID, &link.RecipeID, &link.Token, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("short link", label)
		}
		return nil, fmt.Errorf("sqlite: getting short link %s: %w", label, err)
	}
	return &link, nil
}
