package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

var _ repository.RelationRepository = (*DB)(nil)

// ===== FAVORITES & CART =====

func (db *DB) AddFavorite(ctx context.Context, userID, recipeID int64) (bool, error) {
	return db.addRecipeEdge(ctx, "favorites", userID, recipeID)
}

func (db *DB) RemoveFavorite(ctx context.Context, userID, recipeID int64) error {
	return db.removeRecipeEdge(ctx, "favorites", "favorite", userID, recipeID)
}

func (db *DB) AddToCart(ctx context.Context, userID, recipeID int64) (bool, error) {
	return db.addRecipeEdge(ctx, "shopping_cart", userID, recipeID)
}

func (db *DB) RemoveFromCart(ctx context.Context, userID, recipeID int64) error {
	return db.removeRecipeEdge(ctx, "shopping_cart", "shopping cart entry", userID, recipeID)
}

// addRecipeEdge inserts (user, recipe) into table. An existing edge is left
// untouched and reported as created=false. A missing recipe fails the
// foreign key and comes back as NotFound.
func (db *DB) addRecipeEdge(ctx context.Context, table string, userID, recipeID int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO `+table+` (user_id, recipe_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, recipe_id) DO NOTHING`,
		userID, recipeID, time.Now().UTC(),
	)
	if err != nil {
		if violation(err) == foreignKeyConstraint {
			return false, apperror.NotFound("recipe", strconv.FormatInt(recipeID, 10))
		}
		return false, fmt.Errorf("sqlite: inserting into %s (user=%d recipe=%d): %w", table, userID, recipeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	return n > 0, nil
}

// removeRecipeEdge deletes (user, recipe) from table. When nothing was
// deleted, a missing recipe is NotFound and a missing edge is EdgeNotFound.
func (db *DB) removeRecipeEdge(ctx context.Context, table, relation string, userID, recipeID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = ? AND recipe_id = ?`, userID, recipeID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting from %s (user=%d recipe=%d): %w", table, userID, recipeID, err)
	}
	return db.missingEdge(ctx, res, "recipes", "recipe", recipeID, apperror.EdgeNotFound(relation, recipeID))
}

// missingEdge turns a DELETE that matched no row into NotFound when the
// target row is gone, otherwise into edgeErr.
func (db *DB) missingEdge(ctx context.Context, res sql.Result, table, resource string, targetID int64, edgeErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, targetID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: checking %s %d: %w", resource, targetID, err)
	}
	if !exists {
		return apperror.NotFound(resource, strconv.FormatInt(targetID, 10))
	}
	return edgeErr
}

// ===== SUBSCRIPTIONS =====

// Subscribe is a plain INSERT: the primary key reports duplicates and the
// CHECK constraint reports self-subscription.
func (db *DB) Subscribe(ctx context.Context, userID, authorID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, author_id, created_at) VALUES (?, ?, ?)`,
		userID, authorID, time.Now().UTC(),
	)
	switch violation(err) {
	case noConstraint:
	case uniqueConstraint:
		return apperror.DuplicateEdge("subscription", authorID)
	case checkConstraint:
		return apperror.SelfReference("you cannot subscribe to yourself")
	case foreignKeyConstraint:
		return apperror.NotFound("user", strconv.FormatInt(authorID, 10))
	}
	if err != nil {
		return fmt.Errorf("sqlite: subscribing user %d to %d: %w", userID, authorID, err)
	}
	return nil
}

func (db *DB) Unsubscribe(ctx context.Context, userID, authorID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = ? AND author_id = ?`, userID, authorID)
	if err != nil {
		return fmt.Errorf("sqlite: unsubscribing user %d from %d: %w", userID, authorID, err)
	}
	return db.missingEdge(ctx, res, "users", "user", authorID, apperror.EdgeNotFound("subscription", authorID))
}

// ListSubscriptions returns the authors userID follows, oldest subscription
// first, with IsSubscribed always true.
func (db *DB) ListSubscriptions(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting subscriptions of user %d: %w", userID, err)
	}

	query := `SELECT ` + userColumns + `
		FROM subscriptions sub JOIN users u ON u.id = sub.author_id
		WHERE sub.user_id = ?
		ORDER BY sub.rowid`
	args := []any{userID, userID}
	query, args = withPaging(query, args, opts)

	authors, err := db.queryUsers(ctx, db.conn, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing subscriptions of user %d: %w", userID, err)
	}
	return authors, total, nil
}
