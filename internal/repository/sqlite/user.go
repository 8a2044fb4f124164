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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// userColumns selects a user row plus whether the viewer (bound as the first
// argument) is subscribed to them. Viewer 0 is anonymous and never matches.
const userColumns = `
	u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash,
	u.github_id, u.avatar, u.created_at, u.updated_at,
	EXISTS (SELECT 1 FROM subscriptions s WHERE s.user_id = ? AND s.author_id = u.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

// userDest returns scan destinations matching userColumns.
func userDest(u *model.User, githubID *sql.NullInt64) []any {
	return []any{
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		githubID,
		&u.Avatar,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.IsSubscribed,
	}
}

func scanUser(row rowScanner, u *model.User) error {
	var githubID sql.NullInt64
	err := row.Scan(userDest(u, &githubID)...)
	u.GitHubID = githubID.Int64
	return err
}

func nullableGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// translateUserWrite maps UNIQUE violations on users to field-level
// validation errors.
func translateUserWrite(err error) error {
	switch {
	case violatesColumn(err, "users.email"):
		return apperror.ValidationFailed("email", "a user with this email already exists")
	case violatesColumn(err, "users.username"):
		return apperror.ValidationFailed("username", "a user with this username already exists")
	}
	return nil
}

// CreateUser inserts a new account and fills in ID and timestamps.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, username, first_name, last_name, password_hash,
		                    github_id, avatar, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		nullableGitHubID(user.GitHubID),
		user.Avatar,
		now,
		now,
	)
	if err != nil {
		if domainErr := translateUserWrite(err); domainErr != nil {
			return domainErr
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// UpsertGitHubUser creates the account on first GitHub login and returns the
// stored row on later logins. Profile fields of an existing account are left
// alone: the user may have edited them locally.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return apperror.ValidationFailed("github_id", "github id is required")
	}

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, username, first_name, last_name, github_id,
		                    avatar, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT (github_id) DO UPDATE SET updated_at = excluded.updated_at`,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.GitHubID,
		now,
		now,
	)
	if err != nil {
		if domainErr := translateUserWrite(err); domainErr != nil {
			return domainErr
		}
		return fmt.Errorf("sqlite: upserting user (githubID=%d): %w", user.GitHubID, err)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.github_id = ?`,
		0, user.GitHubID,
	)
	if err := scanUser(row, user); err != nil {
		return fmt.Errorf("sqlite: reading user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

// GetUserByID retrieves a user by ID with IsSubscribed relative to viewerID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id, viewerID int64) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = ?`,
		viewerID, id,
	)
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail is used by password login. Email comparison is exact.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.email = ?`,
		0, email,
	)
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// ListUsers pages through all users ordered by ID and returns the total count.
func (db *DB) ListUsers(ctx context.Context, viewerID int64, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users u ORDER BY u.id`
	args := []any{viewerID}
	query, args = withPaging(query, args, opts)

	users, err := db.queryUsers(ctx, db.conn, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	return users, total, nil
}

func (db *DB) queryUsers(ctx context.Context, q querier, query string, args ...any) ([]model.User, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %d: %w", id, err)
	}
	return requireAffected(res, apperror.NotFound("user", strconv.FormatInt(id, 10)))
}

// SetAvatar swaps the avatar key in one transaction so the caller can delete
// the previous object from storage.
func (db *DB) SetAvatar(ctx context.Context, id int64, key string) (string, error) {
	var previous string
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT avatar FROM users WHERE id = ?`, id).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("user", strconv.FormatInt(id, 10))
			}
			return fmt.Errorf("sqlite: reading avatar of user %d: %w", id, err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET avatar = ?, updated_at = ? WHERE id = ?`,
			key, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating avatar of user %d: %w", id, err)
		}
		return nil
	})
	return previous, err
}

// withPaging appends LIMIT/OFFSET when opts asks for a bounded page.
func withPaging(query string, args []any, opts repository.ListOptions) (string, []any) {
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}
	return query, args
}

// requireAffected returns notFound when an UPDATE or DELETE touched no rows.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
