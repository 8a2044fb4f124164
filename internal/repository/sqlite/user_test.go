package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Email: "cook@example.com", Username: "cook"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "cook")

	err := db.CreateUser(context.Background(), &model.User{Email: "cook@example.com", Username: "other"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("CreateUser() error = %v, want ErrValidation", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Field != "email" {
		t.Errorf("Field = %q, want %q", appErr.Field, "email")
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "cook")

	err := db.CreateUser(context.Background(), &model.User{Email: "new@example.com", Username: "cook"})
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Field != "username" {
		t.Fatalf("CreateUser() error = %v, want username validation error", err)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), 999, 0)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByID_IsSubscribedIsViewerRelative(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "author")
	fan := createTestUser(t, db, "fan")

	if err := db.Subscribe(ctx, fan.ID, author.ID); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	got, err := db.GetUserByID(ctx, author.ID, fan.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if !got.IsSubscribed {
		t.Error("IsSubscribed = false for the subscriber")
	}

	anon, err := db.GetUserByID(ctx, author.ID, 0)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if anon.IsSubscribed {
		t.Error("IsSubscribed = true for an anonymous viewer")
	}
}

func TestListUsers_Paging(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"a", "b", "c"} {
		createTestUser(t, db, name)
	}

	users, total, err := db.ListUsers(context.Background(), 0, repository.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(users) != 1 || users[0].Username != "c" {
		t.Errorf("page = %+v, want only user c", users)
	}
}

// =========================================================================
// GITHUB / PROFILE TESTS
// =========================================================================

func TestUpsertGitHubUser_ReturnsSameAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{GitHubID: 42, Username: "octo", Email: "octo@example.com"}
	if err := db.UpsertGitHubUser(ctx, first); err != nil {
		t.Fatalf("UpsertGitHubUser() error = %v", err)
	}
	second := &model.User{GitHubID: 42, Username: "octo-renamed", Email: "other@example.com"}
	if err := db.UpsertGitHubUser(ctx, second); err != nil {
		t.Fatalf("second UpsertGitHubUser() error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("IDs differ: %d vs %d", first.ID, second.ID)
	}
	if second.Username != "octo" {
		t.Errorf("Username = %q, want stored %q", second.Username, "octo")
	}
}

func TestSetAvatar_ReturnsPrevious(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "cook")

	prev, err := db.SetAvatar(ctx, user.ID, "users/avatars/one.png")
	if err != nil || prev != "" {
		t.Fatalf("SetAvatar() = %q, %v; want empty previous", prev, err)
	}
	prev, err = db.SetAvatar(ctx, user.ID, "")
	if err != nil || prev != "users/avatars/one.png" {
		t.Fatalf("SetAvatar() = %q, %v; want previous key", prev, err)
	}
}

func TestUpdatePassword_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdatePassword(context.Background(), 7, "hash")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePassword() error = %v, want ErrNotFound", err)
	}
}
