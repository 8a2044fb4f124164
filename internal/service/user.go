package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/auth"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
	"github.com/sakif/recipe-share/internal/storage"
)

// Account field bounds.
const (
	MaxEmailLength    = 254
	MaxUsernameLength = 150
	MaxNameLength     = 150

	// ForbiddenUsername would shadow the /api/users/me/ route.
	ForbiddenUsername = "me"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// RegisterInput is the body of POST /api/users/.
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// UserService manages accounts, passwords and avatars.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	images    storage.Store
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	images storage.Store,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		images:    images,
		logger:    logger,
	}
}

// Register validates the input, hashes the password and creates the user.
// Duplicate email or username surface as validation errors from the
// repository's UNIQUE constraints.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	user := &model.User{
		Email:     normalizeEmail(in.Email),
		Username:  strings.TrimSpace(in.Username),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	if err := validateAccount(user); err != nil {
		return nil, err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

func validateAccount(u *model.User) error {
	switch {
	case u.Email == "":
		return apperror.ValidationFailed("email", "email is required")
	case utf8.RuneCountInString(u.Email) > MaxEmailLength:
		return lengthError("email", MaxEmailLength)
	}
	if addr, err := mail.ParseAddress(u.Email); err != nil || addr.Address != u.Email {
		return apperror.ValidationFailed("email", "enter a valid email address")
	}

	switch {
	case u.Username == "":
		return apperror.ValidationFailed("username", "username is required")
	case utf8.RuneCountInString(u.Username) > MaxUsernameLength:
		return lengthError("username", MaxUsernameLength)
	case !usernamePattern.MatchString(u.Username):
		return apperror.ValidationFailed("username",
			"username may contain only letters, digits and @/./+/-/_")
	case strings.EqualFold(u.Username, ForbiddenUsername):
		return apperror.ValidationFailed("username", fmt.Sprintf("username %q is not allowed", u.Username))
	}

	switch {
	case u.FirstName == "":
		return apperror.ValidationFailed("first_name", "first name is required")
	case utf8.RuneCountInString(u.FirstName) > MaxNameLength:
		return lengthError("first_name", MaxNameLength)
	case u.LastName == "":
		return apperror.ValidationFailed("last_name", "last name is required")
	case utf8.RuneCountInString(u.LastName) > MaxNameLength:
		return lengthError("last_name", MaxNameLength)
	}
	return nil
}

func validatePassword(field, password string) error {
	switch {
	case password == "":
		return apperror.ValidationFailed(field, "password is required")
	case len(password) > 72:
		return apperror.ValidationFailed(field, "password must be 72 bytes or fewer")
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, id, viewerID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %d: %w", id, err)
	}
	return user, nil
}

// Me returns the requesting user. Anonymous requests get Unauthorized.
func (s *UserService) Me(ctx context.Context, viewerID int64) (*model.User, error) {
	if err := requireViewer(viewerID); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewerID, viewerID)
}

func (s *UserService) List(ctx context.Context, viewerID int64, opts repository.ListOptions) ([]model.User, int, error) {
	users, total, err := s.users.ListUsers(ctx, viewerID, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, total, nil
}

// SetPassword replaces the password after checking the current one.
func (s *UserService) SetPassword(ctx context.Context, userID int64, current, next string) error {
	if err := requireViewer(userID); err != nil {
		return err
	}
	if err := validatePassword("new_password", next); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("service/user: fetching user %d: %w", userID, err)
	}
	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.ValidationFailed("current_password", "current password is incorrect")
		}
		return fmt.Errorf("service/user: verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/user: hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/user: updating password: %w", err)
	}

	s.logger.Info("password changed", slog.Int64("userID", userID))
	return nil
}

// SetAvatar stores a data-URI image as the user's avatar and returns the new
// storage key. The previous avatar object is removed after the row is updated.
func (s *UserService) SetAvatar(ctx context.Context, userID int64, dataURI string) (string, error) {
	if err := requireViewer(userID); err != nil {
		return "", err
	}

	img, err := storage.DecodeDataURI("avatar", dataURI)
	if err != nil {
		return "", err
	}

	key := storage.NewKey(storage.UserAvatars, img.Ext)
	if err := s.images.Save(ctx, key, img); err != nil {
		return "", fmt.Errorf("service/user: saving avatar: %w", err)
	}

	previous, err := s.users.SetAvatar(ctx, userID, key)
	if err != nil {
		discardImage(ctx, s.images, s.logger, key)
		return "", fmt.Errorf("service/user: setting avatar: %w", err)
	}
	if previous != "" {
		discardImage(ctx, s.images, s.logger, previous)
	}

	s.logger.Info("avatar updated", slog.Int64("userID", userID), slog.String("key", key))
	return key, nil
}

// DeleteAvatar clears the avatar. A user without one gets NotFound.
func (s *UserService) DeleteAvatar(ctx context.Context, userID int64) error {
	if err := requireViewer(userID); err != nil {
		return err
	}

	previous, err := s.users.SetAvatar(ctx, userID, "")
	if err != nil {
		return fmt.Errorf("service/user: clearing avatar: %w", err)
	}
	if previous == "" {
		return apperror.NotFound("avatar", idString(userID))
	}

	discardImage(ctx, s.images, s.logger, previous)
	return nil
}

// ImageURL exposes the storage URL for handlers rendering users.
func (s *UserService) ImageURL(key string) string {
	return s.images.URL(key)
}

// discardImage deletes an orphaned object. Failure only leaks a file, so it
// is logged and not returned.
func discardImage(ctx context.Context, images storage.Store, logger *slog.Logger, key string) {
	if err := images.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
