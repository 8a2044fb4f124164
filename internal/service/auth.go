package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/auth"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

// maxGitHubUsernameAttempts bounds the retries when a GitHub login is
// already taken by a local account.
const maxGitHubUsernameAttempts = 3

// AuthService logs users in and issues access tokens.
//
//	AuthHandler → AuthService → UserRepository
//	                         ↘ TokenService, PasswordService
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the signed token so the handler can set
// the cookie and write the response in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// errBadCredentials is deliberately identical for unknown email and wrong
// password.
func errBadCredentials() error {
	return apperror.ValidationFailed("", "unable to log in with provided credentials")
}

// Login checks an email/password pair and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errBadCredentials()
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("login for unknown email", slog.String("email", email))
			return nil, errBadCredentials()
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("login with wrong password", slog.Int64("userID", user.ID))
			return nil, errBadCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user, "password")
}

// LoginGitHub links or creates the account for a GitHub profile and issues
// a token.
//
// First login creates a user keyed by github_id; later logins return the
// stored row untouched. When the GitHub login is already used as a local
// username, a short random suffix is appended. GitHub users without a public
// email get the GitHub noreply address so the email column stays unique.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	first, last, _ := strings.Cut(strings.TrimSpace(gh.Name), " ")
	email := normalizeEmail(gh.Email)
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, strings.ToLower(gh.Login))
	}

	base := sanitizeUsername(gh.Login)
	user := &model.User{
		GitHubID:  gh.ID,
		Email:     email,
		Username:  base,
		FirstName: truncate(first, MaxNameLength),
		LastName:  truncate(strings.TrimSpace(last), MaxNameLength),
	}

	var err error
	for attempt := 0; attempt < maxGitHubUsernameAttempts; attempt++ {
		err = s.users.UpsertGitHubUser(ctx, user)
		if !isFieldError(err, "username") {
			break
		}
		id := xid.New().String()
		user.Username = truncate(base, MaxUsernameLength-7) + "-" + id[len(id)-6:]
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", gh.ID, err)
	}

	return s.issue(user, "github")
}

func (s *AuthService) issue(user *model.User, method string) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.Int64("userID", user.ID),
		slog.String("method", method),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// ValidateToken returns the user id encoded in tokenStr.
func (s *AuthService) ValidateToken(tokenStr string) (int64, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return 0, apperror.Unauthorized(err.Error())
	}
	return userID, nil
}

var usernameUnsafe = regexp.MustCompile(`[^\w.@+-]`)

func sanitizeUsername(login string) string {
	name := usernameUnsafe.ReplaceAllString(login, "")
	if name == "" || strings.EqualFold(name, ForbiddenUsername) {
		name = "github-" + name
	}
	return truncate(name, MaxUsernameLength)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// isFieldError reports whether err is a validation error on field.
func isFieldError(err error, field string) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && errors.Is(appErr.Err, apperror.ErrValidation) && appErr.Field == field
}
