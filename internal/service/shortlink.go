package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/model"
	"github.com/sakif/recipe-share/internal/repository"
)

const (
	// TokenLength is the size of a short-link token.
	TokenLength = 8

	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// maxTokenAttempts bounds redraws after a token collision.
	maxTokenAttempts = 5

	resolveCacheSize = 1024
)

// ShortLinkService issues and resolves recipe short links.
//
//	token absent → Issue (draw, insert, read back) → Resolve → redirect
//
// Uniqueness lives in the database: UNIQUE(recipe_id) makes Issue idempotent
// and UNIQUE(token) turns a collision into ErrConflict, which triggers a
// fresh draw. Nothing is pre-checked.
type ShortLinkService struct {
	repo     repository.ShortLinkRepository
	cache    *lru.Cache // token → recipe id
	baseURL  string
	newToken func() (string, error)
	logger   *slog.Logger
}

func NewShortLinkService(repo repository.ShortLinkRepository, baseURL string, logger *slog.Logger) *ShortLinkService {
	cache, err := lru.New(resolveCacheSize)
	if err != nil {
		panic(err)
	}
	return &ShortLinkService{
		repo:     repo,
		cache:    cache,
		baseURL:  strings.TrimRight(baseURL, "/"),
		newToken: randomToken,
		logger:   logger,
	}
}

// randomToken draws TokenLength characters from tokenAlphabet with
// crypto/rand. Bytes at or above 248 (the largest multiple of 62 that fits
// in a byte) are discarded so every character is equally likely.
func randomToken() (string, error) {
	const limit = 256 - 256%len(tokenAlphabet)

	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength*2)
	for len(out) < TokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("service/shortlink: reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}

// Issue returns the recipe's short link, creating it on first request.
// Repeated calls return the same token. An unknown recipe is ErrNotFound.
func (s *ShortLinkService) Issue(ctx context.Context, recipeID int64) (*model.ShortLink, error) {
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, err
		}

		link, err := s.repo.CreateShortLink(ctx, recipeID, token)
		if err == nil {
			s.cache.Add(link.Token, link.RecipeID)
			if link.Token == token {
				s.logger.Info("short link issued",
					slog.Int64("recipeID", recipeID),
					slog.String("token", token),
				)
			}
			return link, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/shortlink: issuing for recipe %d: %w", recipeID, err)
		}

		s.logger.Warn("short link token collision",
			slog.Int64("recipeID", recipeID),
			slog.Int("attempt", attempt),
		)
	}

	return nil, apperror.Conflict("short link token", fmt.Sprintf("for recipe %d after %d attempts", recipeID, maxTokenAttempts))
}

// Resolve maps a token to its recipe id. Unknown tokens are ErrNotFound.
func (s *ShortLinkService) Resolve(ctx context.Context, token string) (int64, error) {
	if v, ok := s.cache.Get(token); ok {
		return v.(int64), nil
	}

	if len(token) != TokenLength {
		return 0, apperror.NotFound("short link", token)
	}

	link, err := s.repo.GetShortLinkByToken(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("service/shortlink: resolving %q: %w", token, err)
	}

	s.cache.Add(link.Token, link.RecipeID)
	return link.RecipeID, nil
}

// Evict drops cached tokens of a deleted recipe. The database row goes
// away with the recipe through ON DELETE CASCADE.
func (s *ShortLinkService) Evict(recipeID int64) {
	for _, k := range s.cache.Keys() {
		if v, ok := s.cache.Peek(k); ok && v.(int64) == recipeID {
			s.cache.Remove(k)
		}
	}
}

// URL is the public short URL of token.
func (s *ShortLinkService) URL(token string) string {
	return s.baseURL + "/r/" + token + "/"
}

// RecipeURL is the canonical frontend page a short link redirects to.
func (s *ShortLinkService) RecipeURL(recipeID int64) string {
	return fmt.Sprintf("%s/recipes/%d/", s.baseURL, recipeID)
}
