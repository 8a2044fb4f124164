// Package service holds the business rules of the recipe API.
//
// LAYERS:
//
//	Handler (HTTP)     → parses requests, writes JSON
//	Service (business) → validates input, checks permissions, orchestrates
//	Repository (data)  → SQL, constraint translation
//
// Services take repository interfaces, never *sqlite.DB, so tests pass
// hand-written fakes and the CLI reuses the same rules as the HTTP API.
// The requesting user travels as an explicit viewerID argument (0 means
// anonymous); services never read it from a context.
//
// Errors are *apperror.AppError values, possibly wrapped with
// fmt.Errorf("...: %w"). The HTTP layer maps them to status codes.
package service

import (
	"fmt"
	"strconv"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/repository"
)

// Listing bounds shared by paginated endpoints.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page normalises a 1-based page number and size into repository options.
// Out-of-range values fall back to the first page and the default size.
func Page(page, size int) repository.ListOptions {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return repository.ListOptions{Limit: size, Offset: (page - 1) * size}
}

// requireViewer turns an anonymous viewer into an Unauthorized error.
func requireViewer(viewerID int64) error {
	if viewerID <= 0 {
		return apperror.Unauthorized("authentication credentials were not provided")
	}
	return nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// lengthError is the shared "at most n characters" validation message.
func lengthError(field string, max int) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or fewer", field, max))
}
