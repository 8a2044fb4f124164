package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// JSON shape for successes and one for failures:
//
//	{"error": "Validation Error", "message": "name is required", "field": "name"}
//
// Domain errors come from the service layer as *apperror.AppError; the
// mapping to HTTP status codes lives here and nowhere else.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-share/internal/apperror"
	"github.com/sakif/recipe-share/internal/auth"
)

// maxBodyBytes bounds JSON request bodies. Images arrive base64-encoded
// inside the body, so it is generous.
const maxBodyBytes = 10 << 20

// ErrorResponse is the error body of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// WriteError is writeError for middleware outside this package.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

// writeError maps a domain error to its HTTP status.
//
//	ErrValidation, ErrDuplicateEdge,
//	ErrEdgeNotFound, ErrSelfReference,
//	ErrEmptyCart                       → 400
//	ErrUnauthorized                    → 401
//	ErrForbidden                       → 403
//	ErrNotFound                        → 404
//	ErrConflict                        → 409
//	anything else                      → 500, details hidden
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrDuplicateEdge):
		status, errorType = http.StatusBadRequest, "already_exists"
	case errors.Is(err, apperror.ErrEdgeNotFound):
		status, errorType = http.StatusBadRequest, "does_not_exist"
	case errors.Is(err, apperror.ErrSelfReference):
		status, errorType = http.StatusBadRequest, "self_reference"
	case errors.Is(err, apperror.ErrEmptyCart):
		status, errorType = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, errorType = http.StatusConflict, "conflict"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a JSON body into dst. Malformed bodies become a
// validation error so they render like any other 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("", "request body must not be empty")
		}
		return apperror.ValidationFailed("", "invalid JSON body: "+err.Error())
	}
	return nil
}

// viewerID is the authenticated user id or 0 for anonymous requests.
func viewerID(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// pathID parses a positive integer path parameter. Anything else is a 404,
// the same answer an unknown id gets.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(name, strconv.Quote(raw))
	}
	return id, nil
}
