// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services and repositories return *AppError values that wrap one of the
// sentinel errors below. The HTTP layer maps sentinels to status codes with
// errors.Is, and reads Message/Field for the response body with errors.As.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("authentication required")

	// Relationship edges (favorites, cart, subscriptions).
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrSelfReference = errors.New("self reference")

	ErrEmptyCart = errors.New("empty cart")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation needs a logged-in user and the
// request is anonymous or carries an invalid token.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// DuplicateEdge reports an insert of a relationship that already exists,
// e.g. subscribing twice to the same author.
func DuplicateEdge(relation string, targetID int64) *AppError {
	return &AppError{
		Err:     ErrDuplicateEdge,
		Message: fmt.Sprintf("%s already exists for id %d", relation, targetID),
	}
}

// EdgeNotFound reports a delete of a relationship that does not exist.
func EdgeNotFound(relation string, targetID int64) *AppError {
	return &AppError{
		Err:     ErrEdgeNotFound,
		Message: fmt.Sprintf("%s does not exist for id %d", relation, targetID),
	}
}

func SelfReference(message string) *AppError {
	return &AppError{
		Err:     ErrSelfReference,
		Message: message,
	}
}

func EmptyCart() *AppError {
	return &AppError{
		Err:     ErrEmptyCart,
		Message: "There are no recipes in a shopping cart",
	}
}
