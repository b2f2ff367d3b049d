// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values that wrap one of the sentinel errors below.
// Handlers never inspect messages; they map the sentinel to a status code with
// errors.Is, which walks the chain through AppError.Unwrap.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// Session lifecycle.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuthExchange     = errors.New("authorization code exchange failed")
	ErrAuthRefresh      = errors.New("token refresh failed")

	// Mutation engine.
	ErrUpdateNotFound = errors.New("update target not found")
	ErrUpdateFailed   = errors.New("update failed")
	ErrInvalidEdge    = errors.New("invalid social edge")

	// Dependencies.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrDatabase           = errors.New("database error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying driver or transport error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ProfileNotFound is returned when no profile document exists for a username.
func ProfileNotFound(username string) *AppError {
	return NotFound("profile", username)
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

// NotAuthenticated means a catalog capability was requested without a
// usable session.
func NotAuthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrNotAuthenticated,
		Message: message,
	}
}

// AuthExchange wraps a failed authorization-code exchange. Codes are
// single-use, so the caller must restart the consent flow.
func AuthExchange(cause error) *AppError {
	return &AppError{
		Err:     ErrAuthExchange,
		Message: "authorization code exchange failed",
		Cause:   cause,
	}
}

// AuthRefresh wraps a failed refresh-token exchange. It is terminal for the
// session.
func AuthRefresh(cause error) *AppError {
	return &AppError{
		Err:     ErrAuthRefresh,
		Message: "session expired, please sign in again",
		Cause:   cause,
	}
}

// UpdateNotFound reports that a mutation matched no (username, albumId) pair.
// It also matches ErrNotFound so transports can treat it as a 404.
func UpdateNotFound(username, albumID string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpdateNotFound, ErrNotFound),
		Message: fmt.Sprintf("album %s not found for user %s", albumID, username),
	}
}

// UpdateFailed reports that a mutation modified nothing, e.g. a second delete.
func UpdateFailed(username, albumID string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpdateFailed, ErrNotFound),
		Message: fmt.Sprintf("update unsuccessful for album %s of user %s", albumID, username),
	}
}

func InvalidEdge(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidEdge,
		Message: message,
	}
}

func CatalogUnavailable(cause error) *AppError {
	return &AppError{
		Err:     ErrCatalogUnavailable,
		Message: "music catalog unavailable",
		Cause:   cause,
	}
}

func Database(action string, cause error) *AppError {
	return &AppError{
		Err:     ErrDatabase,
		Message: "database error while " + action,
		Cause:   cause,
	}
}
