package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() finds the sentinel the HTTP layer maps
// to a status code, including through extra fmt.Errorf wrapping.
func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "ProfileNotFound wraps ErrNotFound",
			err:       ProfileNotFound("alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "UpdateNotFound wraps ErrUpdateNotFound",
			err:       UpdateNotFound("alice", "A1"),
			target:    ErrUpdateNotFound,
			wantMatch: true,
		},
		{
			name:      "UpdateNotFound also wraps ErrNotFound",
			err:       UpdateNotFound("alice", "A1"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "UpdateFailed wraps ErrUpdateFailed",
			err:       UpdateFailed("alice", "A1"),
			target:    ErrUpdateFailed,
			wantMatch: true,
		},
		{
			name:      "UpdateFailed is not an UpdateNotFound",
			err:       UpdateFailed("alice", "A1"),
			target:    ErrUpdateNotFound,
			wantMatch: false,
		},
		{
			name:      "AuthRefresh wraps ErrAuthRefresh",
			err:       AuthRefresh(cause),
			target:    ErrAuthRefresh,
			wantMatch: true,
		},
		{
			name:      "AuthRefresh exposes its cause",
			err:       AuthRefresh(cause),
			target:    cause,
			wantMatch: true,
		},
		{
			name:      "CatalogUnavailable survives extra wrapping",
			err:       fmt.Errorf("service/profile: enriching: %w", CatalogUnavailable(cause)),
			target:    ErrCatalogUnavailable,
			wantMatch: true,
		},
		{
			name:      "CatalogUnavailable is not NotFound",
			err:       CatalogUnavailable(cause),
			target:    ErrNotFound,
			wantMatch: false,
		},
		{
			name:      "InvalidEdge does NOT match ErrValidation",
			err:       InvalidEdge("cannot follow yourself"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Database wraps ErrDatabase",
			err:       Database("loading profile", cause),
			target:    ErrDatabase,
			wantMatch: true,
		},
		{
			name:      "NotAuthenticated wraps ErrNotAuthenticated",
			err:       NotAuthenticated("no session"),
			target:    ErrNotAuthenticated,
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("post", "A1"),
			wantMessage: "post not found with id A1",
		},
		{
			name:        "ProfileNotFound names the profile",
			err:         ProfileNotFound("alice"),
			wantMessage: "profile not found with id alice",
		},
		{
			name:        "Database appends the cause",
			err:         Database("loading profile", errors.New("timeout")),
			wantMessage: "database error while loading profile: timeout",
		},
		{
			name:        "InvalidEdge uses custom message",
			err:         InvalidEdge("cannot follow yourself"),
			wantMessage: "cannot follow yourself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAsExtractsAppError(t *testing.T) {
	err := fmt.Errorf("handler: %w", UpdateNotFound("alice", "A1"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() did not find *AppError in chain")
	}
	if appErr.Message != "album A1 not found for user alice" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("limit", "limit must be positive")

	if err.Field != "limit" {
		t.Errorf("Field = %q, want %q", err.Field, "limit")
	}
}
