package handler

// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "profile not found with id alice"}
//
// so the frontend can tell a 404 from a 500 without parsing messages.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/albumrank/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
	Field   string `json:"field,omitempty"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent; all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code and sends it.
//
// Dependency failures are checked before NotFound: a CatalogUnavailable
// whose cause was a catalog 404 is still a 500.
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

	status, errorType := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrCatalogUnavailable):
		return http.StatusInternalServerError, "catalog_unavailable"
	case errors.Is(err, apperror.ErrDatabase):
		return http.StatusInternalServerError, "database_error"
	case errors.Is(err, apperror.ErrNotAuthenticated),
		errors.Is(err, apperror.ErrAuthExchange),
		errors.Is(err, apperror.ErrAuthRefresh):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrInvalidEdge):
		return http.StatusBadRequest, "invalid_edge"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// queryInt parses an optional integer query parameter. Missing means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter. Missing means false.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.ValidationFailed(name, name+" must be a boolean")
	}
	return v, nil
}
