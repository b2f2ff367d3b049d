package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/catalog"
)

// contextKey is unexported so no other package can read or shadow the
// principal stored in a request context.
type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of one request. Catalog is bound
// to this session's access token and must not outlive the request.
type Principal struct {
	SessionID string
	Username  string
	Catalog   catalog.Catalog
}

// SessionAuthorizer turns a session id into a Principal, refreshing the
// session's tokens when needed. service.SessionService implements it.
type SessionAuthorizer interface {
	Authorize(ctx context.Context, sessionID string) (*Principal, error)
}

// RequireSession enforces a valid session on protected routes.
//
// It reads the JWT from the session cookie, validates it, and asks the
// authorizer for a Principal. Missing or invalid cookies and unknown
// sessions yield 401. A failed token refresh also yields 401 and clears the
// cookie, since the session is gone for good.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(tokens *TokenService, authorizer SessionAuthorizer, cookies Cookies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w, "valid authentication required")
				return
			}

			sessionID, err := tokens.Validate(cookie.Value)
			if err != nil {
				cookies.ClearSession(w)
				writeUnauthorized(w, "valid authentication required")
				return
			}

			principal, err := authorizer.Authorize(r.Context(), sessionID)
			if err != nil {
				var appErr *apperror.AppError
				switch {
				case errors.Is(err, apperror.ErrAuthRefresh), errors.Is(err, apperror.ErrNotAuthenticated):
					cookies.ClearSession(w)
					msg := "valid authentication required"
					if errors.As(err, &appErr) {
						msg = appErr.Message
					}
					writeUnauthorized(w, msg)
				default:
					logger.Error("authorizing session",
						slog.String("sessionID", sessionID),
						slog.String("error", err.Error()),
					)
					msg := "An internal error occurred"
					if errors.As(err, &appErr) {
						msg = appErr.Message
					}
					writeAuthError(w, http.StatusInternalServerError, "internal_error", msg)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by RequireSession.
//
// Usage in handlers:
//
//	p, ok := auth.PrincipalFromContext(r.Context())
//	if !ok {
//	    // route is not behind RequireSession
//	}
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeAuthError(w, http.StatusUnauthorized, "unauthorized", message)
}

// writeAuthError mirrors the handler package's error body. It lives here
// because handler imports auth.
func writeAuthError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorType,
		"message": message,
	})
}
