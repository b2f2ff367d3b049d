package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/service"
)

// ConsentURLBuilder builds the Spotify consent-screen URL.
type ConsentURLBuilder interface {
	AuthURL(state string) string
}

// SessionManager opens and closes sessions.
type SessionManager interface {
	Login(ctx context.Context, code string) (*service.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler manages the Spotify OAuth login flow and the session cookie.
//
//   - HandleLogin    → redirect the browser to Spotify's consent screen
//   - HandleCallback → exchange the code, open a session, set the cookie
//   - HandleLogout   → close the session and clear the cookie
//   - HandleMe       → who is signed in
type AuthHandler struct {
	consent     ConsentURLBuilder
	sessions    SessionManager
	tokens      *auth.TokenService
	cookies     auth.Cookies
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	consent ConsentURLBuilder,
	sessions SessionManager,
	tokens *auth.TokenService,
	cookies auth.Cookies,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	if frontendURL == "" {
		frontendURL = "/"
	}
	return &AuthHandler{
		consent:     consent,
		sessions:    sessions,
		tokens:      tokens,
		cookies:     cookies,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// HandleLogin redirects to Spotify's consent screen.
//
// HTTP: GET /auth/spotify/login
//
// A random state value goes into a short-lived cookie and into the URL;
// the callback only proceeds if both match.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	h.cookies.SetState(w, state)
	http.Redirect(w, r, h.consent.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/spotify/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code and open a session
//  3. Store the signed session id in an HttpOnly cookie
//  4. Redirect to the frontend
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(auth.StateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	h.cookies.ClearState(w)

	// user pressed "Cancel" on the consent screen
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	res, err := h.sessions.Login(r.Context(), code)
	if err != nil {
		h.logger.Warn("auth callback: login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.cookies.SetSession(w, res.Token, h.tokens.TTL())
	http.Redirect(w, r, h.frontendURL, http.StatusSeeOther)
}

// HandleLogout closes the session behind the cookie, if any, and clears it.
//
// HTTP: POST /auth/logout
//
// Logging out without a valid cookie still succeeds: the result the caller
// wants (no session) already holds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if sessionID, err := h.tokens.Validate(cookie.Value); err == nil {
			if err := h.sessions.Logout(r.Context(), sessionID); err != nil {
				writeError(w, err)
				return
			}
		}
	}
	h.cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "signed out"})
}

// MeResponse describes the signed-in user.
type MeResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// HandleMe returns the signed-in user's Spotify account.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated("valid authentication required"))
		return
	}

	user, err := p.Catalog.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Username:    p.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	})
}
