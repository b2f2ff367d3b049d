// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes SQLite and MongoDB
//
// Services take repository interfaces, never concrete stores, so tests run
// against in-memory fakes. They return apperror values and the handler
// layer maps those to status codes.
//
// Nothing here keeps per-user state between calls. The catalog capability
// a request uses is bound from that request's own session and passed in
// explicitly.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/model"
	"github.com/sakif/albumrank/internal/repository"
)

// TokenProvider is the OAuth side of the session manager.
// *auth.SpotifyProvider implements it.
type TokenProvider interface {
	Exchange(ctx context.Context, code string) (model.TokenSet, error)
	EnsureValid(ctx context.Context, ts model.TokenSet) (model.TokenSet, bool, error)
	Bind(ts model.TokenSet) catalog.Catalog
}

// SessionService owns the session lifecycle:
//
//	Unauthenticated → Authorized(valid) ↔ Authorized(expiring) → Revoked
//
// Validity is checked lazily in Authorize, on the request that needs it.
type SessionService struct {
	sessions repository.SessionRepository
	profiles repository.ProfileRepository
	provider TokenProvider
	tokens   *auth.TokenService
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(
	sessions repository.SessionRepository,
	profiles repository.ProfileRepository,
	provider TokenProvider,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		profiles: profiles,
		provider: provider,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

var _ auth.SessionAuthorizer = (*SessionService)(nil)

// LoginResult carries what the callback handler needs to set the cookie.
type LoginResult struct {
	SessionID string
	Token     string
}

// Login exchanges an authorization code and opens a new session.
// The username stays empty until the first authorized request.
func (s *SessionService) Login(ctx context.Context, code string) (*LoginResult, error) {
	tokens, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/session: %w", err)
	}

	sess := &model.Session{Tokens: tokens}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("service/session: creating session: %w", err)
	}

	jwt, err := s.tokens.Generate(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("service/session: signing cookie for %s: %w", sess.ID, err)
	}

	s.logger.Info("session opened", slog.String("sessionID", sess.ID))
	return &LoginResult{SessionID: sess.ID, Token: jwt}, nil
}

// Authorize loads a session, refreshes its tokens if they are inside the
// refresh skew, and binds a catalog capability for this request.
//
// A failed refresh deletes the session: the refresh token is dead and the
// user has to go through the consent screen again.
func (s *SessionService) Authorize(ctx context.Context, sessionID string) (*auth.Principal, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotAuthenticated("session not found, please sign in")
		}
		return nil, fmt.Errorf("service/session: loading %s: %w", sessionID, err)
	}

	tokens, refreshed, err := s.provider.EnsureValid(ctx, sess.Tokens)
	if err != nil {
		if errors.Is(err, apperror.ErrAuthRefresh) {
			s.logger.Warn("token refresh failed, revoking session",
				slog.String("sessionID", sessionID),
				slog.String("error", err.Error()),
			)
			if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
				s.logger.Error("deleting revoked session",
					slog.String("sessionID", sessionID),
					slog.String("error", delErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("service/session: %w", err)
	}

	if refreshed {
		if err := s.sessions.UpdateTokens(ctx, sessionID, tokens); err != nil {
			return nil, fmt.Errorf("service/session: storing refreshed tokens: %w", err)
		}
		s.logger.Debug("access token refreshed", slog.String("sessionID", sessionID))
	}

	cat := s.provider.Bind(tokens)

	username := sess.Username
	if username == "" {
		if username, err = s.resolveUsername(ctx, sessionID, cat); err != nil {
			return nil, err
		}
	}

	return &auth.Principal{
		SessionID: sessionID,
		Username:  username,
		Catalog:   cat,
	}, nil
}

// resolveUsername asks the catalog who the token belongs to, records it on
// the session and makes sure the profile document exists.
func (s *SessionService) resolveUsername(ctx context.Context, sessionID string, cat catalog.Catalog) (string, error) {
	user, err := cat.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("service/session: resolving username: %w", err)
	}
	if user.ID == "" {
		return "", apperror.CatalogUnavailable(errors.New("service/session: catalog returned an empty user id"))
	}

	if err := s.sessions.SetUsername(ctx, sessionID, user.ID); err != nil {
		return "", fmt.Errorf("service/session: recording username: %w", err)
	}
	if err := s.profiles.EnsureProfile(ctx, user.ID); err != nil {
		return "", fmt.Errorf("service/session: creating profile for %s: %w", user.ID, err)
	}

	s.logger.Info("session linked to user",
		slog.String("sessionID", sessionID),
		slog.String("username", user.ID),
	)
	return user.ID, nil
}

// Logout deletes the session. Unknown ids are not an error.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("service/session: deleting %s: %w", sessionID, err)
	}
	s.logger.Info("session closed", slog.String("sessionID", sessionID))
	return nil
}

// PurgeExpired removes sessions idle for longer than the cookie lifetime.
// Their cookies can no longer verify, so the rows are unreachable.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.tokens.TTL())
	n, err := s.sessions.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("service/session: purging: %w", err)
	}
	return n, nil
}
