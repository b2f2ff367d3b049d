package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/catalog"
	"github.com/sakif/albumrank/internal/model"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// defaultTokenLifetime is used when the token endpoint omits expires_in.
	defaultTokenLifetime = time.Hour
)

// SpotifyConfig holds everything SpotifyProvider needs. AuthURL and
// TokenURL default to Spotify's accounts service. TokenTimeout bounds every
// token endpoint call and defaults to catalog.DefaultTimeout.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	TokenTimeout time.Duration
	Catalog      catalog.Options
	Now          func() time.Time
}

// SpotifyProvider wraps golang.org/x/oauth2 for Spotify's Authorization
// Code flow and binds catalog clients to the resulting tokens.
//
// It holds no per-user state. Every method takes the TokenSet it operates
// on and returns a new one, so two users can never observe each other's
// credentials through the provider.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. AuthURL sends the browser to Spotify's consent screen with our
//     client ID, scopes and a CSRF state value.
//  2. Spotify redirects back to RedirectURL with a short-lived "code".
//  3. Exchange trades the code for access + refresh tokens (server-to-server).
//  4. EnsureValid refreshes the access token just before it expires.
//  5. Bind wraps a valid access token into a catalog client.
type SpotifyProvider struct {
	config       *oauth2.Config
	tokenTimeout time.Duration
	catalog      catalog.Options
	now          func() time.Time
}

// NewSpotifyProvider creates a SpotifyProvider from cfg.
func NewSpotifyProvider(cfg SpotifyConfig) *SpotifyProvider {
	if cfg.AuthURL == "" {
		cfg.AuthURL = spotifyAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyTokenURL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTimeout <= 0 {
		cfg.TokenTimeout = catalog.DefaultTimeout
	}

	return &SpotifyProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Spotify accepts HTTP Basic client auth. Pinning it avoids
				// the library's auto-detect retry, which would otherwise
				// send a second token request after a failure.
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		tokenTimeout: cfg.TokenTimeout,
		catalog:      cfg.Catalog,
		now:          cfg.Now,
	}
}

// AuthURL returns the consent-screen URL for the given CSRF state.
// It is a pure function of the configured credentials and scopes.
func (p *SpotifyProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades a one-time authorization code for a TokenSet.
//
// Codes are single-use, so a failure here is never retried: the caller has
// to send the user back through AuthURL.
func (p *SpotifyProvider) Exchange(ctx context.Context, code string) (model.TokenSet, error) {
	if strings.TrimSpace(code) == "" {
		return model.TokenSet{}, apperror.AuthExchange(errors.New("auth: empty authorization code"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.tokenTimeout)
	defer cancel()

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return model.TokenSet{}, apperror.AuthExchange(fmt.Errorf("auth: exchanging code: %w", err))
	}
	if token.AccessToken == "" {
		return model.TokenSet{}, apperror.AuthExchange(errors.New("auth: token endpoint returned no access token"))
	}

	return p.tokenSet(token), nil
}

// EnsureValid returns ts unchanged while its access token has at least
// model.RefreshSkew left. Otherwise it performs exactly one refresh-token
// exchange and returns the new TokenSet with refreshed=true.
//
// A refresh the token endpoint rejects is terminal for the session (the
// refresh token was revoked or expired) and is reported as
// apperror.ErrAuthRefresh. A refresh that times out or fails in transport,
// or that Spotify answers with a server error, says nothing about the
// refresh token and is reported as apperror.ErrCatalogUnavailable so the
// session survives.
func (p *SpotifyProvider) EnsureValid(ctx context.Context, ts model.TokenSet) (model.TokenSet, bool, error) {
	if ts.Usable(p.now()) {
		return ts, false, nil
	}
	if ts.RefreshToken == "" {
		return ts, false, apperror.AuthRefresh(errors.New("auth: session has no refresh token"))
	}

	// A token with no access token is never Valid(), so the source goes
	// straight to the refresh grant.
	ctx, cancel := context.WithTimeout(ctx, p.tokenTimeout)
	defer cancel()

	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: ts.RefreshToken})
	token, err := src.Token()
	if err != nil {
		err = fmt.Errorf("auth: refreshing token: %w", err)
		if refreshRejected(err) {
			return ts, false, apperror.AuthRefresh(err)
		}
		return ts, false, apperror.CatalogUnavailable(err)
	}

	next := p.tokenSet(token)
	if next.RefreshToken == "" {
		next.RefreshToken = ts.RefreshToken
	}
	return next, true, nil
}

// Bind wraps a token set into a catalog capability. No network calls.
func (p *SpotifyProvider) Bind(ts model.TokenSet) catalog.Catalog {
	return catalog.New(ts.AccessToken, p.catalog)
}

// refreshRejected reports whether the token endpoint answered and refused
// the grant with a client error.
func refreshRejected(err error) bool {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) || rErr.Response == nil {
		return false
	}
	return rErr.Response.StatusCode >= 400 && rErr.Response.StatusCode < 500
}

func (p *SpotifyProvider) tokenSet(token *oauth2.Token) model.TokenSet {
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = p.now().Add(defaultTokenLifetime)
	}
	return model.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}
