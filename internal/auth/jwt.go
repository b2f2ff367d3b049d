// Package auth owns the authenticated-session primitives.
//
// SESSION FLOW OVERVIEW:
//  1. User visits /auth/spotify/login → redirected to Spotify's consent screen
//  2. Spotify calls back /auth/spotify/callback with a one-time code
//  3. SpotifyProvider.Exchange trades the code for a TokenSet
//  4. The TokenSet is stored server-side in a session row (tokens sealed)
//  5. The browser only receives a signed JWT whose subject is the session ID
//  6. On every API call, RequireSession validates the JWT, loads the session,
//     refreshes the access token if it is about to expire, and binds a
//     catalog client for the rest of the request
//
// WHY A JWT AROUND A SESSION ID?
// The Spotify tokens never leave the server. The cookie only proves "this
// browser owns session X" and cannot be forged without the session secret.
// Deleting the session row revokes the cookie immediately, even though the
// JWT itself would still verify.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "albumrank"

// TokenService signs and validates session cookie JWTs.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of issued tokens; the cookie MaxAge matches it.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the session ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for sessionID valid for the configured TTL.
func (s *TokenService) Generate(sessionID string) (string, error) {
	return s.GenerateWithDuration(sessionID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the session ID.
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, an attacker could send a token signed with
// "none". jwt.WithValidMethods rejects anything but HS256.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
