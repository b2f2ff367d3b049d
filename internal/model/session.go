// Package model defines the sessions, profiles, posts and catalog views
// shared by every layer. Types carry json tags for the API and bson tags for
// the document store; none of them know how they are persisted.
package model

import "time"

// RefreshSkew is how long before expiry an access token stops being usable.
const RefreshSkew = 60 * time.Second

// TokenSet is the OAuth credential triple the session manager operates on.
type TokenSet struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Usable reports whether the access token can still be sent upstream at now.
// The boundary is inclusive: exactly RefreshSkew remaining is still usable.
func (t TokenSet) Usable(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.Sub(now) >= RefreshSkew
}

// Session is one browser session linked to a Spotify account.
//
// Username starts empty and is filled the first time the session is used
// to fetch the Spotify profile. Tokens are never serialized to JSON.
type Session struct {
	ID        string    `json:"id"        db:"id"`
	Tokens    TokenSet  `json:"tokens"`
	Username  string    `json:"username"  db:"username"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
