package auth

import (
	"net/http"
	"time"
)

// Cookie names. Both are HttpOnly and SameSite=Lax: the session cookie is
// sent on top-level navigations (needed for the OAuth redirect back) but
// not on cross-site POSTs.
const (
	SessionCookieName = "session"
	StateCookieName   = "oauth_state"

	stateCookieTTL = 10 * time.Minute
)

// Cookies writes and clears the cookies the session flow uses. Secure
// should be true whenever the server is reached over HTTPS.
type Cookies struct {
	Secure bool
}

// SetSession stores the signed session JWT.
func (c Cookies) SetSession(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession tells the browser to drop the session cookie.
func (c Cookies) ClearSession(w http.ResponseWriter) {
	c.clear(w, SessionCookieName)
}

// SetState stores the single-use OAuth CSRF state.
func (c Cookies) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearState drops the OAuth state cookie once the callback consumed it.
func (c Cookies) ClearState(w http.ResponseWriter) {
	c.clear(w, StateCookieName)
}

func (c Cookies) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
