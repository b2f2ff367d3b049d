package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/auth"
	"github.com/sakif/albumrank/internal/handler"
	"github.com/sakif/albumrank/internal/service"
)

type MockConsent struct{}

func (MockConsent) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

type MockSessions struct {
	Codes     []string
	LoggedOut []string
	Token     string
	Err       error
}

func (m *MockSessions) Login(ctx context.Context, code string) (*service.LoginResult, error) {
	m.Codes = append(m.Codes, code)
	if m.Err != nil {
		return nil, m.Err
	}
	return &service.LoginResult{SessionID: "s1", Token: m.Token}, nil
}

func (m *MockSessions) Logout(ctx context.Context, sessionID string) error {
	m.LoggedOut = append(m.LoggedOut, sessionID)
	return m.Err
}

func newAuthHandler(t *testing.T, sessions *MockSessions) (*handler.AuthHandler, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	return handler.NewAuthHandler(MockConsent{}, sessions, tokens, auth.Cookies{}, "http://app.local/", testLogger()), tokens
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func callbackRequest(query, state string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/spotify/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: auth.StateCookieName, Value: state})
	}
	return req
}

func TestAuthHandler_Login(t *testing.T) {
	h, _ := newAuthHandler(t, &MockSessions{})

	rr := httptest.NewRecorder()
	h.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/spotify/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := findCookie(rr, auth.StateCookieName)
	require.NotNil(t, state)
	assert.NotEmpty(t, state.Value)
	assert.True(t, state.HttpOnly)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestAuthHandler_Callback(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sessions := &MockSessions{Token: "signed-jwt"}
		h, _ := newAuthHandler(t, sessions)

		rr := httptest.NewRecorder()
		h.HandleCallback(rr, callbackRequest("code=abc&state=xyz", "xyz"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "http://app.local/", rr.Header().Get("Location"))
		assert.Equal(t, []string{"abc"}, sessions.Codes)

		session := findCookie(rr, auth.SessionCookieName)
		require.NotNil(t, session)
		assert.Equal(t, "signed-jwt", session.Value)
		assert.Equal(t, int(time.Hour.Seconds()), session.MaxAge)

		state := findCookie(rr, auth.StateCookieName)
		require.NotNil(t, state)
		assert.Negative(t, state.MaxAge, "state cookie is single-use")
	})

	t.Run("state mismatch", func(t *testing.T) {
		sessions := &MockSessions{}
		h, _ := newAuthHandler(t, sessions)

		rr := httptest.NewRecorder()
		h.HandleCallback(rr, callbackRequest("code=abc&state=forged", "xyz"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, sessions.Codes)
	})

	t.Run("no state cookie", func(t *testing.T) {
		h, _ := newAuthHandler(t, &MockSessions{})
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, callbackRequest("code=abc&state=xyz", ""))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("user denied", func(t *testing.T) {
		sessions := &MockSessions{}
		h, _ := newAuthHandler(t, sessions)

		rr := httptest.NewRecorder()
		h.HandleCallback(rr, callbackRequest("error=access_denied&state=xyz", "xyz"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "http://app.local/?auth=denied", rr.Header().Get("Location"))
		assert.Empty(t, sessions.Codes)
	})

	t.Run("missing code", func(t *testing.T) {
		h, _ := newAuthHandler(t, &MockSessions{})
		rr := httptest.NewRecorder()
		h.HandleCallback(rr, callbackRequest("state=xyz", "xyz"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("exchange failed", func(t *testing.T) {
		h, _ := newAuthHandler(t, &MockSessions{Err: apperror.AuthExchange(errors.New("invalid_grant"))})

		rr := httptest.NewRecorder()
		h.HandleCallback(rr, callbackRequest("code=used&state=xyz", "xyz"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Nil(t, findCookie(rr, auth.SessionCookieName))
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("with a session", func(t *testing.T) {
		sessions := &MockSessions{}
		h, tokens := newAuthHandler(t, sessions)
		token, err := tokens.Generate("s42")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
		rr := httptest.NewRecorder()
		h.HandleLogout(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"s42"}, sessions.LoggedOut)
		cleared := findCookie(rr, auth.SessionCookieName)
		require.NotNil(t, cleared)
		assert.Negative(t, cleared.MaxAge)
	})

	t.Run("without a session", func(t *testing.T) {
		sessions := &MockSessions{}
		h, _ := newAuthHandler(t, sessions)

		rr := httptest.NewRecorder()
		h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, sessions.LoggedOut)
	})
}

func TestAuthHandler_Me(t *testing.T) {
	h, _ := newAuthHandler(t, &MockSessions{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{
		SessionID: "s1",
		Username:  "alice",
		Catalog:   &MockCatalog{},
	}))
	rr := httptest.NewRecorder()
	h.HandleMe(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	me := decode[handler.MeResponse](t, rr)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "Alice", me.DisplayName)
}

func TestAuthHandler_MeWithoutPrincipal(t *testing.T) {
	h, _ := newAuthHandler(t, &MockSessions{})

	rr := httptest.NewRecorder()
	h.HandleMe(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
