package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-token-gate/internal/config"
	"go-token-gate/internal/event"
	"go-token-gate/internal/handler"
	"go-token-gate/internal/metrics"
	"go-token-gate/internal/middleware"
	"go-token-gate/internal/model"
	"go-token-gate/internal/repository"
	"go-token-gate/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testApp struct {
	handler http.Handler
	tokens  *service.TokenService
	clock   *testClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"http://localhost:3001"},
		RateLimitRPM:     0,
		AuthRateLimitRPM: 1000,
	}

	identities, err := repository.LoadIdentities("", bcrypt.MinCost)
	require.NoError(t, err)
	identityRepo, err := repository.NewIdentityRepository(identities)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	bus := event.NewBus(16)
	m := metrics.New()

	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:     "secretkey",
		RefreshSecret:    "refreshsecretkey",
		AccessTTL:        30 * time.Second,
		RefreshTTL:       7 * 24 * time.Hour,
		Rotation:         service.RotationAlways,
		RevokeOnMismatch: true,
		Now:              clock.Now,
	}, identityRepo, repository.NewSessionRepository(), bus, m)
	require.NoError(t, err)

	auth, err := service.NewAuthService(identityRepo, tokens, bcrypt.MinCost)
	require.NoError(t, err)
	posts := service.NewPostService(repository.NewPostRepository(), bus)

	h := New(cfg, middleware.NewAuthMiddleware(tokens), Handlers{
		Auth:  handler.NewAuthHandler(auth, tokens, false),
		Posts: handler.NewPostHandler(posts),
	}, m)

	return &testApp{handler: h, tokens: tokens, clock: clock}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
}

func (a *testApp) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var body envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (a *testApp) signIn(t *testing.T, username string, password string) (string, *http.Cookie) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/signin", nil)
	req.SetBasicAuth(username, password)
	rec, body := a.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var data model.SignInResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Equal(t, username, data.User.Username)
	require.NotEmpty(t, data.AccessToken)

	cookie := findCookie(rec.Result().Cookies(), "refreshToken")
	require.NotNil(t, cookie)

	return data.AccessToken, cookie
}

func bearerRequest(method string, target string, body string, token string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func cookieRequest(target string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return req
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodePosts(t *testing.T, body envelope) []string {
	t.Helper()

	var data model.PostsResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	return data.Posts
}

func TestEndToEndAdminFlow(t *testing.T) {
	app := newTestApp(t)

	t0, cookie := app.signIn(t, "admin", "admin123")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, 7*24*60*60, cookie.MaxAge)

	rec, body := app.do(t, bearerRequest(http.MethodPost, "/posts", `{"message":"hello"}`, t0))
	require.Equal(t, http.StatusCreated, rec.Code)
	var added model.AddPostResponse
	require.NoError(t, json.Unmarshal(body.Data, &added))
	require.Equal(t, "Post added successfully", added.Message)
	require.Equal(t, []string{"Early bird catches the worm", "hello"}, added.Posts)
	require.NotEmpty(t, rec.Header().Get(middleware.RotatedTokenHeader))

	app.clock.Advance(31 * time.Second)

	// An expired token is deliberately refused here instead of being served with a rotated
	// replacement: Authenticate runs before Rotate. Clients recover through /refresh, which
	// internal/client covers in TestExpiredAccessRecoveredByRefresh.
	rec, body = app.do(t, bearerRequest(http.MethodGet, "/posts", "", t0))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_EXPIRED", body.Error.Code)

	// Rotation itself ignores expiry under the default policy.
	t1, rotated, err := app.tokens.RotateAccess(t0)
	require.NoError(t, err)
	require.True(t, rotated)

	rec, body = app.do(t, bearerRequest(http.MethodGet, "/posts", "", t1))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"Early bird catches the worm", "hello"}, decodePosts(t, body))
	require.NotEmpty(t, rec.Header().Get(middleware.RotatedTokenHeader))

	rec, body = app.do(t, cookieRequest("/refresh", cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed model.RefreshResponse
	require.NoError(t, json.Unmarshal(body.Data, &refreshed))

	rec, _ = app.do(t, bearerRequest(http.MethodGet, "/posts", "", refreshed.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = app.do(t, cookieRequest("/logout", cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := findCookie(rec.Result().Cookies(), "refreshToken")
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)
	require.True(t, cleared.HttpOnly)

	rec, body = app.do(t, cookieRequest("/refresh", cookie))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "TOKEN_REVOKED", body.Error.Code)
}

func TestUserRoleCannotAddPosts(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.signIn(t, "user", "user123")

	rec, body := app.do(t, bearerRequest(http.MethodPost, "/posts", `{"message":"nope"}`, token))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "ROLE_DENIED", body.Error.Code)
	require.Equal(t, "Access denied. Admin role required.", body.Error.Message)

	rec, body = app.do(t, bearerRequest(http.MethodGet, "/posts", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"Early bird catches the worm"}, decodePosts(t, body))
}

func TestAddPostValidation(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.signIn(t, "admin", "admin123")

	for _, payload := range []string{`{"message":""}`, `{}`, `not json`} {
		rec, body := app.do(t, bearerRequest(http.MethodPost, "/posts", payload, token))
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
		require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	}

	rec, body := app.do(t, bearerRequest(http.MethodPost, "/posts", "", token))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	_, body = app.do(t, bearerRequest(http.MethodGet, "/posts", "", token))
	require.Equal(t, []string{"Early bird catches the worm"}, decodePosts(t, body))
}

func TestSignInFailures(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/signin", nil)
	req.SetBasicAuth("admin", "wrong")
	rec, body := app.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_CREDENTIALS", body.Error.Code)
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	require.Nil(t, findCookie(rec.Result().Cookies(), "refreshToken"))

	rec, _ = app.do(t, httptest.NewRequest(http.MethodPost, "/signin", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshFailures(t *testing.T) {
	app := newTestApp(t)

	rec, body := app.do(t, cookieRequest("/refresh", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_MISSING", body.Error.Code)

	rec, body = app.do(t, cookieRequest("/refresh", &http.Cookie{Name: "refreshToken", Value: "garbage"}))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "TOKEN_INVALID", body.Error.Code)

	_, first := app.signIn(t, "admin", "admin123")
	_, _ = app.signIn(t, "admin", "admin123")

	rec, body = app.do(t, cookieRequest("/refresh", first))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "TOKEN_REVOKED", body.Error.Code)
}

func TestLogoutWithoutCookieSucceeds(t *testing.T) {
	app := newTestApp(t)

	rec, body := app.do(t, cookieRequest("/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)

	rec, _ = app.do(t, cookieRequest("/logout", &http.Cookie{Name: "refreshToken", Value: "garbage"}))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	app := newTestApp(t)

	rec, body := app.do(t, httptest.NewRequest(http.MethodGet, "/posts", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_MISSING", body.Error.Code)

	rec, body = app.do(t, bearerRequest(http.MethodGet, "/posts", "", "forged"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_INVALID", body.Error.Code)
}

func TestCORSExposesRotationHeader(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	require.Equal(t, "http://localhost:3001", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	token, _ := app.signIn(t, "user", "user123")
	get := bearerRequest(http.MethodGet, "/posts", "", token)
	get.Header.Set("Origin", "http://localhost:3001")
	rec, _ = app.do(t, get)
	require.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), middleware.RotatedTokenHeader)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	_, _ = app.signIn(t, "admin", "admin123")

	rec, _ := app.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec, _ = app.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tokengate_sessions_issued_total 1")
	require.Contains(t, rec.Body.String(), `route="/signin"`)
}
