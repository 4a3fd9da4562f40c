package api_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nekonik/registry/internal/api"
	"github.com/nekonik/registry/internal/api/handler"
	mw "github.com/nekonik/registry/internal/api/middleware"
	"github.com/nekonik/registry/internal/apikey"
	"github.com/nekonik/registry/internal/auth"
	"github.com/nekonik/registry/internal/cache"
	"github.com/nekonik/registry/internal/metrics"
	"github.com/nekonik/registry/internal/store/storetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var alicePassword = base64.StdEncoding.EncodeToString([]byte("wonderland-42"))

type testEnv struct {
	router http.Handler
	mr     *miniredis.Miniredis
	store  *storetest.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	st := storetest.NewMemory()
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)

	sessions := auth.NewSessionStore(rc, []byte("0123456789abcdef0123456789abcdef"), 3*time.Hour)
	svc := auth.NewService(st, sessions, auth.NewHasher(bcrypt.MinCost), auth.WithMetrics(rec))
	keys := apikey.NewManager(st, apikey.WithCost(bcrypt.MinCost), apikey.WithMetrics(rec))
	cookies := handler.CookieConfig{Secure: true}

	router := api.NewRouter(api.Dependencies{
		Sessions:   mw.NewSessions(svc),
		APIKeyAuth: mw.NewAPIKeyAuth(keys),
		RateLimit:  mw.NewRateLimit(rc, 60),
		Metrics:    rec,

		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		MetricsHandler: metrics.Handler(reg),

		RegisterHandler:      handler.NewRegisterHandler(svc),
		LoginHandler:         handler.NewLoginHandler(svc, cookies),
		SessionHandler:       handler.NewSessionHandler(),
		LogoutHandler:        handler.NewLogoutHandler(svc, cookies),
		MeHandler:            handler.NewMeHandler(svc),
		UpdateProfileHandler: handler.NewUpdateProfileHandler(svc),
		DeleteAccountHandler: handler.NewDeleteAccountHandler(svc, cookies),

		CreateKeyHandler: handler.NewCreateKeyHandler(keys),
		ListKeysHandler:  handler.NewListKeysHandler(keys),
		EditKeyHandler:   handler.NewEditKeyHandler(keys),
		DeleteKeyHandler: handler.NewDeleteKeyHandler(keys),
		WhoAmIHandler:    handler.NewWhoAmIHandler(),
	})
	return &testEnv{router: router, mr: mr, store: st}
}

// client carries a session between requests the way a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
	csrf    string
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	if c.csrf != "" {
		req.Header.Set(mw.CSRFHeader, c.csrf)
	}

	rec := httptest.NewRecorder()
	c.env.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) login(t *testing.T, name, password string) *httptest.ResponseRecorder {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"user_name": name,
		"password":  password,
	})
	c.csrf = rec.Header().Get(mw.CSRFHeader)
	return rec
}

func register(t *testing.T, c *client, name string) {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"user_name": name,
		"email":     name + "@x.com",
		"password":  alicePassword,
		"full_name": "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

// --- router tests ---

func TestRouter_AliceScenario(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	register(t, c, "alice")

	rec := c.login(t, "alice", alicePassword)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, c.csrf)
	require.Contains(t, c.cookies, mw.SessionCookie)
	require.Contains(t, c.cookies, mw.SessionValidCookie)
	assert.True(t, c.cookies[mw.SessionCookie].HttpOnly)
	assert.False(t, c.cookies[mw.SessionValidCookie].HttpOnly)
	assert.NotEmpty(t, rec.Header().Get(mw.SessionExpiryHeader))

	rec = c.do(t, http.MethodGet, "/api/v1/users/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", data(t, rec)["user_name"])

	good := c.csrf
	c.csrf = "not-the-token"
	rec = c.do(t, http.MethodGet, "/api/v1/users/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	c.csrf = good

	sid := c.cookies[mw.SessionCookie].Value
	rec = c.do(t, http.MethodPost, "/api/v1/users/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, c.cookies, mw.SessionCookie)
	assert.NotContains(t, c.cookies, mw.SessionValidCookie)

	// Replay the old session id after logout.
	c.cookies[mw.SessionCookie] = &http.Cookie{Name: mw.SessionCookie, Value: sid}
	rec = c.do(t, http.MethodGet, "/api/v1/users/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errCode(t, rec))
}

func TestRouter_SessionExpires(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	register(t, c, "alice")
	require.Equal(t, http.StatusOK, c.login(t, "alice", alicePassword).Code)

	env.mr.FastForward(3*time.Hour + time.Second)

	rec := c.do(t, http.MethodGet, "/api/v1/users/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_SessionRoutesNeedCookieAndHeader(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	rec := c.do(t, http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)

	register(t, c, "alice")
	require.Equal(t, http.StatusOK, c.login(t, "alice", alicePassword).Code)
	c.csrf = ""

	rec = c.do(t, http.MethodGet, "/api/v1/users/me", nil)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestRouter_WrongPasswordMatchesUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	register(t, c, "alice")

	wrong := c.login(t, "alice", base64.StdEncoding.EncodeToString([]byte("not-the-password")))
	unknown := c.login(t, "bob", alicePassword)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Empty(t, c.cookies)
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	register(t, c, "alice")

	rec := c.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"user_name": "alice",
		"email":     "other@x.com",
		"password":  alicePassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_ProfileAndDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	register(t, c, "alice")
	require.Equal(t, http.StatusOK, c.login(t, "alice", alicePassword).Code)

	rec := c.do(t, http.MethodGet, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := data(t, rec)
	assert.Equal(t, "alice@x.com", me["email"])
	assert.NotContains(t, rec.Body.String(), "hashed_password")

	rec = c.do(t, http.MethodPut, "/api/v1/users/me/profile", map[string]any{
		"profile_data": map[string]any{"full_name": "Alice Liddell", "bio": "down the hole"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	profile := data(t, rec)["profile_data"].(map[string]any)
	assert.Equal(t, "Alice Liddell", profile["full_name"])

	rec = c.do(t, http.MethodDelete, "/api/v1/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, c.cookies)

	rec = c.login(t, "alice", alicePassword)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_APIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	register(t, c, "alice")
	require.Equal(t, http.StatusOK, c.login(t, "alice", alicePassword).Code)

	rec := c.do(t, http.MethodGet, "/api/v1/api-keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"page":1,"limit":20,"total":0,"has_next":false}}`, rec.Body.String())

	rec = c.do(t, http.MethodPost, "/api/v1/api-keys", map[string]string{"name": "ci", "description": "build bot"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := data(t, rec)
	secret := created["api_key"].(string)
	keyID := created["id"].(string)
	require.Len(t, secret, 46)

	rec = c.do(t, http.MethodGet, "/api/v1/api-keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), secret)
	assert.Contains(t, rec.Body.String(), secret[:4]+"****************"+secret[len(secret)-4:])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	who := httptest.NewRecorder()
	env.router.ServeHTTP(who, req)
	require.Equal(t, http.StatusOK, who.Code)
	assert.Equal(t, "alice", data(t, who)["user_name"])
	assert.Equal(t, "60", who.Header().Get("X-RateLimit-Limit"))

	rec = c.do(t, http.MethodPatch, "/api/v1/api-keys/"+keyID, map[string]string{"name": "deploy"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodDelete, "/api/v1/api-keys/"+keyID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(t, http.MethodDelete, "/api/v1/api-keys/"+keyID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	who = httptest.NewRecorder()
	env.router.ServeHTTP(who, req)
	assert.Equal(t, http.StatusUnauthorized, who.Code)
}

func TestRouter_APIKeysScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client()
	register(t, alice, "alice")
	require.Equal(t, http.StatusOK, alice.login(t, "alice", alicePassword).Code)

	rec := alice.do(t, http.MethodPost, "/api/v1/api-keys", map[string]string{"name": "mine"})
	require.Equal(t, http.StatusCreated, rec.Code)
	keyID := data(t, rec)["id"].(string)

	bob := env.client()
	register(t, bob, "bob")
	require.Equal(t, http.StatusOK, bob.login(t, "bob", alicePassword).Code)

	rec = bob.do(t, http.MethodDelete, "/api/v1/api-keys/"+keyID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = bob.do(t, http.MethodGet, "/api/v1/api-keys", nil)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestRouter_WhoAmI_RequiresKey(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_LoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	var last *httptest.ResponseRecorder
	for range 61 {
		last = c.login(t, "nobody", alicePassword)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errCode(t, last))
}

func TestRouter_LoginRateLimitIgnoresForwardedFor(t *testing.T) {
	env := newTestEnv(t)
	body, err := json.Marshal(map[string]string{"user_name": "nobody", "password": alicePassword})
	require.NoError(t, err)

	limited := 0
	for i := range 61 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 1, limited)
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	c.login(t, "nobody", alicePassword)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "registry_login_attempts_total")
	assert.Contains(t, w.Body.String(), "registry_http_responses_total")
}

func TestRouter_UnwiredHandler_NotImplemented(t *testing.T) {
	router := api.NewRouter(api.Dependencies{
		Sessions:   mw.NewSessions(nil),
		APIKeyAuth: mw.NewAPIKeyAuth(nil),
		RateLimit:  mw.NewRateLimit(nil, 60),
	})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
