package fiber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lborres/warden/adapters/memory"
	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
	"github.com/lborres/warden/services"
)

const basePath = "/auth"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := memory.New()
	sessions := services.NewSessionManager(core.DefaultSessionConfig(), store, nil)
	service := services.NewAccountService(store, sessions, crypto.NewBcrypt(bcrypt.MinCost))

	app := fiber.New()
	adapter := New(app, Config{InsecureCookie: true})
	require.NoError(t, adapter.RegisterRoutes(service, basePath))
	return app
}

type response struct {
	status int
	cookie *http.Cookie
	body   map[string]any
}

func do(t *testing.T, app *fiber.App, method, path, body string, cookie *http.Cookie) response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, basePath+path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode}
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			out.cookie = c
		}
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), "body: %s", raw)
	}
	return out
}

func registerBody(email string) string {
	return fmt.Sprintf(`{"email":%q,"password":"Secret123","password_confirmation":"Secret123","display_name":"Ann","eula":true}`, email)
}

func loginBody(email, password string) string {
	return fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
}

// Requirement: every response carries a session cookie; a valid one is kept.
func TestSessionMiddleware_Cookie(t *testing.T) {
	app := newTestApp(t)

	first := do(t, app, http.MethodGet, "/verify-session", "", nil)
	require.NotNil(t, first.cookie)
	assert.True(t, crypto.IsSessionID(first.cookie.Value))
	assert.True(t, first.cookie.HttpOnly)
	assert.Equal(t, "/", first.cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, first.cookie.SameSite)

	second := do(t, app, http.MethodGet, "/verify-session", "", first.cookie)
	require.NotNil(t, second.cookie)
	assert.Equal(t, first.cookie.Value, second.cookie.Value)
}

// Requirement: a malformed cookie is replaced instead of rejected.
func TestSessionMiddleware_ReplacesMalformedCookie(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/verify-session", "", &http.Cookie{Name: DefaultCookieName, Value: "not-a-uuid"})

	assert.Equal(t, http.StatusOK, resp.status)
	require.NotNil(t, resp.cookie)
	assert.NotEqual(t, "not-a-uuid", resp.cookie.Value)
	assert.True(t, crypto.IsSessionID(resp.cookie.Value))
}

// Requirement: the secure attribute is set unless explicitly disabled.
func TestSessionMiddleware_SecureByDefault(t *testing.T) {
	store := memory.New()
	sessions := services.NewSessionManager(core.DefaultSessionConfig(), store, nil)
	service := services.NewAccountService(store, sessions, crypto.NewBcrypt(bcrypt.MinCost))

	app := fiber.New()
	require.NoError(t, New(app, Config{}).RegisterRoutes(service, basePath))

	resp := do(t, app, http.MethodGet, "/verify-session", "", nil)

	require.NotNil(t, resp.cookie)
	assert.True(t, resp.cookie.Secure)
}

// Requirement: register, login, fetch the user, log out.
func TestRoutes_AccountLifecycle(t *testing.T) {
	app := newTestApp(t)

	reg := do(t, app, http.MethodPost, "/register", registerBody("ann@example.com"), nil)
	require.Equal(t, http.StatusCreated, reg.status)
	assert.Equal(t, "ann@example.com", reg.body["email"])
	assert.Equal(t, "Ann", reg.body["display_name"])
	assert.NotContains(t, reg.body, "password_hash")
	cookie := reg.cookie
	require.NotNil(t, cookie)

	unauth := do(t, app, http.MethodGet, "/user", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, unauth.status)

	verify := do(t, app, http.MethodGet, "/verify-session", "", cookie)
	assert.Equal(t, false, verify.body["result"])

	login := do(t, app, http.MethodPost, "/login", loginBody("ann@example.com", "Secret123"), cookie)
	require.Equal(t, http.StatusOK, login.status)
	require.NotNil(t, login.cookie)
	assert.Equal(t, cookie.Value, login.cookie.Value)
	profile, ok := login.body["profile"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ann@example.com", profile["email"])
	assert.NotNil(t, login.body["expires_at"])

	user := do(t, app, http.MethodGet, "/user", "", cookie)
	require.Equal(t, http.StatusOK, user.status)
	assert.Equal(t, "Ann", user.body["display_name"])

	valid := do(t, app, http.MethodGet, "/validate-session", "", cookie)
	assert.Equal(t, http.StatusOK, valid.status)
	assert.Empty(t, valid.body)

	verify = do(t, app, http.MethodGet, "/verify-session", "", cookie)
	assert.Equal(t, true, verify.body["result"])

	logout := do(t, app, http.MethodDelete, "/log-out", "", cookie)
	require.Equal(t, http.StatusOK, logout.status)
	assert.Equal(t, true, logout.body["result"])

	after := do(t, app, http.MethodGet, "/validate-session", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, after.status)

	logoutAgain := do(t, app, http.MethodDelete, "/log-out", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, logoutAgain.status)
}

// Requirement: keep_logged_in produces a session without expiry.
func TestRoutes_LoginKeepLoggedIn(t *testing.T) {
	app := newTestApp(t)
	do(t, app, http.MethodPost, "/register", registerBody("bob@example.com"), nil)

	resp := do(t, app, http.MethodPost, "/login",
		`{"email":"bob@example.com","password":"Secret123","keep_logged_in":true}`, nil)

	require.Equal(t, http.StatusOK, resp.status)
	assert.Nil(t, resp.body["expires_at"])
}

// Requirement: registration failures are 400 with violation categories.
func TestRoutes_RegisterFailures(t *testing.T) {
	app := newTestApp(t)
	require.Equal(t, http.StatusCreated, do(t, app, http.MethodPost, "/register", registerBody("ann@example.com"), nil).status)

	dup := do(t, app, http.MethodPost, "/register", registerBody("ann@example.com"), nil)
	assert.Equal(t, http.StatusBadRequest, dup.status)
	assert.Equal(t, core.ErrEmailTaken.Error(), dup.body["error"])

	bad := do(t, app, http.MethodPost, "/register",
		`{"email":"nope","password":"short","password_confirmation":"other","display_name":"","eula":false}`, nil)
	require.Equal(t, http.StatusBadRequest, bad.status)
	assert.Equal(t, core.ErrValidationFailed.Error(), bad.body["error"])
	violations, ok := bad.body["violations"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, violations)

	malformed := do(t, app, http.MethodPost, "/register", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, malformed.status)
}

// Requirement: wrong credentials and unknown accounts look the same.
func TestRoutes_LoginInvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	do(t, app, http.MethodPost, "/register", registerBody("ann@example.com"), nil)

	wrong := do(t, app, http.MethodPost, "/login", loginBody("ann@example.com", "Wrong1234"), nil)
	unknown := do(t, app, http.MethodPost, "/login", loginBody("ghost@example.com", "Secret123"), nil)

	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Equal(t, http.StatusUnauthorized, unknown.status)
	assert.Equal(t, wrong.body, unknown.body)
}

// Requirement: a login body that does not parse is 400.
func TestRoutes_LoginMalformedBody(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/login", `not json`, nil)

	assert.Equal(t, http.StatusBadRequest, resp.status)
}

// stubHandler fails every call with err.
type stubHandler struct {
	err error
}

func (s stubHandler) Register(context.Context, core.RegisterInput) (*core.ProfileView, error) {
	return nil, s.err
}

func (s stubHandler) Login(context.Context, core.LoginInput, string) (*core.LoginResult, error) {
	return nil, s.err
}

func (s stubHandler) Logout(context.Context, string) error { return s.err }

func (s stubHandler) Profile(context.Context, string) (*core.ProfileView, error) {
	return nil, s.err
}

func (s stubHandler) Authenticate(context.Context, string) (*core.Identity, error) {
	return nil, s.err
}

func (s stubHandler) VerifySession(context.Context, string) bool { return false }

// Requirement: internal failures are 500 with a generic message.
func TestRoutes_InternalErrorIsHidden(t *testing.T) {
	app := fiber.New()
	require.NoError(t, New(app, Config{InsecureCookie: true}).RegisterRoutes(stubHandler{err: errors.New("db: connection refused")}, basePath))

	resp := do(t, app, http.MethodPost, "/login", loginBody("ann@example.com", "Secret123"), nil)

	assert.Equal(t, http.StatusInternalServerError, resp.status)
	assert.Equal(t, "internal server error", resp.body["error"])
	require.NotNil(t, resp.cookie)
}

// Requirement: an endpoint without a handler is a registration error.
func TestRegisterRoutes_UnknownOperation(t *testing.T) {
	app := fiber.New()
	adapter := New(app, Config{Endpoints: []core.Endpoint{{
		Path:     "/nope",
		Method:   http.MethodGet,
		Metadata: core.EndpointMetadata{OperationID: "nope"},
	}}})

	err := adapter.RegisterRoutes(stubHandler{}, basePath)

	assert.ErrorContains(t, err, `"nope"`)
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{core.ErrInvalidCredentials, http.StatusUnauthorized},
		{core.ErrUnauthorized, http.StatusUnauthorized},
		{core.ErrSessionNotFound, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", core.ErrSessionExpired), http.StatusUnauthorized},
		{core.ErrEmailTaken, http.StatusBadRequest},
		{&core.ValidationError{}, http.StatusBadRequest},
		{core.ErrSessionExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToStatus(tt.err))
		})
	}
}
