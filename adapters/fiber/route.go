// Package fiber serves the account routes on a Fiber v3 app and carries the
// session cookie on every response.
package fiber

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/services"
)

const DefaultCookieName = "session_id"

type Config struct {
	// CookieName defaults to "session_id".
	CookieName string

	// InsecureCookie drops the Secure attribute. Local development only.
	InsecureCookie bool

	// Endpoints defaults to services.NewEndpointRegistry().Endpoints().
	Endpoints []core.Endpoint

	Logger *slog.Logger
}

type Adapter struct {
	app       *fiber.App
	cookie    string
	secure    bool
	endpoints []core.Endpoint
	logger    *slog.Logger
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App, cfg Config) *Adapter {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.Endpoints == nil {
		cfg.Endpoints = services.NewEndpointRegistry().Endpoints()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{
		app:       app,
		cookie:    cfg.CookieName,
		secure:    !cfg.InsecureCookie,
		endpoints: cfg.Endpoints,
		logger:    cfg.Logger,
	}
}

// RegisterRoutes mounts every endpoint under basePath behind the session
// middleware. Endpoints that require auth run the gate first.
func (a *Adapter) RegisterRoutes(handler core.AuthHandler, basePath string) error {
	handlers := a.handlers(handler)
	requireAuth := a.RequireAuth(handler)

	api := a.app.Group(basePath, a.SessionMiddleware())

	for _, ep := range a.endpoints {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}
		if ep.Metadata.RequiresAuth {
			api.Add([]string{ep.Method}, ep.Path, requireAuth, h)
		} else {
			api.Add([]string{ep.Method}, ep.Path, h)
		}
	}

	return nil
}

func (a *Adapter) handlers(handler core.AuthHandler) map[string]fiber.Handler {
	return map[string]fiber.Handler{
		core.OpGetUser:         a.handleGetUser(handler),
		core.OpRegister:        a.handleRegister(handler),
		core.OpLogin:           a.handleLogin(handler),
		core.OpLogout:          a.handleLogout(handler),
		core.OpValidateSession: handleValidateSession,
		core.OpVerifySession:   handleVerifySession(handler),
	}
}

func badRequest(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(core.ErrorResponse{Error: "invalid request body"})
}
