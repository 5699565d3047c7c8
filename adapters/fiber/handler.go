package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/internal/logging"
)

func (a *Adapter) handleGetUser(handler core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		identity := IdentityFrom(c)
		if identity == nil {
			return a.writeError(c, core.ErrUnauthorized)
		}

		view, err := handler.Profile(c.Context(), identity.AccountID)
		if err != nil {
			return a.writeError(c, err)
		}

		return c.Status(http.StatusOK).JSON(view)
	}
}

func (a *Adapter) handleRegister(handler core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.RegisterInput
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		view, err := handler.Register(c.Context(), input)
		if err != nil {
			return a.writeError(c, err)
		}

		return c.Status(http.StatusCreated).JSON(view)
	}
}

func (a *Adapter) handleLogin(handler core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input core.LoginInput
		if err := c.Bind().Body(&input); err != nil {
			return badRequest(c)
		}

		result, err := handler.Login(c.Context(), input, SessionIDFrom(c))
		if err != nil {
			return a.writeError(c, err)
		}
		if result.SessionID != "" {
			setSessionID(c, result.SessionID)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

func (a *Adapter) handleLogout(handler core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := handler.Logout(c.Context(), SessionIDFrom(c)); err != nil {
			return a.writeError(c, err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"result": true})
	}
}

// handleValidateSession only runs once RequireAuth has let the request through.
func handleValidateSession(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{})
}

func handleVerifySession(handler core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"result": handler.VerifySession(c.Context(), SessionIDFrom(c)),
		})
	}
}

// writeError maps err to a status and a JSON body. Internal failures are
// logged and answered with a generic message.
func (a *Adapter) writeError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	body := core.ErrorResponse{Error: err.Error()}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Error = core.ErrValidationFailed.Error()
		body.Violations = verr.Violations
	}

	if status == http.StatusInternalServerError {
		logging.LogError(c.Context(), a.logger, "request failed", err)
		body.Error = "internal server error"
	}

	return c.Status(status).JSON(body)
}

func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrValidationFailed),
		errors.Is(err, core.ErrEmailTaken):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrSessionExists):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
