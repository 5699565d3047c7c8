package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/lborres/warden/core"
	"github.com/lborres/warden/pkg/crypto"
)

type localsKey int

const (
	sessionIDKey localsKey = iota
	identityKey
)

// SessionMiddleware gives every request a session identifier and writes it
// back as a cookie once the downstream handlers return. A missing or
// malformed cookie is replaced with a freshly minted identifier. The
// identifier is not checked against storage here and no request is
// rejected.
func (a *Adapter) SessionMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if SessionIDFrom(c) != "" {
			return c.Next()
		}

		id := c.Cookies(a.cookie)
		if !crypto.IsSessionID(id) {
			id = crypto.NewSessionID()
		}
		c.Locals(sessionIDKey, id)

		err := c.Next()

		// handlers may have replaced the identifier, e.g. on login rotation
		c.Cookie(&fiber.Cookie{
			Name:     a.cookie,
			Value:    SessionIDFrom(c),
			Path:     "/",
			HTTPOnly: true,
			Secure:   a.secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})

		return err
	}
}

// RequireAuth runs the authentication gate and stores the identity for
// IdentityFrom. Requests without a live session get 401.
func (a *Adapter) RequireAuth(handler core.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		identity, err := handler.Authenticate(c.Context(), SessionIDFrom(c))
		if err != nil {
			return a.writeError(c, err)
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// SessionIDFrom returns the identifier SessionMiddleware assigned, or "".
func SessionIDFrom(c fiber.Ctx) string {
	id, _ := c.Locals(sessionIDKey).(string)
	return id
}

func setSessionID(c fiber.Ctx, id string) {
	c.Locals(sessionIDKey, id)
}

// IdentityFrom returns the identity RequireAuth stored, or nil.
func IdentityFrom(c fiber.Ctx) *core.Identity {
	identity, _ := c.Locals(identityKey).(*core.Identity)
	return identity
}
