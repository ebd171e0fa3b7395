package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/service"
)

// Authenticator turns a raw access token into the calling actor.
type Authenticator interface {
	Authenticate(accessToken string) (service.Actor, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the actor in the request context. Handlers read it back with
// ActorFrom; "user_id" and "role" are also set for the rate limiter and
// RequireRole.
func JWTAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			actor, err := a.Authenticate(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(actorKey, actor)
			c.Set("user_id", actor.ID)
			c.Set("role", string(actor.Role))
			return next(c)
		}
	}
}
