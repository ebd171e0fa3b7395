package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/service"
)

const actorKey = "actor"

// ActorFrom returns the actor stored by JWTAuth.
func ActorFrom(c echo.Context) (service.Actor, bool) {
	a, ok := c.Get(actorKey).(service.Actor)
	return a, ok && a.ID != ""
}

// currentUserID identifies the caller for rate-limit keys; "anon" before
// authentication.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}
