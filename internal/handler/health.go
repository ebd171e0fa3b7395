package handler // handler adapts HTTP requests onto the services

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is a liveness check used by load balancers and monitoring. It
// returns a plain text "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready returns a readiness check that also pings the store.
func Ready(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unreachable"})
		}
		return c.String(http.StatusOK, "ready")
	}
}
