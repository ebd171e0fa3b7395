package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/middleware"
	"github.com/iliyamo/tradeflow/internal/service"
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// bindValid binds the body into req and validates it. The returned error
// is a ready-made 400.
func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fieldErrors(err)})
	}
	return nil
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := strings.ToLower(fe.Field()) + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += fmt.Sprintf("=%s", fe.Param())
		}
		out = append(out, msg)
	}
	return out
}

// actorOf returns the caller set by the JWT middleware.
func actorOf(c echo.Context) (service.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return service.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return a, nil
}
