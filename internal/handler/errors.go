package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:           http.StatusNotFound,
	apperr.KindAlreadyExists:      http.StatusConflict,
	apperr.KindUnauthorized:       http.StatusForbidden,
	apperr.KindInvalidState:       http.StatusUnprocessableEntity,
	apperr.KindInvalidAssignee:    http.StatusUnprocessableEntity,
	apperr.KindInvalidCredentials: http.StatusUnauthorized,
	apperr.KindInvalidToken:       http.StatusUnauthorized,
	apperr.KindInfrastructure:     http.StatusServiceUnavailable,
}

// respondError writes the JSON body for a service failure.
func respondError(c echo.Context, err error) error {
	var e *apperr.Error
	if !errors.As(err, &e) {
		c.Logger().Errorf("unclassified error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}

	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := echo.Map{"error": e.Kind.String()}
	switch {
	case e.Kind == apperr.KindInfrastructure:
		body["message"] = "service temporarily unavailable"
	case e.Msg != "":
		body["message"] = e.Msg
	}
	if e.Reason != apperr.ReasonNone {
		body["reason"] = e.Reason.String()
	}
	return c.JSON(status, body)
}
