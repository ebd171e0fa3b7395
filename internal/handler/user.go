package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/service"
)

// UserHandler serves the user directory.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(u *service.UserService) *UserHandler {
	return &UserHandler{Users: u}
}

// rating, completedJobs, email and role are not patchable here.
type updateUserReq struct {
	FirstName      *string `json:"firstName" validate:"omitempty,max=100"`
	LastName       *string `json:"lastName" validate:"omitempty,max=100"`
	Specialization *string `json:"specialization" validate:"omitempty,max=255"`
	Password       *string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (h *UserHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	users, err := h.Users.ListUsers(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}

func (h *UserHandler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	u, err := h.Users.GetUser(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, err := h.Users.UpdateUser(c.Request().Context(), actor, c.Param("id"), service.UserPatch{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Specialization: req.Specialization,
		Password:       req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.Users.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
