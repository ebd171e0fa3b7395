package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/auth"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Email          string  `json:"email" validate:"required,email,max=255"`
	Password       string  `json:"password" validate:"required,min=8,max=72"`
	FirstName      string  `json:"firstName" validate:"max=100"`
	LastName       string  `json:"lastName" validate:"max=100"`
	Role           string  `json:"role" validate:"omitempty,oneof=tradesperson contractor project_manager"`
	Specialization *string `json:"specialization" validate:"omitempty,max=255"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResp struct {
	User   *model.User    `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Register creates the user and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, pair, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Password:       req.Password,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Role:           model.PlatformRole(req.Role),
		Specialization: req.Specialization,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, authResp{User: u, Tokens: pair})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, pair, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{User: u, Tokens: pair})
}

// Refresh rotates the presented refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, pair, err := h.Auth.Refresh(c.Request().Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{User: u, Tokens: pair})
}

// Logout revokes one refresh token. Unknown tokens still yield 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.Auth.Logout(c.Request().Context(), strings.TrimSpace(req.RefreshToken)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the caller.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if err := h.Auth.LogoutAll(c.Request().Context(), actor); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	u, err := h.Auth.Me(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
