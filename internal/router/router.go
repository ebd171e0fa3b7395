// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tradeflow/internal/handler"
	"github.com/iliyamo/tradeflow/internal/middleware"
	"github.com/iliyamo/tradeflow/internal/model"
)

// Deps is everything the routes need. The limiters may be nil.
type Deps struct {
	Auth  *handler.AuthHandler
	Jobs  *handler.JobHandler
	Users *handler.UserHandler
	Store handler.Pinger

	Authn       middleware.Authenticator
	Limiter     echo.MiddlewareFunc // general API bucket
	AuthLimiter echo.MiddlewareFunc // stricter bucket for credential endpoints
	JobLimiter  echo.MiddlewareFunc // job creation
	TaskLimiter echo.MiddlewareFunc // task creation
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, store handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if store != nil {
		e.GET("/readyz", handler.Ready(store))
	}
}

// Register mounts the whole API.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Store)
	RegisterAuth(e, d)
	RegisterJobs(e, d)
	RegisterUsers(e, d)
}

// RegisterAuth mounts /v1/auth (no session required) and /v1/me.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth", optional(d.AuthLimiter)...)
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout)

	auth := e.Group("/v1", protected(d)...)
	auth.POST("/auth/logout-all", d.Auth.LogoutAll)
	auth.GET("/me", d.Auth.Me)
}

// RegisterJobs mounts jobs, participants and tasks. Per-job permissions
// are decided by the services, so no role guard applies here.
func RegisterJobs(e *echo.Echo, d Deps) {
	g := e.Group("/v1", protected(d)...)

	g.GET("/jobs", d.Jobs.List)
	g.POST("/jobs", d.Jobs.Create, optional(d.JobLimiter)...)
	g.GET("/jobs/:id", d.Jobs.Get)
	g.PUT("/jobs/:id", d.Jobs.Update)
	g.PATCH("/jobs/:id", d.Jobs.Update)
	g.DELETE("/jobs/:id", d.Jobs.Delete)

	g.GET("/jobs/:id/participants", d.Jobs.ListParticipants)
	g.POST("/jobs/:id/participants", d.Jobs.AddParticipant)
	g.DELETE("/jobs/:id/participants/:userId", d.Jobs.RemoveParticipant)

	g.GET("/jobs/:id/tasks", d.Jobs.ListTasks)
	g.POST("/jobs/:id/tasks", d.Jobs.CreateTask, optional(d.TaskLimiter)...)
	g.GET("/tasks/:id", d.Jobs.GetTask)
	g.PUT("/tasks/:id", d.Jobs.UpdateTask)
	g.PATCH("/tasks/:id", d.Jobs.UpdateTask)
	g.DELETE("/tasks/:id", d.Jobs.DeleteTask)
}

// RegisterUsers mounts the user directory. Deleting a user additionally
// requires the project_manager platform role.
func RegisterUsers(e *echo.Echo, d Deps) {
	g := e.Group("/v1/users", protected(d)...)
	g.GET("", d.Users.List)
	g.GET("/:id", d.Users.Get)
	g.PUT("/:id", d.Users.Update)
	g.PATCH("/:id", d.Users.Update)
	g.DELETE("/:id", d.Users.Delete, middleware.RequireRole(model.PlatformRoleProjectManager))
}

// protected authenticates first so the limiter can key on the user.
func protected(d Deps) []echo.MiddlewareFunc {
	return append([]echo.MiddlewareFunc{middleware.JWTAuth(d.Authn)}, optional(d.Limiter)...)
}

func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
