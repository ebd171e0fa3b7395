package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tradeflow/internal/config"
	"github.com/iliyamo/tradeflow/internal/model"
	"github.com/iliyamo/tradeflow/internal/service"
)

type stubAuthn map[string]service.Actor

func (s stubAuthn) Authenticate(token string) (service.Actor, error) {
	a, ok := s[token]
	if !ok {
		return service.Actor{}, errors.New("bad token")
	}
	return a, nil
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	authn := stubAuthn{
		"pm":   {ID: "u-pm", Role: model.PlatformRoleProjectManager},
		"tech": {ID: "u-tech", Role: model.PlatformRoleTradesperson},
	}
	e := echo.New()
	g := e.Group("", JWTAuth(authn))
	g.GET("/whoami", func(c echo.Context) error {
		a, ok := ActorFrom(c)
		require.True(t, ok)
		return c.String(http.StatusOK, a.ID+"|"+currentUserID(c))
	})
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RequireRole(model.PlatformRoleProjectManager))

	rec := serve(e, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/whoami", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/whoami", "tech")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-tech|u-tech", rec.Body.String())

	rec = serve(e, http.MethodGet, "/admin", "tech")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodGet, "/admin", "pm")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/jobs")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.7",
		"user":     "rl:user:anon",
		"ip_route": "rl:ip:10.0.0.7:route:POST /v1/jobs",
		"":         "rl:ip:10.0.0.7:user:anon:route:POST /v1/jobs",
	}
	for strategy, want := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, buildRateKey(cfg, c), strategy)
	}

	c.Set("user_id", "u-1")
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:u-1:route:POST /v1/jobs", buildRateKey(cfg, c))

	cfg.Name = "job_create"
	cfg.KeyStrategy = "ip_route"
	assert.Equal(t, "rl:job_create:ip:10.0.0.7:route:POST /v1/jobs", buildRateKey(cfg, c))
}

func TestTokenBucketPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}
