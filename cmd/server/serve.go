package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/tradeflow/internal/auth"
	"github.com/iliyamo/tradeflow/internal/authz"
	"github.com/iliyamo/tradeflow/internal/config"
	"github.com/iliyamo/tradeflow/internal/database"
	"github.com/iliyamo/tradeflow/internal/handler"
	"github.com/iliyamo/tradeflow/internal/middleware"
	"github.com/iliyamo/tradeflow/internal/queue"
	"github.com/iliyamo/tradeflow/internal/router"
	"github.com/iliyamo/tradeflow/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := newLogger(cfg.Env)
		slog.SetDefault(logger)

		store, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if cfg.DBDriver == "sqlite" {
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
		}

		var events service.Publisher = service.NopPublisher{}
		if cfg.RabbitMQURL != "" {
			pub := queue.NewPublisher(cfg.RabbitMQURL)
			defer pub.Close()
			events = pub
		}

		rdb := config.NewRedisClient()
		if rdb != nil {
			defer rdb.Close()
		} else {
			log.Println("redis unavailable, rate limiting disabled")
		}

		issuer := auth.NewIssuer(store, auth.Options{
			Secret:     cfg.JWTSecret,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
			BcryptCost: cfg.BcryptCost,
		})
		engine := authz.NewEngine()
		opts := service.Options{Timeout: cfg.DBTimeout, Logger: logger, Events: events}
		authSvc := service.NewAuthService(store, issuer, opts)

		e := echo.New()
		e.HideBanner = true
		e.Validator = handler.NewRequestValidator()
		e.Use(echomw.Recover())
		e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
				attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
				if v.Error != nil {
					attrs = append(attrs, "error", v.Error.Error())
				}
				logger.Info("request", attrs...)
				return nil
			},
		}))

		router.Register(e, router.Deps{
			Auth:        handler.NewAuthHandler(authSvc),
			Jobs:        handler.NewJobHandler(service.NewJobService(store, engine, opts), service.NewTaskService(store, engine, opts)),
			Users:       handler.NewUserHandler(service.NewUserService(store, issuer, engine, opts)),
			Store:       store,
			Authn:       authSvc,
			Limiter:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
			AuthLimiter: middleware.NewTokenBucket(config.LoadAuthRateLimitConfig(), rdb),
			JobLimiter:  middleware.NewTokenBucket(config.LoadJobCreateRateLimitConfig(), rdb),
			TaskLimiter: middleware.NewTokenBucket(config.LoadTaskCreateRateLimitConfig(), rdb),
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := ":" + cfg.Port
		go func() {
			log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("server stopped: %v", err)
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		log.Println("HTTP server shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
