package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lborres/warden"
	fiberadapter "github.com/lborres/warden/adapters/fiber"
	"github.com/lborres/warden/internal/config"
	"github.com/lborres/warden/internal/logging"
	"github.com/lborres/warden/internal/metrics"
	"github.com/lborres/warden/pkg/cache"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the account HTTP API",
		Long: `Serve registration, login, logout and session checks under the
configured base path, plus Prometheus metrics when enabled.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("base-path", "/auth", "route prefix for the account API")
	cmd.Flags().String("redis-addr", "", "Redis address for session storage")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logging.LogError(ctx, logger, "failed to open storage", err)
		return err
	}
	defer st.Close()

	app, w, err := newServer(cfg, st, logger)
	if err != nil {
		return err
	}

	if cfg.Session.PurgeInterval > 0 {
		go w.Sessions.RunJanitor(ctx, cfg.Session.PurgeInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTP.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	logger.InfoContext(ctx, "warden listening", "addr", cfg.HTTP.Addr, "base_path", cfg.HTTP.BasePath)

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("SERVER_FAILED").Wrap(err)
	}
	return nil
}

// newServer builds the Fiber app with the account routes mounted.
func newServer(cfg *config.Config, st *stores, logger *slog.Logger) (*fiber.App, *warden.Warden, error) {
	app := fiber.New(fiber.Config{AppName: "warden"})

	app.Use(recover.New())
	app.Use(requestid.New())
	// credentialed CORS is only enabled for explicitly listed origins
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.HTTP.AllowedOrigins,
			AllowCredentials: true,
		}))
	}

	httpAdapter := fiberadapter.New(app, fiberadapter.Config{
		CookieName:     cfg.HTTP.CookieName,
		InsecureCookie: !cfg.HTTP.CookieSecure,
		Logger:         logger,
	})
	app.Use(httpAdapter.SessionMiddleware())

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	var observer warden.Observer
	var sessionCache warden.Cache
	m := metrics.New()
	if cfg.Metrics.Enabled {
		observer = m
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(m.Handler()))
	}
	if cfg.Session.CacheTTL > 0 && cfg.Session.CacheSize > 0 {
		c := cache.NewInMemoryCache(cfg.CacheSettings())
		if cfg.Metrics.Enabled {
			m.RegisterCache(c)
		}
		sessionCache = c
	}

	sessionConfig := cfg.SessionSettings()
	policy := cfg.PasswordPolicy()

	w, err := warden.New(warden.Config{
		Accounts:       st.accounts,
		Sessions:       st.sessions,
		HTTP:           httpAdapter,
		Cache:          sessionCache,
		DisableCache:   sessionCache == nil,
		SessionConfig:  &sessionConfig,
		PasswordHasher: newHasher(cfg),
		PasswordPolicy: &policy,
		HashSlots:      cfg.Password.HashSlots,
		Observer:       observer,
		Logger:         logger,
		BasePath:       cfg.HTTP.BasePath,
	})
	if err != nil {
		return nil, nil, err
	}

	return app, w, nil
}
