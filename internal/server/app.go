// Package server wires the gophauth components together and runs the HTTP
// server until the process is signalled.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const migrationTimeout = 30 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   repomanager.RepositoryManager
	handler http.Handler
	server  *httpapi.HTTPServer
	sync    func() error
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger, sync, err := newLogger(c)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	store, err := newStore(c, logger)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewCodec(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("token codec error: %w", err)
	}

	hasher, err := password.NewHasher(password.DefaultCost, 0)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("password hasher error: %w", err)
	}

	us := services.NewUserService(store, codec, hasher, logger)

	h := httpapi.NewRouter(httpapi.RouterConfig{
		Users:          us,
		Verifier:       codec,
		Cookies:        httpapi.NewCookieJar(c.IsProduction(), c.CookieSecret, codec.AccessTTL(), codec.RefreshTTL()),
		Logger:         logger,
		Metrics:        httpapi.NewMetrics(),
		RateLimiter:    httpapi.NewRateLimiter(c.RateLimitRPM),
		AllowedOrigins: c.AllowedOrigins(),
		Health:         store.Ping,

		TrustProxyHeaders: c.TrustProxyHeaders,
	})

	return &App{
		config:  c,
		logger:  logger,
		store:   store,
		handler: h,
		server:  httpapi.NewHTTPServer(c.EndpointAddrHTTP, h, logger),
		sync:    sync,
	}, nil
}

func newLogger(c *config.Config) (logging.Logger, func() error, error) {
	if c.LogBackend == config.LogBackendZap {
		z, err := logging.NewProductionZapLogger()
		if err != nil {
			return nil, nil, err
		}
		return z, z.Sync, nil
	}
	return logging.NewJSONSlogLogger(os.Stdout, slog.LevelInfo), func() error { return nil }, nil
}

// newStore opens Postgres and applies migrations when a DSN is configured,
// and falls back to the in-memory store otherwise.
func newStore(c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	ctx := context.Background()

	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "No database DSN configured, using in-memory store")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	m, err := repomanager.NewPostgresRepositoryManager(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}

	logger.Info(ctx, "Database migrations applied")
	return m, nil
}

// Handler exposes the assembled router.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Run serves until ctx is cancelled or the process receives SIGINT, SIGTERM
// or SIGQUIT, then closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
	}

	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(ctx, "Error closing store", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	_ = app.sync()

	return err
}
