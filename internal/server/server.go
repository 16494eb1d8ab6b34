package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/naira-wallet/wallet_service/internal/config"
	"github.com/naira-wallet/wallet_service/internal/metrics"
	"github.com/naira-wallet/wallet_service/internal/middleware"
	"github.com/naira-wallet/wallet_service/internal/routes"
)

// bodyLimit bounds request bodies, webhook payloads included.
const bodyLimit = 1 << 20

// Server wraps the Fiber application and the services it owns.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	services *routes.Services
	logger   *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger, collector *metrics.Collector) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: cfg.IsProduction(),
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	services, err := routes.Setup(app, routes.Deps{
		Cfg:       cfg,
		DB:        db,
		Cache:     cache,
		Logger:    logger,
		Metrics:   collector,
		AccessLog: !cfg.IsProduction(),
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, services: services, logger: logger}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	s.logger.Info("http.listen", slog.String("addr", s.cfg.Address()), slog.String("env", s.cfg.AppEnv))
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, waits for in-flight ones and then for
// background key bookkeeping.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	s.services.APIKeys.Drain()
	return nil
}
