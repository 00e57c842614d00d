package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/tokenwallet/internal/app"
	"github.com/congo-pay/tokenwallet/internal/config"
	"github.com/congo-pay/tokenwallet/internal/routes"
)

// Server wraps the Fiber application and the components behind it.
type Server struct {
	fiber *fiber.App
	app   *app.Context
	cfg   config.Config
}

// New builds the application context and delegates route wiring to routes.Setup.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	components, err := app.New(ctx, cfg, db, cache, logger)
	if err != nil {
		return nil, err
	}

	// No write timeout: enrollment and signal streams stay open.
	fa := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 2 * time.Minute,
	})

	if err := routes.Setup(fa, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, App: components}); err != nil {
		components.Close()
		return nil, err
	}

	return &Server{fiber: fa, app: components, cfg: cfg}, nil
}

// Start launches background work: the enrollment event loop, scheduled card
// maintenance and resume of pending activations.
func (s *Server) Start(ctx context.Context) error {
	return s.app.Start(ctx)
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.fiber.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and background work.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.fiber.ShutdownWithContext(ctx)
	s.app.Close()
	return err
}
