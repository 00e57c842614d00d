package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/tokenwallet/internal/activation"
	"github.com/congo-pay/tokenwallet/internal/app"
	"github.com/congo-pay/tokenwallet/internal/cards"
	"github.com/congo-pay/tokenwallet/internal/config"
	"github.com/congo-pay/tokenwallet/internal/enrollment"
	"github.com/congo-pay/tokenwallet/internal/middleware"
	"github.com/congo-pay/tokenwallet/internal/notification"
	"github.com/congo-pay/tokenwallet/internal/pushtoken"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	App    *app.Context
}

// Setup configures middlewares and all application routes.
func Setup(fa *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.App == nil {
		return fmt.Errorf("application context is required")
	}

	fa.Use(recover.New())
	fa.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	fa.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	fa.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(fa, d)

	api := fa.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	a := d.App
	RegisterEnrollmentRoutes(api, enrollment.NewHandler(a.Orchestrator), activation.NewHandler(a.Activations), idempotency)
	RegisterPushRoutes(api, pushtoken.NewHandler(a.Bridge, a.SDK), notification.NewHandler(a.Router, a.Hub))
	RegisterCardRoutes(api, cards.NewHandler(a.Cards))
	return nil
}
