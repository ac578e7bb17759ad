package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/franchise_backend/internal/api/http/router"
	"github.com/Alijeyrad/franchise_backend/pkg/observability"
)

// Module provides the HTTP server and its router to the fx graph.
var Module = fx.Module("http",
	router.Module,
	fx.Provide(NewServer),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client `optional:"true"`
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	app := New(p.Cfg, p.Redis, p.Router, p.OTel != nil)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					slog.Error("HTTP server error", "error", err)
				}
			}()
			slog.Info("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

// New builds the fiber app with global middleware and every route.
func New(cfg *config.Config, rdb *redis.Client, r *router.Router, tracing bool) *fiber.App {
	fcfg := fiber.Config{AppName: cfg.Observability.ServiceName}
	if cfg.Server.TimeoutSeconds > 0 {
		timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
		fcfg.ReadTimeout, fcfg.WriteTimeout = timeout, timeout
	}
	app := fiber.New(fcfg)

	configureGlobalMiddleware(app, cfg, rdb, tracing && cfg.Observability.Tracing.Enabled)

	r.Register(app)
	return app
}

func configureGlobalMiddleware(app *fiber.App, cfg *config.Config, rdb *redis.Client, tracing bool) {
	app.Use(middleware.RequestID())
	if tracing {
		app.Use(observability.FiberMiddleware(cfg.Observability.ServiceName))
	}
	app.Use(recoverer.New())

	if cfg.Server.Environment == "production" {
		app.Use(helmet.New())
		if rdb != nil {
			app.Use(middleware.NewLimiterWithRedis(rdb, cfg.Server.RateLimit))
		}
	}
	if cfg.Server.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORS.AllowOrigins,
			AllowMethods:     cfg.Server.CORS.AllowMethods,
			AllowHeaders:     cfg.Server.CORS.AllowHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           cfg.Server.CORS.MaxAgeSeconds,
		}))
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${locals:requestId}] ${method} ${url} ${status}\n",
	}))
}
