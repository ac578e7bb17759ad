package router

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/api/http/handler"
	"github.com/Alijeyrad/franchise_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
	"github.com/Alijeyrad/franchise_backend/internal/service/influencer"
	"github.com/Alijeyrad/franchise_backend/internal/service/revenue"
	"github.com/Alijeyrad/franchise_backend/internal/service/scheduler"
	"github.com/Alijeyrad/franchise_backend/internal/service/settlement"
	"github.com/Alijeyrad/franchise_backend/internal/service/stats"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/franchise_backend/pkg/paseto"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg           *config.Config
	Redis         *redis.Client `optional:"true"`
	Tokens        *pasetotoken.Manager
	Perms         *authorize.Enforcer
	CommissionSvc commission.Service
	RevenueSvc    revenue.Service
	StatsSvc      stats.Service
	SettlementSvc settlement.Service
	SchedulerSvc  scheduler.Service
	DirectorySvc  directory.Service
	InfluencerSvc influencer.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	r.registerSystemRoutes(app)

	var sessions middleware.SessionStore
	if r.p.Cfg.Authentication.CheckSessions && r.p.Redis != nil {
		sessions = r.p.Redis
	}
	authRequired := middleware.AuthRequired(r.p.Tokens, sessions)

	commissionH := handler.NewCommissionHandler(r.p.CommissionSvc)
	revenueH := handler.NewRevenueHandler(r.p.RevenueSvc, r.p.StatsSvc)
	settlementH := handler.NewSettlementHandler(r.p.SettlementSvc)
	scheduleH := handler.NewScheduleHandler(r.p.SchedulerSvc)
	directoryH := handler.NewDirectoryHandler(r.p.DirectorySvc)
	influencerH := handler.NewInfluencerHandler(r.p.InfluencerSvc)

	api := app.Group("/api/v1", authRequired)

	r.registerCommissionRoutes(api, commissionH)
	r.registerRevenueRoutes(api, revenueH)
	r.registerSettlementRoutes(api, settlementH)
	r.registerScheduleRoutes(api, scheduleH)
	r.registerDirectoryRoutes(api, directoryH)
	r.registerInfluencerRoutes(api, influencerH)
}

func (r *Router) can(obj authorize.Resource, act authorize.Action) fiber.Handler {
	return middleware.RequirePermission(r.p.Perms, obj, act)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			if !authorize.IsPolicyHealthy() {
				return false
			}
			return r.p.Redis == nil || r.p.Redis.Ping(c.Context()).Err() == nil
		},
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
