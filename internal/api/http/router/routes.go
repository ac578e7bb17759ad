package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/franchise_backend/internal/api/http/handler"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

func (r *Router) registerCommissionRoutes(api fiber.Router, h *handler.CommissionHandler) {
	rules := api.Group("/commission-rules")
	rules.Get("/", h.List)
	rules.Get("/resolve", h.Resolve)
	rules.Put("/", r.can(authorize.ResourceCommissionRule, authorize.ActionWrite), h.Upsert)
}

func (r *Router) registerRevenueRoutes(api fiber.Router, h *handler.RevenueHandler) {
	api.Post("/revenue/distribute", r.can(authorize.ResourceRevenue, authorize.ActionWrite), h.Distribute)
	api.Get("/revenue/history", r.can(authorize.ResourceRevenue, authorize.ActionRead), h.History)
	api.Get("/stats/summary", r.can(authorize.ResourceStats, authorize.ActionRead), h.Summary)
}

func (r *Router) registerSettlementRoutes(api fiber.Router, h *handler.SettlementHandler) {
	settlements := api.Group("/settlements")
	settlements.Post("/", h.Request)
	settlements.Get("/", h.List)

	s := settlements.Group("/:id")
	s.Get("/", h.Get)
	s.Post("/approve", r.can(authorize.ResourceSettlement, authorize.ActionApprove), h.Approve)
	s.Post("/pay", r.can(authorize.ResourceSettlement, authorize.ActionPay), h.Pay)
	s.Post("/retry-transfer", r.can(authorize.ResourceSettlement, authorize.ActionPay), h.RetryTransfer)
}

func (r *Router) registerScheduleRoutes(api fiber.Router, h *handler.ScheduleHandler) {
	schedules := api.Group("/schedules")
	schedules.Get("/", r.can(authorize.ResourceSchedule, authorize.ActionRead), h.List)
	schedules.Put("/", r.can(authorize.ResourceSchedule, authorize.ActionWrite), h.Upsert)
	schedules.Post("/run", r.can(authorize.ResourceSchedule, authorize.ActionRun), h.Run)
	schedules.Get("/:id/runs", r.can(authorize.ResourceSchedule, authorize.ActionRead), h.Runs)
}

func (r *Router) registerDirectoryRoutes(api fiber.Router, h *handler.DirectoryHandler) {
	dir := api.Group("/directory", r.can(authorize.ResourceDirectory, authorize.ActionAll))
	dir.Put("/merchants/:id", h.UpsertMerchant)
	dir.Put("/members/:id", h.UpsertMember)
	dir.Get("/members/:id", h.GetMember)
}

func (r *Router) registerInfluencerRoutes(api fiber.Router, h *handler.InfluencerHandler) {
	inf := api.Group("/influencers")
	inf.Post("/", h.Register)
	inf.Get("/me", h.Dashboard)
	inf.Post("/conversions", r.can(authorize.ResourceInfluencer, authorize.ActionWrite), h.TrackConversion)
}
