package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
	"github.com/Alijeyrad/franchise_backend/internal/service/revenue"
	"github.com/Alijeyrad/franchise_backend/internal/service/stats"
)

type RevenueHandler struct {
	svc   revenue.Service
	stats stats.Service
}

func NewRevenueHandler(svc revenue.Service, st stats.Service) *RevenueHandler {
	return &RevenueHandler{svc: svc, stats: st}
}

var revenueErrors = errorClass{
	invalid:  []error{revenue.ErrInvalidAmount},
	missing:  []error{revenue.ErrMerchantNotFound, commission.ErrRuleNotFound},
	conflict: []error{revenue.ErrRuleChanged},
}

// POST /revenue/distribute
func (h *RevenueHandler) Distribute(c fiber.Ctx) error {
	var body revenue.DistributeInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.MerchantID == uuid.Nil {
		return badRequest(c, "merchant_id is required")
	}

	rec, err := h.svc.Distribute(c.Context(), body)
	if err != nil {
		return revenueErrors.respond(c, err)
	}
	return created(c, rec)
}

// GET /revenue/history
func (h *RevenueHandler) History(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var q struct {
		MerchantID string `query:"merchant_id"`
		Limit      int    `query:"limit"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	var merchantID *uuid.UUID
	if q.MerchantID != "" {
		id, err := uuid.Parse(q.MerchantID)
		if err != nil {
			return badRequest(c, "invalid merchant_id")
		}
		merchantID = &id
	}

	records, err := h.svc.History(c.Context(), caller, merchantID, clampLimit(q.Limit))
	if err != nil {
		return revenueErrors.respond(c, err)
	}
	return ok(c, records)
}

// GET /stats/summary
func (h *RevenueHandler) Summary(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	sum, err := h.stats.TierSummary(c.Context(), caller)
	if err != nil {
		return revenueErrors.respond(c, err)
	}
	return ok(c, sum)
}
