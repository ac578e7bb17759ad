package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
)

type CommissionHandler struct {
	svc commission.Service
}

func NewCommissionHandler(svc commission.Service) *CommissionHandler {
	return &CommissionHandler{svc: svc}
}

var commissionErrors = errorClass{
	invalid: []error{commission.ErrInvalidRates},
	missing: []error{commission.ErrRuleNotFound},
}

// PUT /commission-rules
func (h *CommissionHandler) Upsert(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var body commission.RuleInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	rule, err := h.svc.UpsertRule(c.Context(), caller, body)
	if err != nil {
		return commissionErrors.respond(c, err)
	}
	return ok(c, rule)
}

// GET /commission-rules
func (h *CommissionHandler) List(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	rules, err := h.svc.ListRules(c.Context(), caller,
		optionalString(c.Query("category")), optionalString(c.Query("region_code")))
	if err != nil {
		return commissionErrors.respond(c, err)
	}
	return ok(c, rules)
}

// GET /commission-rules/resolve
func (h *CommissionHandler) Resolve(c fiber.Ctx) error {
	rule, err := h.svc.Resolve(c.Context(), c.Query("category"), c.Query("region_code"))
	if err != nil {
		return commissionErrors.respond(c, err)
	}
	return ok(c, rule)
}
