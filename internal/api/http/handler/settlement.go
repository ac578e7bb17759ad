package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/settlement"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

type SettlementHandler struct {
	svc settlement.Service
}

func NewSettlementHandler(svc settlement.Service) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

var settlementErrors = errorClass{
	denied:   []error{settlement.ErrNoTier, settlement.ErrNotInfluencer},
	invalid:  []error{settlement.ErrInvalidPeriod, settlement.ErrInvalidType},
	missing:  []error{settlement.ErrSettlementNotFound},
	conflict: settlementConflicts,
}

var settlementConflicts = []error{
	settlement.ErrNothingToSettle,
	settlement.ErrDuplicatePeriod,
	settlement.ErrNotPending,
	settlement.ErrNotApproved,
	settlement.ErrInvalidTransition,
	settlement.ErrTransferNotRetryable,
}

// POST /settlements
func (h *SettlementHandler) Request(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		Type        string `json:"settlement_type"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	start, end, err := parsePeriod(body.PeriodStart, body.PeriodEnd)
	if err != nil {
		return badRequest(c, err.Error())
	}

	st, err := h.svc.Request(c.Context(), caller, settlement.RequestInput{
		Type:        repo.SettlementType(body.Type),
		PeriodStart: start,
		PeriodEnd:   end,
		Source:      "manual",
	})
	if err != nil {
		return settlementErrors.respond(c, err)
	}
	return created(c, st)
}

// GET /settlements
func (h *SettlementHandler) List(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var q struct {
		UserID  string `query:"user_id"`
		Status  string `query:"status"`
		Type    string `query:"settlement_type"`
		Page    int    `query:"page"`
		PerPage int    `query:"per_page"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query")
	}

	f := settlement.ListFilter{Page: q.Page, Limit: q.PerPage}
	if q.UserID != "" {
		id, err := uuid.Parse(q.UserID)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		f.UserID = &id
	}
	if q.Status != "" {
		s := repo.SettlementStatus(q.Status)
		f.Status = &s
	}
	if q.Type != "" {
		t := repo.SettlementType(q.Type)
		f.Type = &t
	}

	list, err := h.svc.List(c.Context(), caller, f)
	if err != nil {
		return settlementErrors.respond(c, err)
	}
	return ok(c, list)
}

// GET /settlements/:id
func (h *SettlementHandler) Get(c fiber.Ctx) error {
	return h.byID(c, h.svc.Get)
}

// POST /settlements/:id/approve
func (h *SettlementHandler) Approve(c fiber.Ctx) error {
	return h.byID(c, h.svc.Approve)
}

// POST /settlements/:id/pay
func (h *SettlementHandler) Pay(c fiber.Ctx) error {
	return h.byID(c, h.svc.Pay)
}

// POST /settlements/:id/retry-transfer
func (h *SettlementHandler) RetryTransfer(c fiber.Ctx) error {
	return h.byID(c, h.svc.RetryTransfer)
}

type settlementOp func(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error)

func (h *SettlementHandler) byID(c fiber.Ctx, op settlementOp) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := pathID(c)
	if !valid {
		return badRequest(c, "invalid settlement id")
	}

	st, err := op(c.Context(), caller, id)
	if err != nil {
		return settlementErrors.respond(c, err)
	}
	return ok(c, st)
}
