package handler

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/franchise_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/scheduler"
)

type ScheduleHandler struct {
	svc scheduler.Service
	now func() time.Time
}

func NewScheduleHandler(svc scheduler.Service) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, now: func() time.Time { return time.Now().UTC() }}
}

var scheduleErrors = errorClass{
	invalid: []error{scheduler.ErrInvalidType, scheduler.ErrInvalidTargetRole, scheduler.ErrInvalidStatus},
	missing: []error{scheduler.ErrScheduleNotFound, scheduler.ErrNoActiveSchedule},
}

// GET /schedules
func (h *ScheduleHandler) List(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}
	list, err := h.svc.List(c.Context(), caller)
	if err != nil {
		return scheduleErrors.respond(c, err)
	}
	return ok(c, list)
}

// PUT /schedules
func (h *ScheduleHandler) Upsert(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var body scheduler.ScheduleInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	sc, err := h.svc.Upsert(c.Context(), caller, body)
	if err != nil {
		return scheduleErrors.respond(c, err)
	}
	return ok(c, sc)
}

// POST /schedules/run
func (h *ScheduleHandler) Run(c fiber.Ctx) error {
	var body struct {
		Type string `json:"schedule_type"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.svc.RunBatch(c.Context(), repo.ScheduleType(body.Type), h.now())
	switch {
	case err != nil && res == nil:
		return scheduleErrors.respond(c, err)
	case err != nil:
		// The schedule was not advanced; the next tick retries the window.
		rid, _ := middleware.RequestIDFromFiber(c)
		slog.ErrorContext(c.Context(), "http: schedule batch interrupted", "request_id", rid, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"data": res, "error": "batch interrupted"})
	}
	// per-member failures are part of the result
	return ok(c, res)
}

// GET /schedules/:id/runs
func (h *ScheduleHandler) Runs(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := pathID(c)
	if !valid {
		return badRequest(c, "invalid schedule id")
	}

	runs, err := h.svc.Runs(c.Context(), caller, id, clampLimit(fiber.Query[int](c, "limit")))
	if err != nil {
		return scheduleErrors.respond(c, err)
	}
	return ok(c, runs)
}
