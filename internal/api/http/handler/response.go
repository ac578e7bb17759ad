package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/constants"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func forbidden(c fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
}

func notFound(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func conflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}

// internalError hides err from the client and logs it with the request id.
func internalError(c fiber.Ctx, err error) error {
	rid, _ := middleware.RequestIDFromFiber(c)
	slog.ErrorContext(c.Context(), "http: request failed",
		"method", c.Method(), "path", c.Path(), "request_id", rid, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// errorClass buckets service errors into transport statuses.
type errorClass struct {
	denied   []error
	invalid  []error
	missing  []error
	conflict []error
}

func (ec errorClass) respond(c fiber.Ctx, err error) error {
	if errors.Is(err, authorize.ErrForbidden) {
		return forbidden(c)
	}
	for _, e := range ec.denied {
		if errors.Is(err, e) {
			return forbidden(c)
		}
	}
	for _, e := range ec.invalid {
		if errors.Is(err, e) {
			return badRequest(c, err.Error())
		}
	}
	for _, e := range ec.missing {
		if errors.Is(err, e) {
			return notFound(c, err.Error())
		}
	}
	for _, e := range ec.conflict {
		if errors.Is(err, e) {
			return conflict(c, err.Error())
		}
	}
	return internalError(c, err)
}

func callerOf(c fiber.Ctx) (authorize.Caller, bool) {
	return middleware.CallerFromFiber(c)
}

func pathID(c fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parsePeriod turns inclusive calendar days into the half-open UTC range
// [start, end+1d).
func parsePeriod(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("period_start must be YYYY-MM-DD")
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("period_end must be YYYY-MM-DD")
	}
	return s.UTC(), e.UTC().AddDate(0, 0, 1), nil
}

func clampLimit(n int) int {
	if n <= 0 {
		return constants.DefaultPerPage
	}
	if n > constants.MaxPerPage {
		return constants.MaxPerPage
	}
	return n
}
