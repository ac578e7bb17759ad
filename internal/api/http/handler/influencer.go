package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/franchise_backend/internal/service/influencer"
)

type InfluencerHandler struct {
	svc influencer.Service
}

func NewInfluencerHandler(svc influencer.Service) *InfluencerHandler {
	return &InfluencerHandler{svc: svc}
}

var influencerErrors = errorClass{
	invalid:  []error{influencer.ErrInvalidAmount, influencer.ErrInvalidInput},
	missing:  []error{influencer.ErrNotRegistered, influencer.ErrUnknownCode},
	conflict: []error{influencer.ErrAlreadyRegistered, influencer.ErrSuspended},
}

// POST /influencers
func (h *InfluencerHandler) Register(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var body influencer.RegisterInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	inf, err := h.svc.Register(c.Context(), caller, body)
	if err != nil {
		return influencerErrors.respond(c, err)
	}
	return created(c, inf)
}

// GET /influencers/me
func (h *InfluencerHandler) Dashboard(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	d, err := h.svc.Dashboard(c.Context(), caller)
	if err != nil {
		return influencerErrors.respond(c, err)
	}
	return ok(c, d)
}

// POST /influencers/conversions
func (h *InfluencerHandler) TrackConversion(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}

	var body influencer.ConversionInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	conv, err := h.svc.TrackConversion(c.Context(), caller, body)
	if err != nil {
		return influencerErrors.respond(c, err)
	}
	return created(c, conv)
}
