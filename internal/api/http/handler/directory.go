package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
)

type DirectoryHandler struct {
	svc directory.Service
}

func NewDirectoryHandler(svc directory.Service) *DirectoryHandler {
	return &DirectoryHandler{svc: svc}
}

var directoryErrors = errorClass{
	invalid: []error{directory.ErrInvalidMerchant, directory.ErrInvalidMember, directory.ErrInvalidPhone, directory.ErrAncestorRole},
	missing: []error{directory.ErrMerchantNotFound, directory.ErrMemberNotFound},
}

// PUT /directory/merchants/:id
func (h *DirectoryHandler) UpsertMerchant(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := pathID(c)
	if !valid {
		return badRequest(c, "invalid merchant id")
	}

	var body directory.MerchantInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	m, err := h.svc.UpsertMerchant(c.Context(), caller, id, body)
	if err != nil {
		return directoryErrors.respond(c, err)
	}
	return ok(c, m)
}

// PUT /directory/members/:id
func (h *DirectoryHandler) UpsertMember(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := pathID(c)
	if !valid {
		return badRequest(c, "invalid member id")
	}

	var body directory.MemberInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	m, err := h.svc.UpsertMember(c.Context(), caller, id, body)
	if err != nil {
		return directoryErrors.respond(c, err)
	}
	return ok(c, m)
}

// GET /directory/members/:id
func (h *DirectoryHandler) GetMember(c fiber.Ctx) error {
	caller, found := callerOf(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := pathID(c)
	if !valid {
		return badRequest(c, "invalid member id")
	}

	m, err := h.svc.GetMember(c.Context(), caller, id)
	if err != nil {
		return directoryErrors.respond(c, err)
	}
	return ok(c, m)
}
