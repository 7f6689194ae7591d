package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/letter-service/internal/api/dto"
	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/service"
)

// AdminLettersHandler exposes superuser letter management.
type AdminLettersHandler struct {
	admin   *service.AdminService
	exports *service.ExportService
}

// NewAdminLettersHandler constructs handler.
func NewAdminLettersHandler(admin *service.AdminService, exports *service.ExportService) *AdminLettersHandler {
	return &AdminLettersHandler{admin: admin, exports: exports}
}

// List GET /admin/letters.
func (h *AdminLettersHandler) List(c *fiber.Ctx) error {
	page, err := h.admin.ListLetters(c.UserContext(), letterQuery(c, auth.ActorFromContext(c), policy.ViewAdmin))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": letterPage(page, lettersBasePath)})
}

// Export GET /admin/letters/export.
func (h *AdminLettersHandler) Export(c *fiber.Ctx) error {
	report, err := h.exports.Export(c.UserContext(), letterQuery(c, auth.ActorFromContext(c), policy.ViewAdmin))
	if err != nil {
		return err
	}
	return sendDownload(c, report.Filename, report.ContentType, report.Body)
}

// Get GET /admin/letters/:serial.
func (h *AdminLettersHandler) Get(c *fiber.Ctx) error {
	serial, err := serialParam(c)
	if err != nil {
		return err
	}
	letter, err := h.admin.GetLetter(c.UserContext(), auth.ActorFromContext(c), serial)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LetterFromDomain(letter, lettersBasePath)})
}

// Create POST /admin/letters.
func (h *AdminLettersHandler) Create(c *fiber.Ctx) error {
	input, closeUploads, err := letterInput(c)
	if err != nil {
		return err
	}
	defer closeUploads()

	letter, err := h.admin.CreateLetter(c.UserContext(), auth.ActorFromContext(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.LetterFromDomain(letter, lettersBasePath)})
}

// Update PUT /admin/letters/:serial. A RESOURCE_ERROR still carries the saved letter.
func (h *AdminLettersHandler) Update(c *fiber.Ctx) error {
	serial, err := serialParam(c)
	if err != nil {
		return err
	}
	input, closeUploads, err := letterInput(c)
	if err != nil {
		return err
	}
	defer closeUploads()

	letter, err := h.admin.UpdateLetter(c.UserContext(), auth.ActorFromContext(c), serial, input)
	if err != nil {
		if letter == nil {
			return err
		}
		return committedWithError(c, dto.LetterFromDomain(letter, lettersBasePath), err)
	}
	return c.JSON(fiber.Map{"data": dto.LetterFromDomain(letter, lettersBasePath)})
}

// Delete DELETE /admin/letters/:serial.
func (h *AdminLettersHandler) Delete(c *fiber.Ctx) error {
	serial, err := serialParam(c)
	if err != nil {
		return err
	}
	if err := h.admin.DeleteLetter(c.UserContext(), auth.ActorFromContext(c), serial); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func letterInput(c *fiber.Ctx) (service.LetterInput, func(), error) {
	uploads, closeUploads, err := attachmentUploads(c)
	if err != nil {
		return service.LetterInput{}, closeUploads, err
	}
	return service.LetterInput{
		SerialNumber:       c.FormValue("serial_number"),
		DateReceived:       c.FormValue("date_received"),
		SenderName:         c.FormValue("sender_name"),
		SenderAddress:      c.FormValue("sender_address"),
		LetterType:         c.FormValue("letter_type"),
		TargetSector:       c.FormValue("target_sector"),
		AdministeredBy:     c.FormValue("administered_by"),
		AcceptingOfficerID: c.FormValue("accepting_officer_id"),
		IsReplied:          formBool(c, "is_replied"),
		RepliedAt:          c.FormValue("replied_at"),
		Attachments:        uploads,
		ClearSlots:         clearedSlots(c),
	}, closeUploads, nil
}
