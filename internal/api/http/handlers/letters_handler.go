package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/letter-service/internal/api/dto"
	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/service"
)

const lettersBasePath = "/letters"

// LettersHandler serves the sector dashboard, detail, reply and download endpoints.
type LettersHandler struct {
	query   *service.LetterQueryService
	replies *service.ReplyWorkflow
	exports *service.ExportService
}

// NewLettersHandler constructs handler.
func NewLettersHandler(query *service.LetterQueryService, replies *service.ReplyWorkflow, exports *service.ExportService) *LettersHandler {
	return &LettersHandler{query: query, replies: replies, exports: exports}
}

// Dashboard GET /letters.
func (h *LettersHandler) Dashboard(c *fiber.Ctx) error {
	page, err := h.query.Dashboard(c.UserContext(), letterQuery(c, auth.ActorFromContext(c), policy.ViewDashboard))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": letterPage(page, lettersBasePath)})
}

// Export GET /letters/export.
func (h *LettersHandler) Export(c *fiber.Ctx) error {
	report, err := h.exports.Export(c.UserContext(), letterQuery(c, auth.ActorFromContext(c), policy.ViewDashboard))
	if err != nil {
		return err
	}
	return sendDownload(c, report.Filename, report.ContentType, report.Body)
}

// Detail GET /letters/:serial.
func (h *LettersHandler) Detail(c *fiber.Ctx) error {
	serial, err := serialParam(c)
	if err != nil {
		return err
	}
	letter, err := h.query.Get(c.UserContext(), auth.ActorFromContext(c), serial)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LetterFromDomain(letter, lettersBasePath)})
}

// Reply POST /letters/:serial/reply.
func (h *LettersHandler) Reply(c *fiber.Ctx) error {
	serial, err := serialParam(c)
	if err != nil {
		return err
	}
	uploads, closeUploads, err := attachmentUploads(c)
	if err != nil {
		return err
	}
	defer closeUploads()

	result, err := h.replies.Submit(c.UserContext(), auth.ActorFromContext(c), serial, service.ReplyRequest{
		MarkReplied: formBool(c, "mark_replied"),
		RepliedAt:   c.FormValue("replied_at"),
		Attachments: uploads,
	})
	if result == nil {
		return err
	}
	slots := result.UpdatedSlots
	if slots == nil {
		slots = []int{}
	}
	body := dto.ReplyResponse{
		Letter:         dto.LetterFromDomain(result.Letter, lettersBasePath),
		Transitioned:   result.Transitioned,
		AlreadyReplied: result.AlreadyReplied,
		UpdatedSlots:   slots,
	}
	if err != nil {
		return committedWithError(c, body, err)
	}
	return c.JSON(fiber.Map{"data": body})
}

// Attachment GET /letters/:serial/attachments/:slot.
func (h *LettersHandler) Attachment(c *fiber.Ctx) error {
	serial, err := serialParam(c)
	if err != nil {
		return err
	}
	slot, err := slotParam(c)
	if err != nil {
		return err
	}
	att, body, err := h.replies.OpenAttachment(c.UserContext(), auth.ActorFromContext(c), serial, slot)
	if err != nil {
		return err
	}

	contentType := att.MimeType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, contentDisposition(att.FileName))
	// fasthttp closes the stream once the body has been written.
	return c.SendStream(body)
}

func letterPage(page *service.LetterPage, basePath string) dto.LetterPageResponse {
	return dto.LetterPageResponse{
		Letters:    dto.LettersFromDomain(page.Letters, basePath),
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		Counts: dto.ReplyCountsResponse{
			Total:    page.Counts.Total,
			Resolved: page.Counts.Resolved,
			Pending:  page.Counts.Pending,
		},
		Filters: dto.FiltersResponse{
			Sector:     page.Filters.Sector,
			Query:      page.Filters.Query,
			SearchType: page.Filters.SearchType,
		},
	}
}
