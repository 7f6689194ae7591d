package handlers

import (
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/service"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

// serialParam decodes the :serial route parameter. Serials contain slashes, so clients
// send them percent-encoded.
func serialParam(c *fiber.Ctx) (string, error) {
	serial, err := url.PathUnescape(c.Params("serial"))
	if err != nil || strings.TrimSpace(serial) == "" {
		return "", apperrors.NewValidationError("invalid serial number", nil)
	}
	return serial, nil
}

func slotParam(c *fiber.Ctx) (int, error) {
	slot, err := strconv.Atoi(c.Params("slot"))
	if err != nil || !domain.ValidSlot(slot) {
		return 0, apperrors.NewNotFound("attachment", nil)
	}
	return slot, nil
}

// letterQuery reads the shared listing parameters: sector, q, search_type and page.
func letterQuery(c *fiber.Ctx, actor domain.Actor, view policy.View) service.LetterQuery {
	return service.LetterQuery{
		Actor:      actor,
		View:       view,
		Sector:     c.Query("sector"),
		Query:      c.Query("q"),
		SearchType: c.Query("search_type"),
		Page:       c.QueryInt("page", 1),
	}
}

func formBool(c *fiber.Ctx, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.FormValue(key))) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

// attachmentUploads opens attachment_1..attachment_N from a multipart form. The returned
// closer must be called once the service has consumed the bodies.
func attachmentUploads(c *fiber.Ctx) (map[int]service.Upload, func(), error) {
	uploads := map[int]service.Upload{}
	opened := []multipart.File{}
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	if !isMultipart(c) {
		return uploads, closeAll, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, closeAll, apperrors.NewValidationError("invalid multipart form", nil)
	}
	for key, headers := range form.File {
		if !strings.HasPrefix(key, "attachment_") || len(headers) == 0 {
			continue
		}
		slot, err := strconv.Atoi(strings.TrimPrefix(key, "attachment_"))
		if err != nil || !domain.ValidSlot(slot) {
			closeAll()
			return nil, func() {}, apperrors.NewFieldError(key, fmt.Sprintf("slot must be between 1 and %d", domain.MaxAttachmentSlots))
		}
		header := headers[0]
		file, err := header.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, apperrors.NewFieldError(key, "could not read uploaded file")
		}
		opened = append(opened, file)
		uploads[slot] = service.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Size:        header.Size,
			Body:        file,
		}
	}
	return uploads, closeAll, nil
}

// clearedSlots reads clear_attachment_N checkboxes.
func clearedSlots(c *fiber.Ctx) []int {
	slots := []int{}
	for slot := 1; slot <= domain.MaxAttachmentSlots; slot++ {
		if formBool(c, fmt.Sprintf("clear_attachment_%d", slot)) {
			slots = append(slots, slot)
		}
	}
	return slots
}

func sendDownload(c *fiber.Ctx, fileName, contentType string, body []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, contentDisposition(fileName))
	return c.Send(body)
}

func contentDisposition(fileName string) string {
	fallback := strings.Map(func(r rune) rune {
		if r > 126 || r < 32 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, fileName)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, url.PathEscape(fileName))
}

// committedWithError renders a write that was saved while a follow-up blob cleanup failed.
// The body carries both the saved data and the error. Any other error is passed through.
func committedWithError(c *fiber.Ctx, data any, err error) error {
	if !apperrors.HasCode(err, apperrors.CodeResource) {
		return err
	}
	de := apperrors.ToDomainError(err)
	return c.Status(de.HTTPStatus).JSON(fiber.Map{
		"data":  data,
		"error": fiber.Map{"code": de.Code, "message": de.Message},
	})
}
