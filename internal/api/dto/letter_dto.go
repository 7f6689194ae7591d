package dto

import (
	"time"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/repository"
)

// AttachmentResponse metadata for one occupied slot.
type AttachmentResponse struct {
	Slot       int       `json:"slot"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
	URL        string    `json:"url"`
}

// LetterResponse is the full letter representation.
type LetterResponse struct {
	SerialNumber       string               `json:"serial_number"`
	DateReceived       string               `json:"date_received"`
	SenderName         string               `json:"sender_name"`
	SenderAddress      string               `json:"sender_address"`
	LetterType         string               `json:"letter_type"`
	TargetSector       domain.Sector        `json:"target_sector"`
	TargetSectorLabel  string               `json:"target_sector_label"`
	AdministeredBy     domain.OfficerRole   `json:"administered_by"`
	AdministeredLabel  string               `json:"administered_by_label"`
	AcceptingOfficerID string               `json:"accepting_officer_id"`
	IsReplied          bool                 `json:"is_replied"`
	RepliedAt          *time.Time           `json:"replied_at"`
	Attachments        []AttachmentResponse `json:"attachments"`
	CreatedAt          time.Time            `json:"created_at"`
}

// ReplyCountsResponse summarizes the filtered set.
type ReplyCountsResponse struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}

// FiltersResponse echoes the effective filters.
type FiltersResponse struct {
	Sector     string                `json:"sector"`
	Query      string                `json:"q"`
	SearchType repository.SearchType `json:"search_type"`
}

// LetterPageResponse is one dashboard page.
type LetterPageResponse struct {
	Letters    []LetterResponse    `json:"letters"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
	Counts     ReplyCountsResponse `json:"counts"`
	Filters    FiltersResponse     `json:"filters"`
}

// ReplyResponse reports the outcome of a reply submission.
type ReplyResponse struct {
	Letter         LetterResponse `json:"letter"`
	Transitioned   bool           `json:"transitioned"`
	AlreadyReplied bool           `json:"already_replied"`
	UpdatedSlots   []int          `json:"updated_slots"`
}

// LetterFromDomain maps a letter; attachment URLs are rooted at basePath.
func LetterFromDomain(letter *domain.Letter, basePath string) LetterResponse {
	resp := LetterResponse{
		SerialNumber:       letter.SerialNumber,
		DateReceived:       letter.DateReceived.Format("2006-01-02"),
		SenderName:         letter.SenderName,
		SenderAddress:      letter.SenderAddress,
		LetterType:         letter.LetterType,
		TargetSector:       letter.TargetSector,
		TargetSectorLabel:  letter.TargetSector.Label(),
		AdministeredBy:     letter.AdministeredBy,
		AdministeredLabel:  letter.AdministeredBy.Label(),
		AcceptingOfficerID: letter.AcceptingOfficerID,
		IsReplied:          letter.Reply.IsReplied(),
		Attachments:        make([]AttachmentResponse, 0, len(letter.Attachments)),
		CreatedAt:          letter.CreatedAt,
	}
	if at, ok := letter.Reply.At(); ok {
		resp.RepliedAt = &at
	}
	for _, slot := range letter.Attachments.Slots() {
		att := letter.Attachments[slot]
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			Slot:       slot,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
			UploadedAt: att.UploadedAt,
			URL:        AttachmentURL(basePath, letter.SerialNumber, slot),
		})
	}
	return resp
}

// LettersFromDomain maps a slice of letters.
func LettersFromDomain(letters []domain.Letter, basePath string) []LetterResponse {
	out := make([]LetterResponse, 0, len(letters))
	for i := range letters {
		out = append(out, LetterFromDomain(&letters[i], basePath))
	}
	return out
}
