package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/observability"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/storage"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

// Upload is one attachment file supplied with a request.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ReplyRequest is the sector actor's reply form. Only supplied slots are overwritten.
type ReplyRequest struct {
	MarkReplied bool
	RepliedAt   string
	Attachments map[int]Upload
}

// ReplyResult reports what the workflow changed.
type ReplyResult struct {
	Letter         *domain.Letter
	Transitioned   bool
	AlreadyReplied bool
	UpdatedSlots   []int
}

var replyDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseReplyDate accepts a date or a local date-time, interpreted in loc, or an RFC 3339 timestamp.
func ParseReplyDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range replyDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ReplyWorkflow marks letters replied and attaches files on behalf of sector actors.
type ReplyWorkflow struct {
	letters    repository.LetterRepository
	blobs      storage.BlobStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock
	location   *time.Location
}

// ReplyDependencies bundles collaborators for the reply workflow.
type ReplyDependencies struct {
	LetterRepo repository.LetterRepository
	Blobs      storage.BlobStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
	Location   *time.Location
}

// NewReplyWorkflow constructs the workflow.
func NewReplyWorkflow(deps ReplyDependencies) *ReplyWorkflow {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ReplyWorkflow{
		letters:    deps.LetterRepo,
		blobs:      deps.Blobs,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     nopLogger(deps.Logger),
		clock:      orNow(deps.Clock),
		location:   loc,
	}
}

// Submit authorizes, validates, uploads and then commits the reply in one locked transaction.
// A letter that is already replied keeps its original timestamp.
func (w *ReplyWorkflow) Submit(ctx context.Context, actor domain.Actor, serial string, req ReplyRequest) (*ReplyResult, error) {
	serial = strings.TrimSpace(serial)
	letter, err := w.letters.GetBySerial(ctx, serial)
	if err != nil {
		return nil, mapRepoError(err, "letter")
	}
	if err := policy.AuthorizeReply(actor, letter); err != nil {
		w.metrics.RecordAccessDenied("reply")
		return nil, err
	}

	var repliedAt time.Time
	if req.MarkReplied {
		if strings.TrimSpace(req.RepliedAt) == "" {
			return nil, apperrors.NewFieldError("replied_at", "reply date is required")
		}
		repliedAt, err = ParseReplyDate(req.RepliedAt, w.location)
		if err != nil {
			return nil, apperrors.NewFieldError("replied_at", "enter a valid date")
		}
	}
	if err := validateUploads(req.Attachments); err != nil {
		return nil, err
	}

	if !req.MarkReplied && len(req.Attachments) == 0 {
		return &ReplyResult{Letter: letter, AlreadyReplied: letter.Reply.IsReplied()}, nil
	}

	uploaded, err := uploadAll(ctx, w.blobs, serial, req.Attachments, w.clock())
	if err != nil {
		w.discard(ctx, keysOf(uploaded))
		return nil, err
	}

	var (
		replaced       []string
		transitioned   bool
		alreadyReplied bool
	)
	updated, err := w.letters.UpdateLocked(ctx, serial, func(locked *domain.Letter) error {
		replaced = replaced[:0]
		transitioned, alreadyReplied = false, false

		if err := policy.AuthorizeReply(actor, locked); err != nil {
			return err
		}
		for slot, att := range uploaded {
			if prev, ok := locked.Attachments[slot]; ok {
				replaced = append(replaced, prev.StorageKey)
			}
			locked.Attachments[slot] = att
		}
		if req.MarkReplied {
			if locked.Reply.IsReplied() {
				alreadyReplied = true
			} else {
				locked.Reply = domain.RepliedAt(repliedAt)
				transitioned = true
			}
		}
		return nil
	})
	if err != nil {
		w.discard(ctx, keysOf(uploaded))
		if apperrors.HasCode(err, apperrors.CodeAccessDenied) {
			w.metrics.RecordAccessDenied("reply")
		}
		return nil, mapRepoError(err, "letter")
	}

	slots := make([]int, 0, len(uploaded))
	for slot := range uploaded {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	if transitioned {
		w.metrics.RecordReplyTransition(string(updated.TargetSector))
		publishEvent(ctx, w.dispatcher, w.logger, events.New(events.EventLetterReplied, updated.SerialNumber, actor,
			events.LetterRepliedPayload{Sector: updated.TargetSector, RepliedAt: repliedAt}))
	}
	if len(slots) > 0 {
		publishEvent(ctx, w.dispatcher, w.logger, events.New(events.EventLetterAttachmentsUpdated, updated.SerialNumber, actor,
			events.AttachmentsUpdatedPayload{Added: slots}))
	}

	result := &ReplyResult{
		Letter:         updated,
		Transitioned:   transitioned,
		AlreadyReplied: alreadyReplied,
		UpdatedSlots:   slots,
	}
	if err := deleteBlobs(ctx, w.blobs, w.logger, replaced); err != nil {
		return result, apperrors.NewResourceError("reply saved but an old attachment could not be removed", err)
	}
	return result, nil
}

// OpenAttachment streams one attachment after checking read access.
func (w *ReplyWorkflow) OpenAttachment(ctx context.Context, actor domain.Actor, serial string, slot int) (domain.Attachment, io.ReadCloser, error) {
	letter, err := w.letters.GetBySerial(ctx, strings.TrimSpace(serial))
	if err != nil {
		return domain.Attachment{}, nil, mapRepoError(err, "letter")
	}
	if err := policy.AuthorizeRead(actor, letter); err != nil {
		w.metrics.RecordAccessDenied("attachment")
		return domain.Attachment{}, nil, err
	}
	att, ok := letter.Attachments[slot]
	if !ok {
		return domain.Attachment{}, nil, apperrors.NewNotFound("attachment", map[string]any{"slot": slot})
	}
	body, err := w.blobs.Open(ctx, att.StorageKey)
	if errors.Is(err, storage.ErrBlobNotFound) {
		w.logger.Warn("attachment blob missing", zap.String("serial", letter.SerialNumber), zap.Int("slot", slot), zap.String("key", att.StorageKey))
		return domain.Attachment{}, nil, apperrors.NewNotFound("attachment", map[string]any{"slot": slot})
	}
	if err != nil {
		return domain.Attachment{}, nil, apperrors.NewResourceError("attachment could not be read", err)
	}
	return att, body, nil
}

func (w *ReplyWorkflow) discard(ctx context.Context, keys []string) {
	deleteBlobs(ctx, w.blobs, w.logger, keys)
}

func validateUploads(uploads map[int]Upload) error {
	fields := map[string]string{}
	for slot, up := range uploads {
		name := fmt.Sprintf("attachment_%d", slot)
		switch {
		case !domain.ValidSlot(slot):
			fields[name] = fmt.Sprintf("slot must be between 1 and %d", domain.MaxAttachmentSlots)
		case up.Body == nil || strings.TrimSpace(up.FileName) == "":
			fields[name] = "file is empty"
		}
	}
	if len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

// uploadAll writes every upload and returns the attachment references keyed by slot. On
// failure the references uploaded so far are returned so the caller can discard them.
func uploadAll(ctx context.Context, blobs storage.BlobStore, serial string, uploads map[int]Upload, now time.Time) (map[int]domain.Attachment, error) {
	slots := make([]int, 0, len(uploads))
	for slot := range uploads {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	done := make(map[int]domain.Attachment, len(uploads))
	for _, slot := range slots {
		up := uploads[slot]
		contentType := up.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		key := storage.AttachmentKey(serial, slot, up.FileName)
		if err := blobs.Put(ctx, key, up.Body, up.Size, contentType); err != nil {
			return done, apperrors.NewResourceError(fmt.Sprintf("attachment %d could not be stored", slot), err)
		}
		done[slot] = domain.Attachment{
			Slot:       slot,
			StorageKey: key,
			FileName:   strings.TrimSpace(up.FileName),
			MimeType:   contentType,
			SizeBytes:  up.Size,
			UploadedAt: now,
		}
	}
	return done, nil
}

func keysOf(atts map[int]domain.Attachment) []string {
	keys := make([]string, 0, len(atts))
	for _, att := range atts {
		keys = append(keys, att.StorageKey)
	}
	return keys
}

// deleteBlobs removes keys best-effort and returns the first failure.
func deleteBlobs(ctx context.Context, blobs storage.BlobStore, logger *zap.Logger, keys []string) error {
	var first error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			logger.Warn("blob cleanup failed", zap.String("key", key), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
