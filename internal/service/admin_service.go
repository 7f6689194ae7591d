package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/policy"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/storage"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

const (
	maxSerialLength   = 32
	maxSenderLength   = 200
	maxTypeLength     = 200
	maxOfficerLength  = 50
	maxUsernameLength = 150
)

// LetterInput is the admin letter form. Text fields arrive raw and are validated together.
type LetterInput struct {
	SerialNumber       string
	DateReceived       string
	SenderName         string
	SenderAddress      string
	LetterType         string
	TargetSector       string
	AdministeredBy     string
	AcceptingOfficerID string
	IsReplied          bool
	RepliedAt          string
	Attachments        map[int]Upload
	ClearSlots         []int
}

// UserInput is the admin account form. A blank password keeps the current hash on update.
type UserInput struct {
	Username  string
	FirstName string
	LastName  string
	Password  string
	Sector    string
}

// DeleteUserResult reports whether the account was actually removed.
type DeleteUserResult struct {
	Deleted bool
	User    *domain.User
}

// AdminService implements superuser-only management of letters and accounts.
type AdminService struct {
	letters    repository.LetterRepository
	users      repository.UserRepository
	sessions   auth.SessionStore
	blobs      storage.BlobStore
	query      *LetterQueryService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	clock      Clock
	location   *time.Location
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	LetterRepo repository.LetterRepository
	UserRepo   repository.UserRepository
	Sessions   auth.SessionStore
	Blobs      storage.BlobStore
	Query      *LetterQueryService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	BcryptCost int
	Clock      Clock
	Location   *time.Location
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	query := deps.Query
	if query == nil {
		query = NewLetterQueryService(deps.LetterRepo)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &AdminService{
		letters:    deps.LetterRepo,
		users:      deps.UserRepo,
		sessions:   deps.Sessions,
		blobs:      deps.Blobs,
		query:      query,
		dispatcher: deps.Dispatcher,
		logger:     nopLogger(deps.Logger),
		bcryptCost: deps.BcryptCost,
		clock:      orNow(deps.Clock),
		location:   loc,
	}
}

// ListLetters is the admin dashboard; sector may be ALL or any single sector.
func (s *AdminService) ListLetters(ctx context.Context, q LetterQuery) (*LetterPage, error) {
	q.View = policy.ViewAdmin
	return s.query.Dashboard(ctx, q)
}

// GetLetter loads one letter for a superuser.
func (s *AdminService) GetLetter(ctx context.Context, actor domain.Actor, serial string) (*domain.Letter, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	letter, err := s.letters.GetBySerial(ctx, strings.TrimSpace(serial))
	if err != nil {
		return nil, mapRepoError(err, "letter")
	}
	return letter, nil
}

// CreateLetter validates and stores a new letter with its initial attachments.
func (s *AdminService) CreateLetter(ctx context.Context, actor domain.Actor, input LetterInput) (*domain.Letter, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	letter, fields := s.parseLetter(input)
	if err := validateUploads(input.Attachments); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	exists, err := s.letters.Exists(ctx, letter.SerialNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, mapRepoError(repository.ErrDuplicateSerial, "letter")
	}

	if input.IsReplied {
		at, err := s.replyTime(input.RepliedAt)
		if err != nil {
			return nil, err
		}
		letter.Reply = domain.RepliedAt(at)
	}

	uploaded, err := uploadAll(ctx, s.blobs, letter.SerialNumber, input.Attachments, s.clock())
	if err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, keysOf(uploaded))
		return nil, err
	}
	letter.Attachments = domain.Attachments(uploaded)

	if err := s.letters.Create(ctx, letter); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, keysOf(uploaded))
		return nil, mapRepoError(err, "letter")
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventLetterCreated, letter.SerialNumber, actor,
		events.LetterChangedPayload{Sector: letter.TargetSector, Replied: letter.Reply.IsReplied()}))
	return letter, nil
}

// UpdateLetter rewrites any field, including the serial, inside the locked-row transaction.
func (s *AdminService) UpdateLetter(ctx context.Context, actor domain.Actor, serial string, input LetterInput) (*domain.Letter, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	serial = strings.TrimSpace(serial)
	next, fields := s.parseLetter(input)
	if err := validateUploads(input.Attachments); err != nil {
		return nil, err
	}
	for _, slot := range input.ClearSlots {
		if !domain.ValidSlot(slot) {
			fields["clear_slots"] = fmt.Sprintf("slot must be between 1 and %d", domain.MaxAttachmentSlots)
		}
	}
	var repliedAt *time.Time
	if input.IsReplied && strings.TrimSpace(input.RepliedAt) != "" {
		at, err := ParseReplyDate(input.RepliedAt, s.location)
		if err != nil {
			fields["replied_at"] = "enter a valid date"
		} else {
			repliedAt = &at
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	if next.SerialNumber != serial {
		exists, err := s.letters.Exists(ctx, next.SerialNumber)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, mapRepoError(repository.ErrDuplicateSerial, "letter")
		}
	}

	uploaded, err := uploadAll(ctx, s.blobs, next.SerialNumber, input.Attachments, s.clock())
	if err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, keysOf(uploaded))
		return nil, err
	}

	var (
		released   []string
		cleared    []int
		replacedAt []int
	)
	updated, err := s.letters.UpdateLocked(ctx, serial, func(locked *domain.Letter) error {
		released, cleared, replacedAt = released[:0], cleared[:0], replacedAt[:0]

		locked.SerialNumber = next.SerialNumber
		locked.DateReceived = next.DateReceived
		locked.SenderName = next.SenderName
		locked.SenderAddress = next.SenderAddress
		locked.LetterType = next.LetterType
		locked.TargetSector = next.TargetSector
		locked.AdministeredBy = next.AdministeredBy
		locked.AcceptingOfficerID = next.AcceptingOfficerID

		switch {
		case !input.IsReplied:
			locked.Reply = domain.Pending()
		case repliedAt != nil:
			locked.Reply = domain.RepliedAt(*repliedAt)
		case !locked.Reply.IsReplied():
			locked.Reply = domain.RepliedAt(s.clock())
		}

		for _, slot := range input.ClearSlots {
			if _, replacing := uploaded[slot]; replacing {
				continue
			}
			if prev, ok := locked.Attachments[slot]; ok {
				released = append(released, prev.StorageKey)
				cleared = append(cleared, slot)
				delete(locked.Attachments, slot)
			}
		}
		for slot, att := range uploaded {
			if prev, ok := locked.Attachments[slot]; ok {
				released = append(released, prev.StorageKey)
				replacedAt = append(replacedAt, slot)
			}
			locked.Attachments[slot] = att
		}
		return nil
	})
	if err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, keysOf(uploaded))
		return nil, mapRepoError(err, "letter")
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventLetterUpdated, updated.SerialNumber, actor,
		events.LetterChangedPayload{PreviousSerial: previousSerial(serial, updated.SerialNumber), Sector: updated.TargetSector, Replied: updated.Reply.IsReplied()}))
	if len(uploaded) > 0 || len(cleared) > 0 {
		added := make([]int, 0, len(uploaded))
		for slot := range uploaded {
			added = append(added, slot)
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventLetterAttachmentsUpdated, updated.SerialNumber, actor,
			events.AttachmentsUpdatedPayload{Added: added, Replaced: replacedAt, Cleared: cleared}))
	}

	if err := deleteBlobs(ctx, s.blobs, s.logger, released); err != nil {
		return updated, apperrors.NewResourceError("letter saved but an old attachment could not be removed", err)
	}
	return updated, nil
}

// DeleteLetter hard-deletes the letter and then removes every attachment blob. The database
// delete stays committed when blob removal fails.
func (s *AdminService) DeleteLetter(ctx context.Context, actor domain.Actor, serial string) error {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return err
	}
	deleted, err := s.letters.Delete(ctx, strings.TrimSpace(serial))
	if err != nil {
		return mapRepoError(err, "letter")
	}

	keys := make([]string, 0, len(deleted.Attachments))
	for _, slot := range deleted.Attachments.Slots() {
		keys = append(keys, deleted.Attachments[slot].StorageKey)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventLetterDeleted, deleted.SerialNumber, actor,
		events.LetterChangedPayload{Sector: deleted.TargetSector, Replied: deleted.Reply.IsReplied()}))

	if err := deleteBlobs(ctx, s.blobs, s.logger, keys); err != nil {
		return apperrors.NewResourceError("letter deleted but attachments could not be removed", err)
	}
	return nil
}

// ListUsers returns accounts ordered by username.
func (s *AdminService) ListUsers(ctx context.Context, actor domain.Actor, filter repository.UserFilter) ([]domain.User, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx, filter)
}

func (s *AdminService) GetUser(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}

// CreateUser creates a sector account. The password is mandatory and the account can never
// be a superuser or staff member.
func (s *AdminService) CreateUser(ctx context.Context, actor domain.Actor, input UserInput) (*domain.User, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	user := &domain.User{}
	fields := applyUserInput(user, input)
	if input.Password == "" {
		fields["password"] = "password is required for new accounts"
	} else if msg := passwordProblem(input.Password, 1); msg != "" {
		fields["password"] = msg
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	if _, err := s.users.GetByUsername(ctx, user.Username); err == nil {
		return nil, mapRepoError(repository.ErrDuplicateUsername, "user")
	} else if !isNotFound(err) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventUserCreated, user.ID, actor,
		events.UserChangedPayload{Username: user.Username, Sector: user.Sector}))
	return user, nil
}

// UpdateUser edits a sector account. Superuser accounts are refused because saving them
// through this path would demote them.
func (s *AdminService) UpdateUser(ctx context.Context, actor domain.Actor, id string, input UserInput) (*domain.User, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	if user.IsSuperuser {
		return nil, apperrors.NewForbidden("superuser accounts cannot be edited here")
	}

	fields := applyUserInput(user, input)
	if input.Password != "" {
		if msg := passwordProblem(input.Password, 1); msg != "" {
			fields["password"] = msg
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}
	if other, err := s.users.GetByUsername(ctx, user.Username); err == nil && other.ID != user.ID {
		return nil, mapRepoError(repository.ErrDuplicateUsername, "user")
	} else if err != nil && !isNotFound(err) {
		return nil, err
	}

	if input.Password != "" {
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventUserUpdated, user.ID, actor,
		events.UserChangedPayload{Username: user.Username, Sector: user.Sector}))
	return user, nil
}

// DeleteUser removes a non-superuser account and revokes its sessions. Superusers are
// left untouched and reported as not deleted.
func (s *AdminService) DeleteUser(ctx context.Context, actor domain.Actor, id string) (*DeleteUserResult, error) {
	if err := policy.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	if user.IsSuperuser {
		return &DeleteUserResult{Deleted: false, User: user}, nil
	}

	deleted, err := s.users.DeleteNonSuperuser(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	if !deleted {
		return &DeleteUserResult{Deleted: false, User: user}, nil
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, id); err != nil {
			s.logger.Warn("session revocation failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventUserDeleted, id, actor,
		events.UserChangedPayload{Username: user.Username, Sector: user.Sector}))
	return &DeleteUserResult{Deleted: true, User: user}, nil
}

// parseLetter validates every text field and returns the collected field errors.
func (s *AdminService) parseLetter(input LetterInput) (*domain.Letter, map[string]string) {
	fields := map[string]string{}
	letter := &domain.Letter{
		SerialNumber:       strings.TrimSpace(input.SerialNumber),
		SenderName:         strings.TrimSpace(input.SenderName),
		SenderAddress:      strings.TrimSpace(input.SenderAddress),
		LetterType:         strings.TrimSpace(input.LetterType),
		AcceptingOfficerID: strings.TrimSpace(input.AcceptingOfficerID),
		Attachments:        domain.Attachments{},
	}

	checkText(fields, "serial_number", letter.SerialNumber, maxSerialLength, true)
	if _, bad := fields["serial_number"]; !bad && reservedSerial(letter.SerialNumber) {
		fields["serial_number"] = "this serial number is reserved"
	}
	checkText(fields, "sender_name", letter.SenderName, maxSenderLength, true)
	checkText(fields, "letter_type", letter.LetterType, maxTypeLength, true)
	checkText(fields, "accepting_officer_id", letter.AcceptingOfficerID, maxOfficerLength, false)

	if raw := strings.TrimSpace(input.DateReceived); raw == "" {
		fields["date_received"] = "this field is required"
	} else if d, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err != nil {
		fields["date_received"] = "enter a valid date"
	} else {
		letter.DateReceived = d
	}

	if sector, ok := domain.ParseSector(input.TargetSector); ok {
		letter.TargetSector = sector
	} else {
		fields["target_sector"] = "select a valid sector"
	}
	if role, ok := domain.ParseOfficerRole(input.AdministeredBy); ok {
		letter.AdministeredBy = role
	} else {
		fields["administered_by"] = "select a valid officer"
	}
	return letter, fields
}

// reservedSerial reports serials that would be shadowed by fixed routes under /letters.
// Routing is case-insensitive.
func reservedSerial(serial string) bool {
	return strings.EqualFold(serial, "export")
}

// replyTime resolves the reply instant for a new letter marked replied; blank means now.
func (s *AdminService) replyTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.clock(), nil
	}
	at, err := ParseReplyDate(raw, s.location)
	if err != nil {
		return time.Time{}, apperrors.NewFieldError("replied_at", "enter a valid date")
	}
	return at, nil
}

func applyUserInput(user *domain.User, input UserInput) map[string]string {
	fields := map[string]string{}
	user.Username = strings.TrimSpace(input.Username)
	user.FirstName = strings.TrimSpace(input.FirstName)
	user.LastName = strings.TrimSpace(input.LastName)
	user.IsSuperuser = false
	user.IsStaff = false

	checkText(fields, "username", user.Username, maxUsernameLength, true)
	if strings.ContainsAny(user.Username, " \t\n") {
		fields["username"] = "username may not contain spaces"
	}

	user.Sector = nil
	if raw := strings.TrimSpace(input.Sector); raw != "" {
		if sector, ok := domain.ParseSector(raw); ok {
			user.Sector = &sector
		} else {
			fields["sector"] = "select a valid sector"
		}
	}
	return fields
}

func checkText(fields map[string]string, name, value string, limit int, required bool) {
	switch {
	case required && value == "":
		fields[name] = "this field is required"
	case utf8.RuneCountInString(value) > limit:
		fields[name] = fmt.Sprintf("ensure this value has at most %d characters", limit)
	}
}

func previousSerial(before, after string) string {
	if before == after {
		return ""
	}
	return before
}

func isNotFound(err error) bool {
	return apperrors.HasCode(mapRepoError(err, ""), apperrors.CodeNotFound)
}
