package domain

import (
	"sort"
	"time"
)

// MaxAttachmentSlots bounds the numbered attachment slots of a letter.
const MaxAttachmentSlots = 6

// ReplyState is either pending or replied at a given instant. The zero value is pending.
type ReplyState struct {
	at *time.Time
}

// Pending returns the unreplied state.
func Pending() ReplyState {
	return ReplyState{}
}

// RepliedAt returns the replied state stamped with at.
func RepliedAt(at time.Time) ReplyState {
	t := at
	return ReplyState{at: &t}
}

// ReplyStateFromColumns rebuilds the state from the persisted flag and timestamp.
// A row where the two disagree is treated as pending.
func ReplyStateFromColumns(isReplied bool, repliedAt *time.Time) ReplyState {
	if !isReplied || repliedAt == nil {
		return Pending()
	}
	return RepliedAt(*repliedAt)
}

func (r ReplyState) IsReplied() bool {
	return r.at != nil
}

// At returns the reply instant; ok is false while pending.
func (r ReplyState) At() (time.Time, bool) {
	if r.at == nil {
		return time.Time{}, false
	}
	return *r.at, true
}

// Columns returns the persisted (is_replied, replied_at) pair.
func (r ReplyState) Columns() (bool, *time.Time) {
	if r.at == nil {
		return false, nil
	}
	t := *r.at
	return true, &t
}

// Attachment references a stored blob occupying one slot.
type Attachment struct {
	Slot       int
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	UploadedAt time.Time
}

// Attachments maps slot numbers (1..MaxAttachmentSlots) to attachment references.
type Attachments map[int]Attachment

// ValidSlot reports whether slot is addressable.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= MaxAttachmentSlots
}

// Slots returns the occupied slot numbers in ascending order.
func (a Attachments) Slots() []int {
	slots := make([]int, 0, len(a))
	for slot := range a {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

// Clone copies the collection so callers can mutate it independently.
func (a Attachments) Clone() Attachments {
	out := make(Attachments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Letter is a record of incoming correspondence.
type Letter struct {
	SerialNumber       string
	DateReceived       time.Time
	SenderName         string
	SenderAddress      string
	LetterType         string
	TargetSector       Sector
	AdministeredBy     OfficerRole
	AcceptingOfficerID string
	Attachments        Attachments
	Reply              ReplyState
	CreatedAt          time.Time
}

// Clone returns a deep copy.
func (l *Letter) Clone() *Letter {
	cp := *l
	cp.Attachments = l.Attachments.Clone()
	return &cp
}

// ReplyCounts aggregates reply status over a filtered letter set.
type ReplyCounts struct {
	Total    int
	Resolved int
	Pending  int
}
