package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/letter-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLetterCreated            EventType = "letter.created"
	EventLetterUpdated            EventType = "letter.updated"
	EventLetterDeleted            EventType = "letter.deleted"
	EventLetterReplied            EventType = "letter.replied"
	EventLetterAttachmentsUpdated EventType = "letter.attachments_updated"
	EventUserCreated              EventType = "user.created"
	EventUserUpdated              EventType = "user.updated"
	EventUserDeleted              EventType = "user.deleted"
	EventSessionStarted           EventType = "session.started"
	EventSessionEnded             EventType = "session.ended"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string           `json:"user_id,omitempty"`
	Username string           `json:"username,omitempty"`
	Kind     domain.ActorKind `json:"kind"`
	Sector   domain.Sector    `json:"sector,omitempty"`
}

// ActorOf snapshots a request actor for auditing.
func ActorOf(a domain.Actor) Actor {
	return Actor{UserID: a.UserID, Username: a.Username, Kind: a.Kind(), Sector: a.SectorCode()}
}

// Event represents a domain event emitted by services. Subject is a letter serial or a user id.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subject string, actor domain.Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Actor:     ActorOf(actor),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LetterRepliedPayload payload.
type LetterRepliedPayload struct {
	Sector    domain.Sector `json:"sector"`
	RepliedAt time.Time     `json:"replied_at"`
}

// AttachmentsUpdatedPayload payload.
type AttachmentsUpdatedPayload struct {
	Replaced []int `json:"replaced,omitempty"`
	Added    []int `json:"added,omitempty"`
	Cleared  []int `json:"cleared,omitempty"`
}

// LetterChangedPayload payload.
type LetterChangedPayload struct {
	PreviousSerial string        `json:"previous_serial,omitempty"`
	Sector         domain.Sector `json:"sector"`
	Replied        bool          `json:"replied"`
}

// UserChangedPayload payload.
type UserChangedPayload struct {
	Username string         `json:"username"`
	Sector   *domain.Sector `json:"sector,omitempty"`
}
