package realtime

import (
	"time"

	"github.com/google/uuid"
)

// EventType distinguishes the two change-stream notifications: a contact
// whose membership or derived attributes changed, and a contact that was
// removed (search indexers drop it, the photo store may garbage-collect).
type EventType string

const (
	EventContactChanged EventType = "contact_changed"
	EventContactDeleted EventType = "contact_deleted"
)

// ChangeEvent is one entry in the change-notification stream, keyed by the
// touched contact id. Events are collected inside the mutating transaction
// and published only after commit.
type ChangeEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	ContactID int64     `json:"contact_id"`
	At        int64     `json:"at"`
}

func NewChangeEvent(typ EventType, contactID int64) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.New(),
		Type:      typ,
		ContactID: contactID,
		At:        time.Now().UnixMilli(),
	}
}
