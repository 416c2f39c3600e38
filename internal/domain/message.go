package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const TempIDPrefix = "tmp-"

type Message struct {
	ID              string
	SenderID        string
	SenderRole      Role
	ReceiverID      string
	ReceiverRole    Role
	Text            string
	CreatedAt       time.Time
	ClientMessageID string
	State           DeliveryState
}

// Participant is one side of a realtime send.
type Participant struct {
	UserID string
	Role   Role
}

// OutgoingMessage is what a sender emits over the realtime channel and
// persists over REST.
type OutgoingMessage struct {
	Sender          Participant
	Receiver        Participant
	Text            string
	ClientMessageID string
}

// NewTempID returns a placeholder id that can never collide with a
// server-assigned one.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Between reports whether m was sent by from to to.
func (m Message) Between(from, to string) bool {
	return m.SenderID == from && m.ReceiverID == to
}

func (m Message) IsTemporary() bool {
	return IsTemporaryID(m.ID)
}

// Outgoing rebuilds the send payload of an optimistic entry.
func (m Message) Outgoing() OutgoingMessage {
	return OutgoingMessage{
		Sender:          Participant{UserID: m.SenderID, Role: m.SenderRole},
		Receiver:        Participant{UserID: m.ReceiverID, Role: m.ReceiverRole},
		Text:            m.Text,
		ClientMessageID: m.ClientMessageID,
	}
}
