package httpdto

import (
	"encoding/json"

	"storefront-chat/internal/domain"
)

// Realtime event names.
const (
	EventJoinRoom       = "join-room"
	EventSendMessage    = "send-message"
	EventReceiveMessage = "receive-message"
	EventError          = "error"
)

// Envelope frames every realtime event on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRoomPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type ParticipantPayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type SendMessagePayload struct {
	Sender          ParticipantPayload `json:"sender"`
	Receiver        ParticipantPayload `json:"receiver"`
	Text            string             `json:"text"`
	ClientMessageID string             `json:"clientMessageId,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func NewEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func SendPayloadFromOutgoing(out domain.OutgoingMessage) SendMessagePayload {
	return SendMessagePayload{
		Sender:          ParticipantPayload{UserID: out.Sender.UserID, Role: string(out.Sender.Role)},
		Receiver:        ParticipantPayload{UserID: out.Receiver.UserID, Role: string(out.Receiver.Role)},
		Text:            out.Text,
		ClientMessageID: out.ClientMessageID,
	}
}

func (p SendMessagePayload) ToOutgoing() (domain.OutgoingMessage, error) {
	return SendMessageRequest{
		SenderID:        p.Sender.UserID,
		SenderRole:      p.Sender.Role,
		ReceiverID:      p.Receiver.UserID,
		ReceiverRole:    p.Receiver.Role,
		Text:            p.Text,
		ClientMessageID: p.ClientMessageID,
	}.ToOutgoing()
}
