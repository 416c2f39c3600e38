package httpdto

import (
	"bytes"
	"encoding/json"
	"time"

	"storefront-chat/internal/domain"
	chat_errors "storefront-chat/pkg/errors"
)

// Message is the persisted message shape shared by history, send and
// realtime receive.
type Message struct {
	ID              string    `json:"_id"`
	SenderID        string    `json:"senderId"`
	SenderRole      string    `json:"senderRole,omitempty"`
	ReceiverID      string    `json:"receiverId"`
	ReceiverRole    string    `json:"receiverRole,omitempty"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
	ClientMessageID string    `json:"clientMessageId,omitempty"`
}

type SendMessageRequest struct {
	SenderID        string `json:"senderId" binding:"required"`
	SenderRole      string `json:"senderRole" binding:"required"`
	ReceiverID      string `json:"receiverId" binding:"required"`
	ReceiverRole    string `json:"receiverRole" binding:"required"`
	Text            string `json:"text" binding:"required"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

func (m Message) Validate() error {
	switch {
	case m.ID == "":
		return &chat_errors.DecodeError{Kind: "message", Field: "_id", Reason: "missing"}
	case m.SenderID == "":
		return &chat_errors.DecodeError{Kind: "message", Field: "senderId", Reason: "missing"}
	case m.ReceiverID == "":
		return &chat_errors.DecodeError{Kind: "message", Field: "receiverId", Reason: "missing"}
	case m.CreatedAt.IsZero():
		return &chat_errors.DecodeError{Kind: "message", Field: "createdAt", Reason: "missing"}
	}
	if m.SenderRole != "" && !domain.Role(m.SenderRole).Valid() {
		return &chat_errors.DecodeError{Kind: "message", Field: "senderRole", Reason: "unknown role " + m.SenderRole}
	}
	if m.ReceiverRole != "" && !domain.Role(m.ReceiverRole).Valid() {
		return &chat_errors.DecodeError{Kind: "message", Field: "receiverRole", Reason: "unknown role " + m.ReceiverRole}
	}
	return nil
}

func (m Message) ToDomain() domain.Message {
	return domain.Message{
		ID:              m.ID,
		SenderID:        m.SenderID,
		SenderRole:      domain.Role(m.SenderRole),
		ReceiverID:      m.ReceiverID,
		ReceiverRole:    domain.Role(m.ReceiverRole),
		Text:            m.Text,
		CreatedAt:       m.CreatedAt,
		ClientMessageID: m.ClientMessageID,
		State:           domain.DeliveryStateSent,
	}
}

func MessageFromDomain(m domain.Message) Message {
	return Message{
		ID:              m.ID,
		SenderID:        m.SenderID,
		SenderRole:      string(m.SenderRole),
		ReceiverID:      m.ReceiverID,
		ReceiverRole:    string(m.ReceiverRole),
		Text:            m.Text,
		CreatedAt:       m.CreatedAt,
		ClientMessageID: m.ClientMessageID,
	}
}

func SendRequestFromOutgoing(out domain.OutgoingMessage) SendMessageRequest {
	return SendMessageRequest{
		SenderID:        out.Sender.UserID,
		SenderRole:      string(out.Sender.Role),
		ReceiverID:      out.Receiver.UserID,
		ReceiverRole:    string(out.Receiver.Role),
		Text:            out.Text,
		ClientMessageID: out.ClientMessageID,
	}
}

func (r SendMessageRequest) ToOutgoing() (domain.OutgoingMessage, error) {
	senderRole, err := domain.ParseRole(r.SenderRole)
	if err != nil {
		return domain.OutgoingMessage{}, err
	}
	receiverRole, err := domain.ParseRole(r.ReceiverRole)
	if err != nil {
		return domain.OutgoingMessage{}, err
	}
	return domain.OutgoingMessage{
		Sender:          domain.Participant{UserID: r.SenderID, Role: senderRole},
		Receiver:        domain.Participant{UserID: r.ReceiverID, Role: receiverRole},
		Text:            r.Text,
		ClientMessageID: r.ClientMessageID,
	}, nil
}

// DecodeMessage strictly decodes a single message object.
func DecodeMessage(data []byte) (domain.Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Message{}, &chat_errors.DecodeError{Kind: "message", Err: err}
	}
	if err := m.Validate(); err != nil {
		return domain.Message{}, err
	}
	return m.ToDomain(), nil
}

// DecodeMessages strictly decodes a history array. Anything but a JSON array
// is rejected.
func DecodeMessages(data []byte) ([]domain.Message, error) {
	if !isArray(data) {
		return nil, &chat_errors.DecodeError{Kind: "messages", Reason: "expected array"}
	}
	var items []Message
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &chat_errors.DecodeError{Kind: "messages", Err: err}
	}
	out := make([]domain.Message, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		out = append(out, item.ToDomain())
	}
	return out, nil
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
