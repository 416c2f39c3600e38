package chat

import "storefront-chat/internal/domain"

// MessageList is the ordered message collection of one open conversation.
// No two entries share an ID. It is not safe for concurrent use.
type MessageList struct {
	items []domain.Message
	index map[string]int
}

func NewMessageList() *MessageList {
	return &MessageList{index: make(map[string]int)}
}

// Replace resets the list to history, keeping server order. Repeated IDs
// keep their first occurrence.
func (l *MessageList) Replace(history []domain.Message) {
	l.items = make([]domain.Message, 0, len(history))
	l.index = make(map[string]int, len(history))
	for _, m := range history {
		l.Insert(m)
	}
}

// Insert appends m unless an entry with the same ID exists.
func (l *MessageList) Insert(m domain.Message) bool {
	if _, ok := l.index[m.ID]; ok {
		return false
	}
	l.index[m.ID] = len(l.items)
	l.items = append(l.items, m)
	return true
}

func (l *MessageList) Get(id string) (domain.Message, bool) {
	i, ok := l.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return l.items[i], true
}

func (l *MessageList) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Confirm replaces the optimistic entry tempID with its server copy, in
// place. When the server copy is already listed the optimistic entry is
// dropped instead.
func (l *MessageList) Confirm(tempID string, server domain.Message) bool {
	i, ok := l.index[tempID]
	if !ok {
		return false
	}
	if server.ClientMessageID == "" {
		server.ClientMessageID = l.items[i].ClientMessageID
	}
	server.State = domain.DeliveryStateSent

	if server.ID != tempID && l.Has(server.ID) {
		l.remove(i)
		return true
	}
	delete(l.index, tempID)
	l.items[i] = server
	l.index[server.ID] = i
	return true
}

func (l *MessageList) MarkFailed(id string) bool {
	return l.setState(id, domain.DeliveryStateFailed)
}

func (l *MessageList) MarkPending(id string) bool {
	return l.setState(id, domain.DeliveryStatePending)
}

func (l *MessageList) setState(id string, state domain.DeliveryState) bool {
	i, ok := l.index[id]
	if !ok {
		return false
	}
	l.items[i].State = state
	return true
}

func (l *MessageList) Len() int {
	return len(l.items)
}

func (l *MessageList) Snapshot() []domain.Message {
	out := make([]domain.Message, len(l.items))
	copy(out, l.items)
	return out
}

func (l *MessageList) remove(i int) {
	delete(l.index, l.items[i].ID)
	l.items = append(l.items[:i], l.items[i+1:]...)
	for j := i; j < len(l.items); j++ {
		l.index[l.items[j].ID] = j
	}
}
