package websocket

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opJoin
	opLeave
)

// hubOp is one membership change. All changes go through a single queue so
// a client's register, joins and unregister apply in the order sent.
type hubOp struct {
	kind   opKind
	client *Client
	room   string
}

// Hub tracks connected clients and the rooms they joined. A room is named
// after the user it delivers to.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// rooms maps room name to the set of clients in it
	rooms map[string]map[*Client]struct{}

	ops chan hubOp

	connected prometheus.Gauge
}

// NewHub creates a hub. connected may be nil.
func NewHub(connected prometheus.Gauge) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		rooms:     make(map[string]map[*Client]struct{}),
		ops:       make(chan hubOp, 512),
		connected: connected,
	}
}

// Run processes registrations and room changes until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-h.ops:
			switch op.kind {
			case opRegister:
				h.addClient(op.client)
			case opUnregister:
				h.removeClient(op.client)
			case opJoin:
				h.joinRoom(op.client, op.room)
			case opLeave:
				h.leaveRoom(op.client, op.room)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.ops <- hubOp{kind: opRegister, client: client}
}

func (h *Hub) Unregister(client *Client) {
	h.ops <- hubOp{kind: opUnregister, client: client}
}

func (h *Hub) Join(client *Client, room string) {
	h.ops <- hubOp{kind: opJoin, client: client, room: room}
}

func (h *Hub) Leave(client *Client, room string) {
	h.ops <- hubOp{kind: opLeave, client: client, room: room}
}

// Broadcast queues payload for every client in room.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.rooms[room] {
		if c.SendMessage(payload) {
			n++
		}
	}
	return n
}

// Push delivers frame to room on this instance.
func (h *Hub) Push(_ context.Context, room string, frame []byte) error {
	h.Broadcast(room, frame)
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	if h.connected != nil {
		h.connected.Inc()
	}
}

// removeClient drops client from every room and closes its send queue.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, room := range client.Rooms() {
		h.removeFromRoom(client, room)
	}
	delete(h.clients, client.ID)
	close(client.Send)
	if h.connected != nil {
		h.connected.Dec()
	}
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	// A connection listens on one room; joining another moves it.
	for _, current := range client.Rooms() {
		if current != room {
			h.removeFromRoom(client, current)
		}
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.addRoom(room)
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(client, room)
}

func (h *Hub) removeFromRoom(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}
