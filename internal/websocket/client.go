package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one realtime connection.
type Client struct {
	ID      string
	Subject string // authenticated user id, empty when auth is off
	Conn    *websocket.Conn
	Send    chan []byte

	limiter *rate.Limiter

	mu    sync.RWMutex
	rooms map[string]bool
}

func NewClient(conn *websocket.Conn, subject string, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Subject: subject,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		limiter: limiter,
		rooms:   make(map[string]bool),
	}
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

func (c *Client) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[room]
}

func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Allow reports whether the client may send another message now.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// WriteLoop drains Send to the connection and pings on an interval. It
// returns when Send is closed, a write fails or ctx ends.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg without blocking. A full queue drops the message.
func (c *Client) SendMessage(msg []byte) (queued bool) {
	defer func() {
		// Send may already be closed by the hub.
		if recover() != nil {
			queued = false
		}
	}()
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
