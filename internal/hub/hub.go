// Package hub pushes refresh and rules events to connected dashboards over
// websocket.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "meetlens/internal/log"
)

// MessageType identifies the type of websocket message.
type MessageType string

const (
	TypeStatisticsUpdated MessageType = "statistics.updated"
	TypeRefreshFailed     MessageType = "refresh.failed"
	TypeRulesChanged      MessageType = "rules.changed"
	TypePreferencesSaved  MessageType = "preferences.saved"
)

// Message is the envelope every push uses.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

func NewMessage(t MessageType, payload any) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

const sendBuffer = 32

// Hub maintains the set of active clients and broadcasts messages. All
// client bookkeeping happens on the Run goroutine.
type Hub struct {
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

func New() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every client. Run must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	clients := make(map[*Client]struct{})
	drop := func(c *Client) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
		}
		h.setCount(len(clients))
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				drop(c)
			}
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.setCount(len(clients))
			appLog.Debug("websocket client connected", "total", len(clients))
		case c := <-h.unregister:
			drop(c)
			appLog.Debug("websocket client disconnected", "total", len(clients))
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// Slow reader; its write pump sees the closed channel and hangs up.
					drop(c)
				}
			}
		}
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish encodes a message and queues it for every client. It never
// blocks; when the queue is full the message is dropped.
func (h *Hub) Publish(t MessageType, payload any) {
	data, err := json.Marshal(NewMessage(t, payload))
	if err != nil {
		appLog.Error("websocket message encode failed", err, "type", string(t))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		appLog.Warn("websocket broadcast queue full, dropping message", "type", string(t))
	}
}

// Client is one websocket connection's outbound queue.
type Client struct {
	send chan []byte
}

func newClient() *Client {
	return &Client{send: make(chan []byte, sendBuffer)}
}
