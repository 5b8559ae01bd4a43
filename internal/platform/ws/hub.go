// Package ws streams ledger and gate events to dashboard clients over
// WebSockets. Clients subscribe to event topics; the hub fans each published
// event out to the matching connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medcore/hims/internal/platform/events"
)

// Frame is the JSON envelope written to clients.
type Frame struct {
	Topic     string      `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// clientMessage is an inbound subscription change.
type clientMessage struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

// Client is a single WebSocket connection and its topic set.
type Client struct {
	id     string
	send   chan []byte
	mu     sync.Mutex
	topics map[string]bool // empty means all topics
}

func (c *Client) wants(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.topics) == 0 {
		return true
	}
	return c.topics[topic]
}

func (c *Client) setTopics(action string, topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		if action == "unsubscribe" {
			delete(c.topics, t)
		} else {
			c.topics[t] = true
		}
	}
}

// Hub tracks connected clients and broadcasts events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     logger,
	}
}

// Notify implements events.Observer: every published domain event is
// broadcast to the subscribed clients. A slow client is dropped rather than
// allowed to block the publishing request.
func (h *Hub) Notify(_ context.Context, event events.Event) {
	frame, err := json.Marshal(Frame{
		Topic:     event.Topic(),
		Timestamp: time.Now().UTC(),
		Data:      event,
	})
	if err != nil {
		h.log.Error().Err(err).Str("topic", event.Topic()).Msg("marshal event frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(event.Topic()) {
			continue
		}
		select {
		case client.send <- frame:
		default:
			h.log.Warn().Str("client_id", client.id).Msg("dropping slow websocket client")
			go h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades the connection and serves the event feed. Initial topics
// come from the repeated "topic" query parameter; clients may adjust their
// subscription by sending {"action":"subscribe","topics":[...]} messages.
func (h *Hub) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		client := &Client{
			id:     uuid.New().String(),
			send:   make(chan []byte, 64),
			topics: make(map[string]bool),
		}
		for _, t := range c.QueryParams()["topic"] {
			client.topics[t] = true
		}

		h.add(client)
		go h.writeLoop(client, conn)
		h.readLoop(client, conn)
		return nil
	}
}

func (h *Hub) writeLoop(client *Client, conn *gorillaws.Conn) {
	defer conn.Close()
	for msg := range client.send {
		if err := conn.WriteMessage(gorillaws.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) readLoop(client *Client, conn *gorillaws.Conn) {
	defer h.remove(client)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		client.setTopics(msg.Action, msg.Topics)
	}
}
