// Package display serves the transcript to browser clients over WebSocket
// and accepts discrete controls from them.
package display

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eytandecker/skytour/internal/transcript"
	"github.com/eytandecker/skytour/internal/voice"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 20 // audio utterances arrive as binary frames
	sendBuffer     = 64
)

// Controls receives input from display clients. *voice.Machine
// implements it.
type Controls interface {
	Trigger(t voice.Trigger) bool
	SubmitText(text string) bool
	SubmitAudio(audio []byte) bool
}

// Message is the JSON envelope used in both directions.
type Message struct {
	Type  string            `json:"type"`
	Event *transcript.Event `json:"event,omitempty"`
	Name  string            `json:"name,omitempty"` // trigger name
	Text  string            `json:"text,omitempty"`
	Error string            `json:"error,omitempty"`
	OK    *bool             `json:"ok,omitempty"`
}

// Message types.
const (
	TypeTranscript = "transcript"
	TypeTrigger    = "trigger"
	TypeText       = "text"
	TypeAck        = "ack"
	TypeError      = "error"
)

// Hub fans transcript events out to connected clients and keeps a short
// history for clients that connect later. It implements transcript.Sink.
type Hub struct {
	controls Controls
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu         sync.Mutex
	clients    map[*client]struct{}
	history    []transcript.Event
	historyCap int
}

var _ transcript.Sink = (*Hub)(nil)

// NewHub creates a Hub replaying up to historySize events to new clients.
// controls may be nil for a read-only display.
func NewHub(controls Controls, historySize int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		controls:   controls,
		logger:     logger.With("component", "display"),
		upgrader:   websocket.Upgrader{EnableCompression: false},
		clients:    make(map[*client]struct{}),
		historyCap: historySize,
	}
}

// Deliver broadcasts e to every client. A client too slow to keep up is
// disconnected rather than allowed to stall the others.
func (h *Hub) Deliver(e transcript.Event) {
	data, err := json.Marshal(Message{Type: TypeTranscript, Event: &e})
	if err != nil {
		h.logger.Error("encode transcript event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.historyCap > 0 {
		h.history = append(h.history, e)
		if len(h.history) > h.historyCap {
			h.history = append([]transcript.Event(nil), h.history[len(h.history)-h.historyCap:]...)
		}
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("display client too slow, disconnecting", "remote", c.remote)
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), remote: r.RemoteAddr}
	h.add(c)
	h.logger.Info("display client connected", "remote", c.remote)

	go c.writePump()
	c.readPump()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.history {
		data, err := json.Marshal(Message{Type: TypeTranscript, Event: &e})
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// handle applies one inbound message and returns the reply.
func (h *Hub) handle(msgType int, data []byte) Message {
	if h.controls == nil {
		return errorReply("display is read-only")
	}
	if msgType == websocket.BinaryMessage {
		return ack(h.controls.SubmitAudio(data))
	}

	var in Message
	if err := json.Unmarshal(data, &in); err != nil {
		return errorReply("invalid message")
	}
	switch in.Type {
	case TypeTrigger:
		t, ok := voice.ParseTrigger(in.Name)
		if !ok {
			return errorReply("unknown trigger " + in.Name)
		}
		return ack(h.controls.Trigger(t))
	case TypeText:
		if in.Text == "" {
			return errorReply("empty text")
		}
		return ack(h.controls.SubmitText(in.Text))
	default:
		return errorReply("unknown message type " + in.Type)
	}
}

func ack(ok bool) Message {
	return Message{Type: TypeAck, OK: &ok}
}

func errorReply(msg string) Message {
	return Message{Type: TypeError, Error: msg}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		c.hub.logger.Info("display client disconnected", "remote", c.remote)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("display read failed", "remote", c.remote, "error", err)
			}
			return
		}
		reply, err := json.Marshal(c.hub.handle(msgType, data))
		if err != nil {
			continue
		}
		c.hub.mu.Lock()
		if _, ok := c.hub.clients[c]; ok {
			select {
			case c.send <- reply:
			default:
			}
		}
		c.hub.mu.Unlock()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
