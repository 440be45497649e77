package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/wricardo/battlecity/game/engine"
	"github.com/wricardo/battlecity/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Frames queued per client before it is considered stuck
	clientBuffer = 256

	// Broadcasts queued before new ones are dropped. Runners publish up to
	// the tick rate, so a stalled hub must not block them.
	broadcastBuffer = 1024
)

const (
	EventView = "view"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Format is the wire encoding a client asked for
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// ParseFormat maps the ?format= query value to a Format. Anything other than
// "msgpack" is JSON.
func ParseFormat(s string) Format {
	if s == "msgpack" {
		return FormatMsgpack
	}
	return FormatJSON
}

// Message is what clients receive
type Message struct {
	SessionID string         `json:"session_id"`
	Event     string         `json:"event"`
	View      *engine.View   `json:"view,omitempty"`
	Events    []engine.Event `json:"events,omitempty"`
	Data      interface{}    `json:"data,omitempty"`
}

// Client represents a websocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	format    Format
}

// Hub maintains active clients and broadcasts messages to them. Requests are
// serialized through Run; mu lets ClientCount read the session map from
// other goroutines.
type Hub struct {
	// Registered clients by lowercased session id
	sessions map[string]map[*Client]bool

	// Inbound messages from the game
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	log logrus.FieldLogger
	mu  sync.RWMutex
}

// NewHub creates a new websocket hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		log:        logger.Log.WithField("component", "websocket"),
	}
}

// Run dispatches register, unregister and broadcast requests until ctx is
// done. Remaining clients are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ServeWS upgrades the request and attaches the connection to sessionID. The
// format query parameter picks JSON text frames (default) or msgpack binary
// frames.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, clientBuffer),
		sessionID: strings.ToLower(sessionID),
		format:    ParseFormat(r.URL.Query().Get("format")),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastToSession sends a view and the events that produced it to every
// client watching sessionID. It never blocks; when the hub is backed up the
// update is dropped and the next one supersedes it.
func (h *Hub) BroadcastToSession(sessionID string, view engine.View, events []engine.Event) {
	h.publish(&Message{
		SessionID: sessionID,
		Event:     EventView,
		View:      &view,
		Events:    events,
	})
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	h.publish(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	})
}

// ClientCount returns how many clients watch sessionID
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[strings.ToLower(sessionID)])
}

func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.log.WithField("session", message.SessionID).Debug("hub backed up, dropping update")
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true
	h.log.WithFields(logrus.Fields{
		"session": client.sessionID,
		"clients": len(h.sessions[client.sessionID]),
	}).Debug("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropClient(client)
}

// dropClient removes client and closes its queue. Callers hold mu.
func (h *Hub) dropClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}
	h.log.WithField("session", client.sessionID).Debug("client unregistered")
}

func (h *Hub) broadcastMessage(message *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sessions[strings.ToLower(message.SessionID)]
	if len(clients) == 0 {
		return
	}

	// Encode at most once per format
	frames := make(map[Format][]byte, 2)
	for client := range clients {
		frame, ok := frames[client.format]
		if !ok {
			var err error
			frame, err = encode(message, client.format)
			if err != nil {
				h.log.WithError(err).Error("failed to encode message")
				return
			}
			frames[client.format] = frame
		}

		select {
		case client.send <- frame:
		default:
			h.dropClient(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.sessions {
		for client := range clients {
			h.dropClient(client)
		}
	}
}

// encode renders message in the given format. msgpack reuses the json tags
// so both encodings carry the same field names.
func encode(message *Message, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.Marshal(message)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode is the inverse of encode, used by clients written in Go
func decode(data []byte, format Format, message *Message) error {
	if format == FormatJSON {
		return json.Unmarshal(data, message)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(message)
}

// readPump drains the connection so control frames are processed. Clients
// drive the game through the REST API, so payloads are ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("websocket read error")
			}
			break
		}
	}
}

// writePump pumps frames from the hub to the connection, one frame per
// message so binary clients can decode them individually
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	messageType := websocket.TextMessage
	if c.format == FormatMsgpack {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(messageType, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
