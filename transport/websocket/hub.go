package websocket

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/puzzleforge/puzzleparty/game/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Group releases carry a
	// delta per piece, so this is roomier than a chat protocol needs.
	maxMessageSize = 32768
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Client is one websocket connection. The id doubles as the actor id
// for piece locks and presence; sessionID is empty until a successful
// join.
type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub owns every connection and runs the single event loop that
// processes inbound intents to completion, one at a time. That loop is
// what makes piece mutations atomic with respect to each other without
// per-event locking gymnastics; the session mutex only guards against
// REST-triggered mutations.
type Hub struct {
	registry *session.Manager

	// Fraction of releases that trigger an opportunistic snapshot.
	snapshotRate float64
	rng          *rand.Rand

	// Connected clients, and per-session buckets for broadcast scope.
	clients  map[*Client]bool
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	broadcast  chan outboundEvent
}

type inboundFrame struct {
	client *Client
	data   []byte
}

type outboundEvent struct {
	sessionID string
	event     string
	data      any
}

// NewHub creates a hub routing events against the given registry. A nil
// rng is seeded from wall-clock time; tests pass a fixed seed for
// reproducible snapshot sampling.
func NewHub(registry *session.Manager, snapshotRate float64, rng *rand.Rand) *Hub {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Hub{
		registry:     registry,
		snapshotRate: snapshotRate,
		rng:          rng,
		clients:      make(map[*Client]bool),
		sessions:     make(map[string]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		inbound:      make(chan inboundFrame, 64),
		broadcast:    make(chan outboundEvent, 16),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Str("client", client.id).Msg("client connected")

		case client := <-h.unregister:
			h.handleDisconnect(client)
			h.removeClient(client)

		case frame := <-h.inbound:
			h.route(frame.client, frame.data)

		case out := <-h.broadcast:
			h.broadcastToSession(out.sessionID, out.event, out.data)
		}
	}
}

// ServeWS upgrades an HTTP request and registers the connection. The
// connection starts unjoined; a game:join intent attaches it to a
// session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastEvent queues an event for every client in a session. Safe to
// call from outside the hub loop (the REST layer uses it for
// game:reset).
func (h *Hub) BroadcastEvent(sessionID, event string, data any) {
	h.broadcast <- outboundEvent{sessionID: sessionID, event: event, data: data}
}

// attach puts a joined client into its session's broadcast bucket.
func (h *Hub) attach(client *Client, sessionID string) {
	client.sessionID = sessionID
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Client]bool)
	}
	h.sessions[sessionID][client] = true
}

// removeClient drops a connection from all hub maps and closes its send
// channel. Idempotent; a slow client force-removed during a broadcast
// is skipped when its transport-level disconnect arrives later.
func (h *Hub) removeClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if bucket, ok := h.sessions[client.sessionID]; ok {
		delete(bucket, client)
		if len(bucket) == 0 {
			delete(h.sessions, client.sessionID)
		}
	}
}

// sendTo delivers one event to one client. A client whose send buffer
// is full is dropped rather than allowed to stall the event loop.
func (h *Hub) sendTo(client *Client, event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}
	select {
	case client.send <- payload:
	default:
		log.Warn().Str("client", client.id).Msg("send buffer full, dropping client")
		h.removeClient(client)
	}
}

// broadcastToSession sends an event to every client in the session.
func (h *Hub) broadcastToSession(sessionID, event string, data any) {
	for client := range h.sessions[sessionID] {
		h.sendTo(client, event, data)
	}
}

// broadcastToOthers sends an event to every client in the session
// except the originator, who already rendered its own action
// optimistically.
func (h *Hub) broadcastToOthers(sessionID string, sender *Client, event string, data any) {
	for client := range h.sessions[sessionID] {
		if client != sender {
			h.sendTo(client, event, data)
		}
	}
}

// sampleSnapshot returns true when this release should trigger an
// opportunistic snapshot, bounding write volume under heavy play.
func (h *Hub) sampleSnapshot() bool {
	return h.snapshotRate > 0 && h.rng.Float64() < h.snapshotRate
}

// persistAsync snapshots a session without blocking event handling.
func (h *Hub) persistAsync(sessionID string) {
	go h.registry.Save(sessionID)
}

// readPump pumps messages from the websocket connection into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			break
		}
		c.hub.inbound <- inboundFrame{client: c, data: data}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
