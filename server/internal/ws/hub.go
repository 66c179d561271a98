package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/focusmonitor/focusmonitor/server/internal/api"
	"github.com/focusmonitor/focusmonitor/server/internal/store"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufSize = 16

	// SessionParam restricts a connection to one session's updates.
	SessionParam = "session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CORS is left to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub pushes session snapshots to WebSocket clients on every interval and
// whenever Notify is called.
type Hub struct {
	store    *store.Store
	alerts   api.AlertSource
	interval time.Duration
	kick     chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	session string // empty means all sessions
}

// New creates a Hub reading sessions from st and alerts from al, which may
// be nil.
func New(st *store.Store, al api.AlertSource, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		alerts:   al,
		interval: interval,
		kick:     make(chan struct{}, 1),
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast()
		case <-h.kick:
			h.broadcast()
		}
	}
}

// Notify requests a broadcast ahead of the next tick. Calls made while one is
// already pending are coalesced.
func (h *Hub) Notify() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// ServeHTTP upgrades the request, sends the current snapshot at once and then
// streams broadcasts until the client goes away. The optional ?session=<id>
// query parameter limits the stream to one session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader already answered
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, sendBufSize),
		session: r.URL.Query().Get(SessionParam),
	}
	if data, err := encode(h.snapshot(), c.session); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)
	slog.Debug("ws: client connected", "remote", r.RemoteAddr, "session", c.session)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) snapshot() api.SnapshotResponse {
	return api.BuildSnapshot(h.store, h.alerts)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast encodes the snapshot once per distinct session filter. Sends
// happen under the read lock so unregister cannot close a channel mid-send;
// clients with a full buffer are dropped afterwards.
func (h *Hub) broadcast() {
	snap := h.snapshot()
	cache := make(map[string][]byte)

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		data, ok := cache[c.session]
		if !ok {
			var err error
			if data, err = encode(snap, c.session); err != nil {
				slog.Warn("ws: encode failed", "err", err)
				continue
			}
			cache[c.session] = data
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "session", c.session)
		h.unregister(c)
	}
}

// encode builds the message for one client. A session filter keeps only that
// session and its alerts.
func encode(snap api.SnapshotResponse, session string) ([]byte, error) {
	if session != "" {
		filtered := api.SnapshotResponse{
			Sessions:    make([]api.SessionResponse, 0, 1),
			Alerts:      snap.Alerts[:0:0],
			GeneratedAt: snap.GeneratedAt,
		}
		for _, s := range snap.Sessions {
			if s.SessionID == session {
				filtered.Sessions = append(filtered.Sessions, s)
			}
		}
		for _, a := range snap.Alerts {
			if a.SessionID == session {
				filtered.Alerts = append(filtered.Alerts, a)
			}
		}
		snap = filtered
	}
	return json.Marshal(Message{Event: "snapshot", Data: snap})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards queued messages and sends pings. One goroutine per
// client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames; it returns when the peer disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
