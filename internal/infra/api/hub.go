package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"void-ai-chat/internal/domain/ports/adapter"
	"void-ai-chat/internal/infra/metrics"
	"void-ai-chat/internal/usecase"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	sendBuffer   = 256
	maxInboundSz = 64 << 10
)

var _ adapter.Publisher = (*Hub)(nil)

// wsIncoming is what a websocket client may send: a chat message to start a turn.
type wsIncoming struct {
	Text string `json:"text"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published events out to websocket clients. Publish never blocks;
// a client whose buffer is full is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	origins  map[string]bool
	log      *zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	uc      usecase.ChatUseCase
	closed  bool
}

func NewHub(allowedOrigins []string, log *zerolog.Logger) *Hub {
	h := &Hub{
		origins: make(map[string]bool, len(allowedOrigins)),
		clients: make(map[*wsClient]struct{}),
		log:     log,
	}
	for _, o := range allowedOrigins {
		h.origins[o] = true
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) attach(uc usecase.ChatUseCase) {
	h.mu.Lock()
	h.uc = uc
	h.mu.Unlock()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return h.origins[origin]
}

func (h *Hub) Publish(ev adapter.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("ws: marshal event")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.log.Warn().Msg("ws: slow client dropped")
			h.removeLocked(c)
		}
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	uc := h.uc
	if uc != nil {
		// the first frame is the full state so the client can render at once
		if b, err := json.Marshal(map[string]any{"kind": "snapshot", "snapshot": uc.Snapshot()}); err == nil {
			c.send <- b
		}
	}
	h.clients[c] = struct{}{}
	metrics.SetWSClients(len(h.clients))
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c, uc)
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.SetWSClients(len(h.clients))
}

func (h *Hub) readPump(c *wsClient, uc usecase.ChatUseCase) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundSz)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("ws: closed unexpectedly")
			}
			return
		}
		var in wsIncoming
		if err := json.Unmarshal(raw, &in); err != nil {
			h.reply(c, adapter.Event{Kind: adapter.EventNotice, Notice: "Invalid message format. Send JSON with a 'text' field."})
			continue
		}
		if uc == nil {
			continue
		}
		if _, err := uc.StartMessage(context.Background(), in.Text); err != nil {
			h.reply(c, adapter.Event{Kind: adapter.EventNotice, Notice: err.Error()})
		}
	}
}

func (h *Hub) reply(c *wsClient, ev adapter.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
