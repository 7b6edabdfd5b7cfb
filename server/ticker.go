package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/etnz/askwarren"
	"github.com/gorilla/websocket"
	"github.com/phuslu/log"
)

// TickerUpdate is the market ticker as served and pushed to clients.
type TickerUpdate struct {
	Quotes    []askwarren.TickerInfo     `json:"quotes"`
	Sources   []askwarren.GroundingChunk `json:"sources"`
	UpdatedAt int64                      `json:"updatedAt"` // unix milliseconds
}

// TickerCache keeps the last ticker fetched from the oracle.
type TickerCache struct {
	oracle Oracle
	hub    *Hub
	now    func() time.Time

	mu   sync.RWMutex
	last *TickerUpdate
	// fetching serialises refreshes, a scheduled one may overlap a request.
	fetching sync.Mutex
}

// NewTickerCache creates an empty cache broadcasting its updates on hub.
func NewTickerCache(oracle Oracle, hub *Hub) *TickerCache {
	return &TickerCache{oracle: oracle, hub: hub, now: time.Now}
}

// Refresh fetches the ticker and broadcasts it.
func (c *TickerCache) Refresh(ctx context.Context) TickerUpdate {
	c.fetching.Lock()
	defer c.fetching.Unlock()

	quotes, sources := c.oracle.FetchMarketTicker(ctx)
	u := TickerUpdate{Quotes: quotes, Sources: sources, UpdatedAt: c.now().UnixMilli()}
	c.mu.Lock()
	c.last = &u
	c.mu.Unlock()
	log.Info().Int("quotes", len(quotes)).Int("sources", len(sources)).Msg("ticker refreshed")
	if c.hub != nil {
		c.hub.Broadcast("ticker", u)
	}
	return u
}

// Last returns the cached ticker, if any was fetched.
func (c *TickerCache) Last() (TickerUpdate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return TickerUpdate{}, false
	}
	return *c.last, true
}

// Get returns the cached ticker, fetching it on first use.
func (c *TickerCache) Get(ctx context.Context) TickerUpdate {
	if u, ok := c.Last(); ok {
		return u
	}
	return c.Refresh(ctx)
}

// getTicker serves the cached ticker. ?refresh=1 forces a new fetch.
func (s *Server) getTicker(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" {
		WriteJSON(w, http.StatusOK, s.ticker.Refresh(r.Context()))
		return
	}
	WriteJSON(w, http.StatusOK, s.ticker.Get(r.Context()))
}

// Message is the envelope of every websocket message.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is public and read only: origins are checked by CORS on the REST side.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans messages out to the connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	// welcome is sent to every new client.
	welcome func() (Message, bool)
}

// NewHub creates a hub without clients.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*sync.Mutex)}
}

// ServeWS upgrades the connection and keeps it registered until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("cannot upgrade websocket connection")
		return
	}
	mu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = mu
	total := len(h.clients)
	welcome := h.welcome
	h.mu.Unlock()
	log.Debug().Int("clients", total).Msg("websocket client connected")

	if welcome != nil {
		if m, ok := welcome(); ok {
			h.send(conn, mu, m)
		}
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()
		conn.Close()
		log.Debug().Int("clients", remaining).Msg("websocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket error")
			}
			return
		}
	}
}

// Broadcast sends a message of type typ to every client.
func (h *Hub) Broadcast(typ string, payload any) {
	m := Message{Type: typ, Payload: payload}
	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for c, mu := range h.clients {
		conns[c] = mu
	}
	h.mu.RUnlock()
	for c, mu := range conns {
		h.send(c, mu, m)
	}
}

func (h *Hub) send(conn *websocket.Conn, mu *sync.Mutex, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("type", m.Type).Msg("cannot marshal websocket message")
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn().Err(err).Msg("cannot send websocket message")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		c.Close()
	}
}
