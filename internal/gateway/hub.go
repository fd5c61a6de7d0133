// Package gateway streams detected signals to WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"signal-monitor/internal/metrics"
	"signal-monitor/internal/model"
)

// DefaultReplaySize is the number of recent envelopes kept for reconnecting clients.
const DefaultReplaySize = 500

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients and fans signal envelopes out to them.
// It implements model.SignalPublisher so the scanner can publish to it
// directly, and http.Handler for the stream endpoint.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer
	metrics *metrics.Metrics
}

// NewHub creates a hub keeping replaySize envelopes for backfill. m may be nil.
func NewHub(replaySize int, m *metrics.Metrics) *Hub {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		metrics: m,
	}
}

// PublishSignal broadcasts rec to every client whose filter accepts it.
func (h *Hub) PublishSignal(_ context.Context, rec model.SignalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("gateway: encode signal: %w", err)
	}
	h.Broadcast(rec.Symbol, rec.Indicator, data)
	return nil
}

// ServeHTTP upgrades the request and registers the client.
//
// Query parameters:
//
//	since       replay buffered envelopes with seq greater than this value;
//	            evicted seqs are announced first as {"type":"gap","from":..,"to":..}
//	symbols     comma-separated symbol filter
//	indicators  comma-separated indicator filter (DKX, MA)
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	q := r.URL.Query()
	since := int64(-1)
	if s := q.Get("since"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			since = v
		}
	}
	filter := Filter{Symbols: splitList(q.Get("symbols")), Indicators: splitList(q.Get("indicators"))}
	h.register(conn, filter, since)
}

func (h *Hub) register(conn *websocket.Conn, filter Filter, since int64) {
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		filter: filter,
	}
	conn.EnableWriteCompression(true)

	// Registration and backfill share the lock so a concurrent broadcast
	// cannot overtake the replayed envelopes.
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	if since >= 0 {
		if oldest, ok := h.replay.Oldest(); ok && oldest > since+1 {
			select {
			case client.send <- gapEnvelope(since+1, oldest-1):
			default:
			}
		}
		for _, e := range h.replay.Since(since) {
			if !filter.Match(e.Symbol, e.Indicator) {
				continue
			}
			select {
			case client.send <- e.Data:
			default:
				h.metrics.StreamDropped()
			}
		}
	}
	h.mu.Unlock()

	h.metrics.StreamClients(count)
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub. Removing twice is a no-op.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.StreamClients(count)
}

// sendTo queues msg for one registered client, dropping it when the buffer is full.
func (h *Hub) sendTo(c *Client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.metrics.StreamDropped()
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last broadcast envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
