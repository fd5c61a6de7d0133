package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signal-monitor/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	filterMu sync.RWMutex
	filter   Filter
}

// Filter restricts which signals a client receives. Empty lists match everything.
type Filter struct {
	Symbols    []string `json:"symbols"`
	Indicators []string `json:"indicators"`
}

// Match reports whether a signal for symbol and kind passes the filter.
func (f Filter) Match(symbol string, kind model.IndicatorKind) bool {
	return matchAny(f.Symbols, symbol) && matchAny(f.Indicators, string(kind))
}

func matchAny(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func (c *Client) accepts(symbol string, kind model.IndicatorKind) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return c.filter.Match(symbol, kind)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued envelopes into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
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

// readPump handles client control messages:
//
//	{"type":"FILTER","symbols":[...],"indicators":[...]}
//	{"ping":<ms>}
func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
			Filter
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch {
		case base.Type == "FILTER":
			c.filterMu.Lock()
			c.filter = base.Filter
			c.filterMu.Unlock()
			log.Printf("[gateway] client filter: symbols=%v indicators=%v", base.Symbols, base.Indicators)
		case base.Ping > 0:
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      base.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.hub.sendTo(c, pong)
		}
	}
}
