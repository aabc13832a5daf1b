package api

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait / 2
	maxMessageSize = 4096
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed channel suffixes ("crypto:BTC"); empty means everything.
	subMu sync.RWMutex
	subs  map[string]bool
}

// clientMsg is a control frame sent by the peer.
type clientMsg struct {
	Type    string   `json:"type"` // SUBSCRIBE | UNSUBSCRIBE
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{conn: conn, send: make(chan []byte, 256), hub: h, subs: make(map[string]bool)}
}

func subKey(s string) string {
	market, symbol, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(market)) + ":" + strings.ToUpper(strings.TrimSpace(symbol))
}

func (c *Client) subscribe(keys []string) {
	c.subMu.Lock()
	for _, k := range keys {
		if k = subKey(k); k != "" {
			c.subs[k] = true
		}
	}
	c.subMu.Unlock()
}

func (c *Client) unsubscribe(keys []string) {
	c.subMu.Lock()
	for _, k := range keys {
		delete(c.subs, subKey(k))
	}
	c.subMu.Unlock()
}

func (c *Client) wants(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[strings.TrimPrefix(channel, "signals:")]
}

func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.ts.After(cutoff) {
			continue
		}
		if !c.wants(channel) {
			continue
		}
		env := entry.env
		env.Initial = true
		frame, _ := json.Marshal(env)
		select {
		case c.send <- frame:
		default:
		}
	}
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Println("[stream] ws client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch strings.ToUpper(msg.Type) {
		case "SUBSCRIBE":
			c.subscribe(msg.Symbols)
		case "UNSUBSCRIBE":
			c.unsubscribe(msg.Symbols)
		default:
			if msg.Ping > 0 {
				pong, _ := json.Marshal(map[string]any{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				c.hub.mu.RLock()
				if c.hub.clients[c] {
					select {
					case c.send <- pong:
					default:
					}
				}
				c.hub.mu.RUnlock()
			}
		}
	}
}
