package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-signals/internal/engine"
	"trading-signals/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Envelope is the frame pushed to stream clients.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Seq     int64           `json:"seq"`
	TS      string          `json:"ts"`
	Initial bool            `json:"initial,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// channelFor names the stream channel of an instrument: "signals:<market>:<symbol>".
func channelFor(rep *engine.Report) string {
	return "signals:" + rep.Instrument.Key()
}

type latestEntry struct {
	env Envelope
	ts  time.Time
}

// Hub fans engine reports out to WebSocket clients. It implements
// engine.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	replay  *ReplayBuffer
	metrics *metrics.Metrics
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(500),
		metrics: m,
	}
}

// Publish broadcasts a report to every client subscribed to its channel and
// remembers it as the channel's latest value.
func (h *Hub) Publish(rep *engine.Report) {
	data, err := json.Marshal(rep)
	if err != nil {
		log.Printf("[stream] marshal report %s: %v", rep.RunID, err)
		return
	}
	now := time.Now()
	channel := channelFor(rep)

	h.mu.Lock()
	h.seq++
	env := Envelope{Type: "verdict", Channel: channel, Seq: h.seq, TS: now.UTC().Format(time.RFC3339Nano), Data: data}
	h.latest[channel] = latestEntry{env: env, ts: now}
	frame, _ := json.Marshal(env)
	h.replay.Push(env.Seq, frame)

	for c := range h.clients {
		if !c.wants(channel) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			// Slow client; it can backfill via /api/v1/stream/missed.
		}
	}
	h.mu.Unlock()
}

// Seq returns the sequence number of the last published envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Missed returns the buffered envelopes in [from, to].
func (h *Hub) Missed(from, to int64) [][]byte {
	return h.replay.Range(from, to)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the client. Query parameters:
// symbols (comma-separated channel suffixes such as "crypto:BTC") limits the
// subscription; last_ts skips latest values not newer than that RFC 3339 time.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] ws upgrade error: %v", err)
		return
	}
	c := newClient(h, conn)
	if s := r.URL.Query().Get("symbols"); s != "" {
		c.subscribe(strings.Split(s, ","))
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(count))
	}
	log.Printf("[stream] ws client connected (%d total)", count)

	go c.sendInitialState(r.URL.Query().Get("last_ts"))
	go c.writePump()
	go c.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.StreamClients.Set(float64(count))
	}
}
