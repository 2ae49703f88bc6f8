package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"wizardry/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// MaxSpectatorsTotal is the maximum number of spectator sockets
	MaxSpectatorsTotal = 200

	// MaxSpectatorsPerIP is the maximum spectator sockets per IP
	MaxSpectatorsPerIP = 10

	spectatorQueue    = 32
	spectatorInterval = 100 * time.Millisecond
	spectatorWrite    = 5 * time.Second
)

// SnapshotSource provides the latest match state.
type SnapshotSource interface {
	Snapshot() *game.Snapshot
}

type spectator struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
}

// SpectatorHub fans match state and combat events out to read-only sockets.
// Each spectator has its own queue; a slow one loses messages, not the hub.
type SpectatorHub struct {
	source   SnapshotSource
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*spectator]struct{}
	perIP   map[string]int

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSpectatorHub creates a hub. Nothing runs until Run is called.
func NewSpectatorHub(source SnapshotSource, origins OriginPolicy) *SpectatorHub {
	return &SpectatorHub{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     origins.CheckOrigin,
		},
		clients:  make(map[*spectator]struct{}),
		perIP:    make(map[string]int),
		stopChan: make(chan struct{}),
	}
}

// Run broadcasts the match state whenever a new frame is published.
func (h *SpectatorHub) Run() {
	ticker := time.NewTicker(spectatorInterval)
	defer ticker.Stop()

	var last *game.Snapshot
	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			snap := h.source.Snapshot()
			if snap == nil || snap == last {
				continue
			}
			last = snap
			h.Broadcast("match:state", snap)
		}
	}
}

// Stop ends Run and disconnects every spectator.
func (h *SpectatorHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		h.mu.Lock()
		for c := range h.clients {
			c.conn.Close()
		}
		h.mu.Unlock()
	})
}

// Broadcast sends a message to all connected clients
func (h *SpectatorHub) Broadcast(event string, data interface{}) {
	msg, err := encodeMessage(event, data)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Queue full, skip (backpressure)
		}
	}
	IncrementWSMessages()
}

// PublishEvent forwards a combat event to spectators.
func (h *SpectatorHub) PublishEvent(e game.Event) {
	h.Broadcast("match:event", e)
}

func encodeMessage(event string, data interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
}

// ClientCount returns the number of connected spectators
func (h *SpectatorHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// admit reserves a slot for ip, or reports why it cannot.
func (h *SpectatorHub) admit(ip string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= MaxSpectatorsTotal {
		return "Too many connections", false
	}
	if h.perIP[ip] >= MaxSpectatorsPerIP {
		return "Too many connections from your IP", false
	}
	h.perIP[ip]++
	return "", true
}

func (h *SpectatorHub) releaseIP(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.perIP[ip] <= 1 {
		delete(h.perIP, ip)
	} else {
		h.perIP[ip]--
	}
}

// HandleWebSocket upgrades a spectator and streams until it leaves.
func (h *SpectatorHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)
	if reason, ok := h.admit(ip); !ok {
		log.Printf("⚠️ Spectator rejected from %s: %s", ip, reason)
		RecordConnectionRejected("ws_limit")
		writeError(w, reason, http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.releaseIP(ip)
		return
	}

	c := &spectator{conn: conn, ip: ip, send: make(chan []byte, spectatorQueue)}
	if snap := h.source.Snapshot(); snap != nil {
		if msg, err := encodeMessage("match:state", snap); err == nil {
			c.send <- msg
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("📱 Spectator connected from %s (%d total)", ip, count)
	UpdateWSConnections(count)

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Spectators are read-only; reading only detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)

	h.mu.Lock()
	delete(h.clients, c)
	count = len(h.clients)
	h.mu.Unlock()
	h.releaseIP(ip)
	conn.Close()

	log.Printf("📱 Spectator disconnected (%d remaining)", count)
	UpdateWSConnections(count)
}

func (h *SpectatorHub) writeLoop(c *spectator, done <-chan struct{}) {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(spectatorWrite))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}
