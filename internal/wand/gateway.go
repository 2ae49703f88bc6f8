package wand

import (
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"wizardry/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// DefaultMsgPerSec is the per-wand motion message budget.
const DefaultMsgPerSec = 240

// Engine is the part of the match engine the gateway drives.
type Engine interface {
	Post(in game.Input) bool
	Attach(id int, act game.Actuator) bool
	Detach(id int, act game.Actuator)
	Participants() int
	Snapshot() *game.Snapshot
}

// Config tunes the gateway.
type Config struct {
	// MsgPerSec limits motion messages per wand. Excess samples are dropped.
	MsgPerSec float64
	// CheckOrigin filters upgrade requests. Nil accepts every origin;
	// device bridges are native programs, not browsers.
	CheckOrigin func(r *http.Request) bool
	// OnChange is called with the number of connected wands after a join or leave.
	OnChange func(connected int)
}

// Gateway accepts one websocket per wand on a route with an {id} parameter.
type Gateway struct {
	engine   Engine
	upgrader websocket.Upgrader
	cfg      Config

	mu       sync.Mutex
	sessions map[int]*Session // nil value while an upgrade is in flight
}

// NewGateway creates a gateway feeding engine.
func NewGateway(engine Engine, cfg Config) *Gateway {
	if cfg.MsgPerSec <= 0 {
		cfg.MsgPerSec = DefaultMsgPerSec
	}
	check := cfg.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Gateway{
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     check,
		},
		sessions: make(map[int]*Session),
	}
}

// ServeHTTP upgrades the request and serves the wand until it disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 || id >= g.engine.Participants() {
		http.Error(w, "Unknown wand", http.StatusNotFound)
		return
	}

	if !g.reserve(id) {
		log.Printf("⚠️ Wand %d rejected: already connected", id)
		http.Error(w, "Wand already connected", http.StatusConflict)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for wand %d: %v", id, err)
		g.release(id, nil)
		return
	}

	s := newSession(conn, id, g.engine, g.cfg.MsgPerSec)
	g.mu.Lock()
	g.sessions[id] = s
	g.mu.Unlock()

	g.welcome(s)
	if !g.engine.Attach(id, s) {
		log.Printf("⚠️ Wand %d rejected: actuator busy", id)
		s.sendError(ErrWandBusy)
		s.close()
		g.release(id, s)
		return
	}
	g.engine.Post(game.Input{Kind: game.InputConnection, ID: id, Connected: true})
	log.Printf("🪄 Wand %d connected (session %s)", id, s.ID())
	g.changed()

	s.run()

	g.engine.Detach(id, s)
	g.engine.Post(game.Input{Kind: game.InputConnection, ID: id, Connected: false})
	g.release(id, s)
	log.Printf("🪄 Wand %d disconnected (session %s)", id, s.ID())
	g.changed()
}

func (g *Gateway) welcome(s *Session) {
	w := Welcome{ID: s.Wand(), Color: game.ColorOf(s.Wand()).RGB8()}
	if snap := g.engine.Snapshot(); snap != nil {
		w.MatchID = snap.MatchID
	}
	if msg, err := Encode(MsgWelcome, w); err == nil {
		s.enqueue(msg)
	}
}

func (g *Gateway) reserve(id int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, taken := g.sessions[id]; taken {
		return false
	}
	g.sessions[id] = nil
	return true
}

// release frees the slot if it still belongs to s.
func (g *Gateway) release(id int, s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.sessions[id]; ok && cur == s {
		delete(g.sessions, id)
	}
}

func (g *Gateway) changed() {
	if g.cfg.OnChange != nil {
		g.cfg.OnChange(g.Connected())
	}
}

// Connected returns the number of live wand sessions.
func (g *Gateway) Connected() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// Sessions returns per-session counters ordered by wand id.
func (g *Gateway) Sessions() []map[string]interface{} {
	g.mu.Lock()
	live := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		if s != nil {
			live = append(live, s)
		}
	}
	g.mu.Unlock()

	sort.Slice(live, func(i, j int) bool { return live[i].Wand() < live[j].Wand() })
	out := make([]map[string]interface{}, 0, len(live))
	for _, s := range live {
		out = append(out, s.Stats())
	}
	return out
}

// Close disconnects every wand. Handlers return once their read loops end.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sessions {
		if s != nil {
			s.close()
		}
	}
}
