package game

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrEngineRunning is returned by Start when the loop is already running.
var ErrEngineRunning = errors.New("engine already running")

// InputKind tells the engine how to read an Input.
type InputKind uint8

const (
	// InputMotion carries a motion sample and any button edges.
	InputMotion InputKind = iota
	// InputConnection reports a wand joining or leaving.
	InputConnection
)

// Input is a message from a wand (or the API) to the engine loop.
type Input struct {
	Kind InputKind
	ID   int

	Accel     Vec3
	PeakForce float64 // squared acceleration magnitude
	Rotation  float64 // squared gyro magnitude
	Buttons   []ButtonEdge

	Connected bool
}

// Actuator receives a wand's LED color and rumble whenever they change.
// Apply is called from the engine loop and must not block.
type Actuator interface {
	Apply(Output)
}

// EngineConfig holds everything needed to run matches.
type EngineConfig struct {
	Rules        Rules
	Participants int
	TickRate     int
	InboxSize    int
	Lobby        bool

	// AutoRestart starts a new match this long after one ends. Zero disables it.
	AutoRestart time.Duration

	EventLogPath   string
	EventRatePerS  float64
	EventRateBurst int
}

// DefaultEngineConfig returns a two-wand, 60 TPS configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Rules:        DefaultRules(),
		Participants: MinParticipants,
		TickRate:     60,
		InboxSize:    256,
	}
}

// Engine runs the arena on its own goroutine. Wands post inputs into a
// bounded inbox; readers see the arena through immutable snapshots.
type Engine struct {
	mu       sync.RWMutex
	cfg      EngineConfig
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}

	// Owned by the loop goroutine
	arena   *Arena
	matchID string
	overAt  time.Duration
	frame   map[int]*FrameInput
	outputs []Output

	inbox   chan Input
	control chan Input // link changes, never dropped
	linkMu  sync.Mutex
	links   map[int]bool // latest link state of wands that overflowed control
	resetCh chan struct{}

	snapshot atomic.Pointer[Snapshot]
	eventLog *EventLog

	actuators map[int]Actuator
	fresh     map[int]bool // attached since the last notification

	// Event callbacks
	onEvent func(Event)
	onTick  func(*Snapshot)

	// Stats
	tickCount    atomic.Int64
	droppedInput atomic.Uint64
	lastTickNs   atomic.Int64
}

// NewEngine creates an engine with a fresh match. Zero config values fall back to defaults.
func NewEngine(cfg EngineConfig) *Engine {
	def := DefaultEngineConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}
	if cfg.Participants < MinParticipants {
		cfg.Participants = def.Participants
	}
	if cfg.Participants > MaxParticipants {
		cfg.Participants = MaxParticipants
	}
	cfg.Rules = cfg.Rules.withDefaults()

	e := &Engine{
		cfg:       cfg,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		frame:     make(map[int]*FrameInput, MaxParticipants),
		inbox:     make(chan Input, cfg.InboxSize),
		control:   make(chan Input, 4*MaxParticipants),
		links:     make(map[int]bool),
		resetCh:   make(chan struct{}, 1),
		eventLog:  NewEventLog(cfg.EventRatePerS, cfg.EventRateBurst),
		actuators: make(map[int]Actuator),
		fresh:     make(map[int]bool),
	}
	e.newMatch()
	return e
}

// newMatch replaces the arena. Runs on the loop goroutine (or before it starts).
func (e *Engine) newMatch() {
	opts := []ArenaOption{WithEventHandler(e.handleEvent)}
	if e.cfg.Lobby {
		opts = append(opts, WithLobby())
	}

	// Wands still attached keep their connection across matches
	e.mu.RLock()
	attached := make([]int, 0, len(e.actuators))
	for id := range e.actuators {
		attached = append(attached, id)
	}
	e.mu.RUnlock()

	e.arena = NewArena(e.cfg.Rules, e.cfg.Participants, opts...)
	e.matchID = uuid.NewString()
	e.overAt = 0
	e.outputs = make([]Output, e.arena.Len())
	e.mu.Lock()
	for _, id := range attached {
		e.fresh[id] = true
	}
	e.mu.Unlock()
	for k := range e.frame {
		delete(e.frame, k)
	}
	if e.cfg.Lobby {
		for _, id := range attached {
			e.arena.SetConnected(id, true)
		}
	}

	// A lobby match announces itself once every wand is in
	if !e.cfg.Lobby {
		e.handleEvent(NewEvent(EventTypeMatchStart, 0, 0, NoParticipant, MatchPayload{
			WinnerID: NoParticipant,
			Scores:   make([]int, e.arena.Len()),
		}))
	}
	e.publish()
}

// Start begins the game loop
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}
	if err := e.eventLog.Start(e.cfg.EventLogPath); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("start engine: %w", err)
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.cfg.TickRate))
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		for {
			select {
			case <-e.ticker.C:
				e.tick()
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Match engine started at %d TPS (%d wands, match %s)",
		e.cfg.TickRate, e.cfg.Participants, e.Snapshot().MatchID)
	return nil
}

// Stop stops the game loop and flushes the event log
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	e.mu.Unlock()

	<-e.done
	e.eventLog.Stop()
	log.Println("🛑 Match engine stopped")
}

// Running reports whether the loop is running.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// tick is called TickRate times per second
func (e *Engine) tick() {
	start := time.Now()
	e.tickCount.Add(1)

	select {
	case <-e.resetCh:
		log.Printf("🔄 Match %s reset", e.matchID)
		e.newMatch()
	default:
	}

	inputs := e.drain()
	e.arena.Step(e.TickInterval(), inputs)

	if e.arena.Status() == MatchOver && e.cfg.AutoRestart > 0 {
		if e.overAt == 0 {
			e.overAt = e.arena.Clock()
		} else if e.arena.Clock()-e.overAt >= e.cfg.AutoRestart {
			log.Printf("🔁 Auto-restarting after match %s", e.matchID)
			e.newMatch()
		}
	}

	e.notifyActuators()
	e.lastTickNs.Store(int64(time.Since(start)))
	e.publish()
}

// drain empties the inbox and folds each wand's messages into one FrameInput:
// latest acceleration, peak force, summed rotation, buttons in arrival order.
func (e *Engine) drain() []FrameInput {
	e.linkMu.Lock()
queued:
	for {
		select {
		case in := <-e.control:
			e.fold(in)
		default:
			break queued
		}
	}
	for id, connected := range e.links {
		e.fold(Input{Kind: InputConnection, ID: id, Connected: connected})
		delete(e.links, id)
	}
	e.linkMu.Unlock()

	// Bounded so a flooding wand cannot stall the frame
collect:
	for i := 0; i < cap(e.inbox); i++ {
		select {
		case in := <-e.inbox:
			e.fold(in)
		default:
			break collect
		}
	}

	if len(e.frame) == 0 {
		return nil
	}
	inputs := make([]FrameInput, 0, len(e.frame))
	for id, fi := range e.frame {
		inputs = append(inputs, *fi)
		delete(e.frame, id)
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].ID < inputs[j].ID })
	return inputs
}

func (e *Engine) fold(in Input) {
	if in.ID < 0 || in.ID >= e.arena.Len() {
		return
	}
	if in.Kind == InputConnection {
		e.arena.SetConnected(in.ID, in.Connected)
		return
	}
	fi, ok := e.frame[in.ID]
	if !ok {
		fi = &FrameInput{ID: in.ID}
		e.frame[in.ID] = fi
	}
	fi.Accel = in.Accel
	if in.PeakForce > fi.PeakForce {
		fi.PeakForce = in.PeakForce
	}
	fi.Rotation += in.Rotation
	fi.Buttons = append(fi.Buttons, in.Buttons...)
}

// notifyActuators pushes outputs that changed this frame to attached wands.
func (e *Engine) notifyActuators() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range e.outputs {
		p, _ := e.arena.Participant(id)
		out := p.Output()
		if out == e.outputs[id] && !e.fresh[id] {
			continue
		}
		e.outputs[id] = out
		delete(e.fresh, id)
		if act, ok := e.actuators[id]; ok {
			act.Apply(out)
		}
	}
}

func (e *Engine) publish() {
	snap := NewSnapshot(e.matchID, e.arena)
	e.snapshot.Store(snap)

	e.mu.RLock()
	cb := e.onTick
	e.mu.RUnlock()
	if cb != nil {
		cb(snap)
	}
}

// handleEvent journals arena events and forwards them to the callback.
func (e *Engine) handleEvent(ev Event) {
	e.eventLog.Emit(ev)

	e.mu.RLock()
	cb := e.onEvent
	e.mu.RUnlock()
	if cb != nil {
		cb(ev)
	}
}

// Post queues an input for the next tick. Returns false if the inbox is full.
// Connection changes go through a separate queue and are never dropped; when
// that queue is full only the latest state per wand is kept. Post never blocks.
func (e *Engine) Post(in Input) bool {
	if in.Kind == InputConnection {
		e.linkMu.Lock()
		defer e.linkMu.Unlock()
		// Once a wand overflowed, later changes follow it so order is kept
		if _, overflowed := e.links[in.ID]; !overflowed {
			select {
			case e.control <- in:
				return true
			default:
			}
		}
		e.links[in.ID] = in.Connected
		return true
	}
	select {
	case e.inbox <- in:
		return true
	default:
		e.droppedInput.Add(1)
		return false
	}
}

// Reset ends the current match and starts a new one on the next tick.
func (e *Engine) Reset() {
	select {
	case e.resetCh <- struct{}{}:
	default:
	}
}

// Attach routes participant id's feedback to act. The current output is sent on the next tick.
func (e *Engine) Attach(id int, act Actuator) bool {
	if id < 0 || id >= e.cfg.Participants {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, taken := e.actuators[id]; taken {
		return false
	}
	e.actuators[id] = act
	e.fresh[id] = true
	return true
}

// Detach stops feedback to participant id if act is still the one attached.
func (e *Engine) Detach(id int, act Actuator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.actuators[id]; ok && cur == act {
		delete(e.actuators, id)
		delete(e.fresh, id)
	}
}

// SetCallbacks sets event callbacks. Both run on the loop goroutine.
func (e *Engine) SetCallbacks(onEvent func(Event), onTick func(*Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEvent = onEvent
	e.onTick = onTick
}

// Snapshot returns the latest immutable snapshot
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// EventLog returns the engine's event journal.
func (e *Engine) EventLog() *EventLog { return e.eventLog }

// Rules returns the rules every match is played with.
func (e *Engine) Rules() Rules { return e.cfg.Rules }

// Participants returns the number of wands per match.
func (e *Engine) Participants() int { return e.cfg.Participants }

// TickInterval returns the simulated time per tick.
func (e *Engine) TickInterval() time.Duration {
	return time.Second / time.Duration(e.cfg.TickRate)
}

// GetStats returns loop counters for monitoring
func (e *Engine) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"ticks":         e.tickCount.Load(),
		"droppedInputs": e.droppedInput.Load(),
		"inboxLen":      len(e.inbox),
		"lastTickNs":    e.lastTickNs.Load(),
		"running":       e.Running(),
	}
}

// DroppedInputs returns how many inputs were rejected by a full inbox.
func (e *Engine) DroppedInputs() uint64 { return e.droppedInput.Load() }

// LastTickDuration returns the wall time the last tick took.
func (e *Engine) LastTickDuration() time.Duration {
	return time.Duration(e.lastTickNs.Load())
}
