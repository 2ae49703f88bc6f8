package game

import (
	"errors"
	"testing"
	"time"
)

type recordingActuator struct {
	outputs []Output
}

func (r *recordingActuator) Apply(out Output) { r.outputs = append(r.outputs, out) }

// TestNewEngine verifies engine creation with correct defaults
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name         string
		participants int
		want         int
	}{
		{"default", 0, 2},
		{"three wands", 3, 3},
		{"clamped", 9, MaxParticipants},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(EngineConfig{Participants: tt.participants})
			snap := engine.Snapshot()
			if snap == nil {
				t.Fatal("Expected an initial snapshot")
			}
			if snap.MatchID == "" {
				t.Error("Expected a match id")
			}
			if len(snap.Participants) != tt.want {
				t.Errorf("Expected %d participants, got %d", tt.want, len(snap.Participants))
			}
			if engine.TickInterval() != time.Second/60 {
				t.Errorf("Expected 60 TPS, got %v", engine.TickInterval())
			}
		})
	}
}

// TestEngineStartStop verifies engine can start and stop without panics
func TestEngineStartStop(t *testing.T) {
	engine := NewEngine(EngineConfig{TickRate: 100})

	if err := engine.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engine.Start(); !errors.Is(err, ErrEngineRunning) {
		t.Errorf("Expected ErrEngineRunning, got %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	engine.Stop()
	if engine.Running() {
		t.Error("Expected engine to stop")
	}
	if engine.Snapshot().Frame == 0 {
		t.Error("Expected frames to advance while running")
	}

	// Should not panic on double stop
	engine.Stop()
}

func TestEngineFoldsInputsPerWand(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	engine.Post(Input{ID: 0, Accel: Vec3{X: 1}, PeakForce: 1, Rotation: 10,
		Buttons: []ButtonEdge{{Button: ButtonShield, Pressed: true}}})
	engine.Post(Input{ID: 0, Accel: Vec3{Y: 1}, PeakForce: 3, Rotation: 20,
		Buttons: []ButtonEdge{{Button: ButtonShield, Pressed: false}}})
	engine.Post(Input{ID: 1, PeakForce: 0.5})
	engine.Post(Input{ID: 7, PeakForce: 9})

	inputs := engine.drain()
	if len(inputs) != 2 {
		t.Fatalf("Expected 2 frame inputs, got %d", len(inputs))
	}
	first := inputs[0]
	if first.ID != 0 || first.Accel != (Vec3{Y: 1}) {
		t.Errorf("Expected latest accel for wand 0, got %+v", first)
	}
	if first.PeakForce != 3 {
		t.Errorf("Expected peak force 3, got %v", first.PeakForce)
	}
	if first.Rotation != 30 {
		t.Errorf("Expected summed rotation 30, got %v", first.Rotation)
	}
	if len(first.Buttons) != 2 || !first.Buttons[0].Pressed || first.Buttons[1].Pressed {
		t.Errorf("Expected press then release, got %+v", first.Buttons)
	}
	if inputs[1].ID != 1 {
		t.Errorf("Expected wand 1 second, got %d", inputs[1].ID)
	}

	if again := engine.drain(); again != nil {
		t.Errorf("Expected an empty frame after draining, got %+v", again)
	}
}

func TestEnginePostDropsWhenInboxFull(t *testing.T) {
	engine := NewEngine(EngineConfig{InboxSize: 2})

	for i := 0; i < 2; i++ {
		if !engine.Post(Input{ID: 0}) {
			t.Fatalf("Post %d rejected", i)
		}
	}
	if engine.Post(Input{ID: 0}) {
		t.Error("Expected a full inbox to reject")
	}
	if engine.DroppedInputs() != 1 {
		t.Errorf("Expected 1 dropped input, got %d", engine.DroppedInputs())
	}
}

func TestEngineTickAppliesInputsAndPublishes(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())

	var events []Event
	var ticks []*Snapshot
	engine.SetCallbacks(
		func(e Event) { events = append(events, e) },
		func(s *Snapshot) { ticks = append(ticks, s) },
	)

	engine.Post(Input{ID: 0, Buttons: []ButtonEdge{{Button: TargetButton(1), Pressed: true}}})
	engine.tick()

	snap := engine.Snapshot()
	if snap.Frame != 1 {
		t.Errorf("Expected frame 1, got %d", snap.Frame)
	}
	if p := snap.Participants[0]; p.State != StateCharging || p.TargetID != 1 {
		t.Errorf("Expected wand 0 charging at 1, got %+v", p)
	}
	if len(ticks) != 1 || ticks[0] != snap {
		t.Error("Expected onTick to receive the published snapshot")
	}
	if len(events) != 1 || events[0].Type != EventTypeChargeStart {
		t.Errorf("Expected a ChargeStart event, got %+v", events)
	}
}

func TestEngineActuatorsSeeChangesOnly(t *testing.T) {
	engine := NewEngine(EngineConfig{Lobby: true})
	act := &recordingActuator{}

	if !engine.Attach(0, act) {
		t.Fatal("Attach rejected")
	}
	if engine.Attach(0, &recordingActuator{}) {
		t.Error("Expected a second actuator on the same wand to be rejected")
	}
	if engine.Attach(5, &recordingActuator{}) {
		t.Error("Expected an out of range wand to be rejected")
	}

	// The lobby freezes the clock, so the output stays put
	engine.tick()
	engine.tick()
	if len(act.outputs) != 1 {
		t.Fatalf("Expected the initial output only, got %d", len(act.outputs))
	}

	engine.Detach(0, &recordingActuator{})
	engine.Detach(0, act)
	engine.Reset()
	engine.tick()
	if len(act.outputs) != 1 {
		t.Errorf("Expected no output after detach, got %d", len(act.outputs))
	}
}

func TestEngineLobbyStartsWhenWandsConnect(t *testing.T) {
	engine := NewEngine(EngineConfig{Lobby: true})
	engine.tick()
	if engine.Snapshot().Status != MatchWaiting {
		t.Fatalf("Expected waiting, got %v", engine.Snapshot().Status)
	}

	engine.Post(Input{Kind: InputConnection, ID: 0, Connected: true})
	engine.Post(Input{Kind: InputConnection, ID: 1, Connected: true})
	engine.tick()
	if engine.Snapshot().Status != MatchRunning {
		t.Errorf("Expected running, got %v", engine.Snapshot().Status)
	}
}

func TestEnginePostNeverBlocksOnLinkChanges(t *testing.T) {
	engine := NewEngine(EngineConfig{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Far more flaps than the control queue holds, with no loop draining it
		for i := 0; i < 1000; i++ {
			engine.Post(Input{Kind: InputConnection, ID: 1, Connected: i%2 == 1})
		}
		engine.Post(Input{Kind: InputConnection, ID: 0, Connected: false})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Post blocked on connection changes")
	}

	engine.tick()
	snap := engine.Snapshot()
	if !snap.Participants[1].Connected {
		t.Error("Expected wand 1 to end connected, its last reported state")
	}
	if snap.Participants[0].Connected {
		t.Error("Expected wand 0 disconnected")
	}
	if snap.Status != MatchPaused {
		t.Errorf("Expected the match paused by the missing wand, got %v", snap.Status)
	}
}

func TestEngineReset(t *testing.T) {
	engine := NewEngine(DefaultEngineConfig())
	engine.Post(Input{ID: 0, Buttons: []ButtonEdge{{Button: TargetButton(1), Pressed: true}}})
	engine.tick()
	before := engine.Snapshot()

	engine.Reset()
	engine.Reset() // coalesces with the pending reset
	engine.tick()

	after := engine.Snapshot()
	if after.MatchID == before.MatchID {
		t.Error("Expected a new match id")
	}
	if after.Frame != 1 {
		t.Errorf("Expected the new match at frame 1, got %d", after.Frame)
	}
	if after.Participants[0].State != StateIdle {
		t.Errorf("Expected a fresh participant, got %v", after.Participants[0].State)
	}
}

func TestEngineAutoRestart(t *testing.T) {
	rules := DefaultRules()
	rules.Disconnect = DisconnectForfeit
	engine := NewEngine(EngineConfig{Rules: rules, TickRate: 100, AutoRestart: 50 * time.Millisecond})
	first := engine.Snapshot().MatchID

	engine.Post(Input{Kind: InputConnection, ID: 1, Connected: false})
	engine.tick()
	snap := engine.Snapshot()
	if snap.Status != MatchOver || snap.WinnerID != 0 {
		t.Fatalf("Expected wand 0 to win by forfeit, got %v winner %d", snap.Status, snap.WinnerID)
	}

	for i := 0; i < 10 && engine.Snapshot().MatchID == first; i++ {
		engine.tick()
	}
	snap = engine.Snapshot()
	if snap.MatchID == first {
		t.Fatal("Expected the match to restart")
	}
	if snap.Status != MatchRunning || snap.WinnerID != NoParticipant {
		t.Errorf("Expected a running match, got %v winner %d", snap.Status, snap.WinnerID)
	}
}
