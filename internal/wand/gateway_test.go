package wand

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wizardry/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type fakeEngine struct {
	mu        sync.Mutex
	inputs    []game.Input
	actuators map[int]game.Actuator
	full      int // reject this many posts as if the inbox were full
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{actuators: make(map[int]game.Actuator)}
}

func (f *fakeEngine) Post(in game.Input) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full > 0 {
		f.full--
		return false
	}
	f.inputs = append(f.inputs, in)
	return true
}

func (f *fakeEngine) Attach(id int, act game.Actuator) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.actuators[id]; ok {
		return false
	}
	f.actuators[id] = act
	return true
}

func (f *fakeEngine) Detach(id int, act game.Actuator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actuators[id] == act {
		delete(f.actuators, id)
	}
}

func (f *fakeEngine) Participants() int { return 2 }

func (f *fakeEngine) Snapshot() *game.Snapshot { return &game.Snapshot{MatchID: "m-1"} }

func (f *fakeEngine) actuator(id int) game.Actuator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actuators[id]
}

func (f *fakeEngine) posted() []game.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.Input(nil), f.inputs...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func newTestServer(t *testing.T, engine Engine) (*httptest.Server, *Gateway) {
	t.Helper()
	gw := NewGateway(engine, Config{MsgPerSec: 1000})
	r := chi.NewRouter()
	r.Handle("/ws/wand/{id}", gw)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, gw
}

func dial(t *testing.T, ts *httptest.Server, id string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/wand/" + id
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return env
}

func TestGatewayRoundTrip(t *testing.T) {
	engine := newFakeEngine()
	ts, gw := newTestServer(t, engine)

	conn, _, err := dial(t, ts, "1")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.T != MsgWelcome {
		t.Fatalf("Expected welcome first, got %q", env.T)
	}
	w, err := DecodePayload[Welcome](env)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if w.ID != 1 || w.Color != game.ColorOf(1).RGB8() || w.MatchID != "m-1" {
		t.Errorf("Unexpected welcome %+v", w)
	}

	msg, _ := Encode(MsgMotion, Motion{Accel: [3]float64{0, 1, 0}, Pressed: []string{"square"}})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	waitFor(t, "motion input", func() bool { return len(engine.posted()) >= 2 })

	inputs := engine.posted()
	if inputs[0].Kind != game.InputConnection || !inputs[0].Connected || inputs[0].ID != 1 {
		t.Errorf("Expected a connect input first, got %+v", inputs[0])
	}
	if inputs[1].Kind != game.InputMotion || len(inputs[1].Buttons) != 1 || inputs[1].Buttons[0].Button != game.ButtonTarget0 {
		t.Errorf("Unexpected motion input %+v", inputs[1])
	}
	if gw.Connected() != 1 {
		t.Errorf("Expected 1 connected wand, got %d", gw.Connected())
	}

	act := engine.actuator(1)
	if act == nil {
		t.Fatal("Expected the session to be attached")
	}
	act.Apply(game.Output{LED: game.ColorRed, Rumble: 1})
	env = readEnvelope(t, conn)
	fb, err := DecodePayload[Feedback](env)
	if err != nil || env.T != MsgFeedback {
		t.Fatalf("Expected feedback, got %q (%v)", env.T, err)
	}
	if fb.LED != [3]uint8{255, 0, 0} || fb.Rumble != 1 {
		t.Errorf("Unexpected feedback %+v", fb)
	}

	conn.Close()
	waitFor(t, "disconnect", func() bool { return gw.Connected() == 0 && engine.actuator(1) == nil })
	inputs = engine.posted()
	last := inputs[len(inputs)-1]
	if last.Kind != game.InputConnection || last.Connected {
		t.Errorf("Expected a disconnect input last, got %+v", last)
	}
}

func TestGatewayRejectsUnknownAndDuplicateWands(t *testing.T) {
	engine := newFakeEngine()
	ts, _ := newTestServer(t, engine)

	for _, id := range []string{"2", "-1", "wand"} {
		_, resp, err := dial(t, ts, id)
		if err == nil {
			t.Fatalf("Expected wand %q to be rejected", id)
		}
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404 for wand %q, got %v", id, resp)
		}
	}

	first, _, err := dial(t, ts, "0")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer first.Close()

	_, resp, err := dial(t, ts, "0")
	if err == nil {
		t.Fatal("Expected a second connection to the same wand to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %v", resp)
	}
}

func TestSessionReportsBadMessages(t *testing.T) {
	engine := newFakeEngine()
	ts, _ := newTestServer(t, engine)

	conn, _, err := dial(t, ts, "0")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	readEnvelope(t, conn) // welcome

	msg, _ := Encode("dance", Hello{})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.T != MsgError {
		t.Fatalf("Expected an error message, got %q", env.T)
	}
	e, _ := DecodePayload[ErrorMessage](env)
	if e.Message != ErrUnknownMessage.Error() {
		t.Errorf("Expected %q, got %q", ErrUnknownMessage.Error(), e.Message)
	}
}

func motionMessage(t *testing.T, m Motion) []byte {
	t.Helper()
	msg, err := Encode(MsgMotion, m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return msg
}

func edgesOf(inputs []game.Input) []game.ButtonEdge {
	var edges []game.ButtonEdge
	for _, in := range inputs {
		edges = append(edges, in.Buttons...)
	}
	return edges
}

func TestSessionKeepsButtonEdges(t *testing.T) {
	plain := Motion{Accel: [3]float64{0, 1, 0}, Gyro: [3]float64{3, 0, 0}}
	release := Motion{Accel: [3]float64{0, 1, 0}, Gyro: [3]float64{3, 0, 0}, Released: []string{"trigger"}}
	wantEdge := game.ButtonEdge{Button: game.ButtonShield, Pressed: false}

	t.Run("rate limited", func(t *testing.T) {
		engine := newFakeEngine()
		s := newSession(nil, 0, engine, 4) // burst of one

		for _, m := range []Motion{plain, plain, release} {
			if err := s.handle(motionMessage(t, m)); err != nil {
				t.Fatalf("handle failed: %v", err)
			}
		}

		posted := engine.posted()
		if len(posted) != 2 {
			t.Fatalf("Expected the first sample and the release, got %d inputs", len(posted))
		}
		edges := edgesOf(posted)
		if len(edges) != 1 || edges[0] != wantEdge {
			t.Errorf("Expected the trigger release, got %v", edges)
		}
		if posted[1].Rotation != 0 {
			t.Errorf("Expected a limited message to drop its rotation, got %v", posted[1].Rotation)
		}
		if got := s.Stats()["limited"].(uint64); got != 2 {
			t.Errorf("Expected 2 limited messages, got %d", got)
		}
	})

	t.Run("inbox full", func(t *testing.T) {
		engine := newFakeEngine()
		engine.full = 1
		s := newSession(nil, 0, engine, 1000)

		if err := s.handle(motionMessage(t, release)); err != nil {
			t.Fatalf("handle failed: %v", err)
		}
		if len(engine.posted()) != 0 {
			t.Fatal("Expected the first post to be refused")
		}
		if err := s.handle(motionMessage(t, plain)); err != nil {
			t.Fatalf("handle failed: %v", err)
		}

		edges := edgesOf(engine.posted())
		if len(edges) != 1 || edges[0] != wantEdge {
			t.Errorf("Expected the release to ride on the next sample, got %v", edges)
		}
		if got := s.Stats()["dropped"].(uint64); got != 1 {
			t.Errorf("Expected 1 dropped post, got %d", got)
		}
	})
}
