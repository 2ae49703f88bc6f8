package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogRejectsBeforeStart(t *testing.T) {
	el := NewEventLog(0, 0)
	if el.Emit(NewEvent(EventTypeAttackHit, 1, 0, 0, nil)) {
		t.Error("Expected emit on a stopped log to fail")
	}
}

func TestEventLogRecentAndSince(t *testing.T) {
	el := NewEventLog(10000, 10000)
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	for i := 0; i < 10; i++ {
		if !el.EmitSimple(EventTypeChargeStart, uint64(i), 0, NoParticipant, nil) {
			t.Fatalf("Emit %d rejected", i)
		}
	}

	recent := el.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(recent))
	}
	if recent[0].Sequence != 8 || recent[2].Sequence != 10 {
		t.Errorf("Expected sequences 8..10, got %d..%d", recent[0].Sequence, recent[2].Sequence)
	}

	since := el.Since(7)
	if len(since) != 3 || since[0].Frame != 7 {
		t.Errorf("Expected the 3 events after sequence 7, got %d starting at frame %d", len(since), since[0].Frame)
	}
	if el.Since(el.LastSequence()) != nil {
		t.Error("Expected nothing newer than the last sequence")
	}
}

func TestEventLogParticipantRateLimit(t *testing.T) {
	el := NewEventLog(10000, 10000)
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 100; i++ {
		if el.EmitSimple(EventTypeCharged, 1, 0, 2, nil) {
			accepted++
		}
	}
	if accepted >= 100 {
		t.Error("Expected a single wand to be rate limited")
	}
	if el.GetDroppedCount() == 0 {
		t.Error("Expected dropped events to be counted")
	}
	if !el.EmitSimple(EventTypeCharged, 1, 0, 1, nil) {
		t.Error("Expected another wand to be unaffected")
	}
}

func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog(10000, 10000)
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	el.EmitSimple(EventTypeAttackHit, 42, 0, 1, OutcomePayload{AttackerID: 0, DefenderID: 1, AttackerDelta: 100, DefenderDelta: -60})
	el.EmitSimple(EventTypeMatchOver, 43, 0, 0, MatchPayload{WinnerID: 0, Scores: []int{1000, -60}})
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("Bad JSONL line %q: %v", sc.Text(), err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(events))
	}
	if events[0].Type != EventTypeAttackHit || events[1].Type != EventTypeMatchOver {
		t.Errorf("Unexpected event types %v, %v", events[0].Type, events[1].Type)
	}

	p, err := DecodePayload[OutcomePayload](events[0])
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.AttackerDelta != 100 || p.DefenderDelta != -60 {
		t.Errorf("Unexpected payload %+v", p)
	}
}
