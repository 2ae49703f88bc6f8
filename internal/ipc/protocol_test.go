package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"wizardry/internal/game"
)

func testSnapshot(frame uint64, scores ...int) *game.Snapshot {
	snap := &game.Snapshot{
		MatchID:   "match-1",
		Frame:     frame,
		Clock:     time.Duration(frame) * time.Second / 60,
		Status:    game.MatchRunning,
		WinnerID:  game.NoParticipant,
		WinScore:  1000,
		CreatedAt: time.Now(),
	}
	for i, score := range scores {
		snap.Participants = append(snap.Participants, game.ParticipantSnapshot{
			ID:          i,
			Color:       game.ColorOf(i),
			State:       game.StateIdle,
			Score:       score,
			TargetID:    game.NoParticipant,
			AttackerID:  game.NoParticipant,
			ShieldRatio: 1,
			Connected:   true,
		})
	}
	return snap
}

func TestMessageFramingOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	frame := FrameFromSnapshot(testSnapshot(12, 40, 160))
	frame.Sequence = 7

	errCh := make(chan error, 2)
	go func() {
		errCh <- WriteMessage(server, MsgTypeFrame, frame)
		errCh <- WriteMessage(server, MsgTypePing, nil)
	}()

	msgType, body, err := ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != MsgTypeFrame {
		t.Fatalf("Expected frame message, got %#x", msgType)
	}
	got, err := DecodeFrame(body)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if got.Sequence != 7 || got.Frame != 12 || got.MatchID != "match-1" {
		t.Errorf("Expected sequence 7 frame 12, got %+v", got)
	}
	if len(got.Participants) != 2 || got.Participants[1].Score != 160 {
		t.Errorf("Expected two participants with scores, got %+v", got.Participants)
	}
	if got.Participants[0].State != "IDLE" || got.Status != "running" {
		t.Errorf("Expected names for state and status, got %q and %q", got.Participants[0].State, got.Status)
	}

	msgType, body, err = ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != MsgTypePing || len(body) != 0 {
		t.Errorf("Expected an empty ping, got %#x with %d bytes", msgType, len(body))
	}

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("WriteMessage failed: %v", err)
		}
	}
}

func TestReadMessageRejectsBadHeaders(t *testing.T) {
	header := func(version uint16, length uint32) []byte {
		b := make([]byte, HeaderSize)
		binary.LittleEndian.PutUint16(b[0:2], version)
		b[2] = MsgTypeFrame
		binary.LittleEndian.PutUint32(b[4:8], length)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"wrong version", header(ProtocolVersion+1, 0), ErrVersionMismatch},
		{"oversized", header(ProtocolVersion, MaxMessageSize+1), ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadMessage(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, _, err := ReadMessage(bytes.NewReader(header(ProtocolVersion, 10)[:4])); err == nil {
		t.Error("Expected an error for a truncated header")
	}
}

func TestFrameLeader(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   int
	}{
		{"clear leader", []int{40, 160, 0}, 1},
		{"tie goes to lowest id", []int{200, 40, 200}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leader := FrameFromSnapshot(testSnapshot(1, tt.scores...)).Leader()
			if leader == nil || leader.ID != tt.want {
				t.Errorf("Expected leader %d, got %+v", tt.want, leader)
			}
		})
	}

	if (&ScoreboardFrame{}).Leader() != nil {
		t.Error("Expected no leader for an empty frame")
	}
}

func TestPublisherToSubscriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wizardry.sock")

	pub := NewPublisher(path, 100)
	pub.SetHello(3, 1000, 60)
	if err := pub.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pub.Stop()

	frames := make(chan *ScoreboardFrame, 16)
	sub := NewSubscriber(path)
	sub.OnFrame(func(f *ScoreboardFrame) {
		select {
		case frames <- f:
		default:
		}
	})
	sub.Start()
	defer sub.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for sub.Hello() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hello := sub.Hello(); hello == nil || hello.Participants != 3 {
		t.Fatalf("Expected a hello for 3 wands, got %+v", hello)
	}

	pub.Publish(testSnapshot(30, 0, 40, 160))

	select {
	case f := <-frames:
		if f.Frame != 30 || len(f.Participants) != 3 {
			t.Errorf("Expected frame 30 with 3 participants, got %+v", f)
		}
		if f.Sequence != 1 {
			t.Errorf("Expected sequence 1, got %d", f.Sequence)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected a frame")
	}

	if latest := sub.Latest(); latest == nil || latest.Frame != 30 {
		t.Errorf("Expected latest frame 30, got %+v", latest)
	}
	if clients, sent, _ := pub.GetStats(); clients != 1 || sent < 1 {
		t.Errorf("Expected 1 client and a sent frame, got %d and %d", clients, sent)
	}
}

func TestPublisherCountsSupersededSnapshots(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	pub := NewPublisher("unused", 1)
	pub.Serve(ln)
	defer pub.Stop()

	for i := uint64(1); i <= 5; i++ {
		pub.Publish(testSnapshot(i, 0, 0))
	}
	if _, _, dropped := pub.GetStats(); dropped != 4 {
		t.Errorf("Expected 4 superseded snapshots, got %d", dropped)
	}
}
