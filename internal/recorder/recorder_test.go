package recorder

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wizardry/internal/game"

	"github.com/gopxl/beep/wav"
)

func snapshot(matchID string, frame uint64, status game.MatchStatus, rumble float64) *game.Snapshot {
	return &game.Snapshot{
		MatchID:  matchID,
		Frame:    frame,
		Status:   status,
		WinnerID: game.NoParticipant,
		Participants: []game.ParticipantSnapshot{
			{ID: 0, Color: game.ColorOf(0), LED: game.ColorOf(0), Rumble: rumble},
			{ID: 1, Color: game.ColorOf(1), LED: game.ColorShield},
		},
	}
}

func TestRecordStartsOverOnNewMatch(t *testing.T) {
	r := New(Config{}, time.Second/60)

	for i := uint64(1); i <= 10; i++ {
		r.Record(snapshot("a", i, game.MatchRunning, 0))
	}
	if got := r.Recording().Len(); got != 10 {
		t.Fatalf("Expected 10 samples, got %d", got)
	}

	r.Record(snapshot("b", 1, game.MatchRunning, 0.5))
	rec := r.Recording()
	if rec.MatchID != "b" || rec.Len() != 1 {
		t.Fatalf("Expected a fresh recording for match b, got %s with %d samples", rec.MatchID, rec.Len())
	}
	if rec.Tracks[0][0].Rumble != 0.5 {
		t.Errorf("Expected rumble 0.5, got %v", rec.Tracks[0][0].Rumble)
	}
	if rec.Tracks[1][0].LED != [3]uint8{255, 255, 255} {
		t.Errorf("Expected a white shield LED, got %v", rec.Tracks[1][0].LED)
	}
	if rec.Colors[0] != [3]uint8{255, 0, 255} {
		t.Errorf("Expected pink for wand 0, got %v", rec.Colors[0])
	}
}

func TestRecordingIsACopy(t *testing.T) {
	r := New(Config{}, time.Second/60)
	r.Record(snapshot("a", 1, game.MatchRunning, 0))

	rec := r.Recording()
	r.Record(snapshot("a", 2, game.MatchRunning, 0))
	if rec.Len() != 1 {
		t.Errorf("Expected the copy to keep 1 sample, got %d", rec.Len())
	}
}

func TestWriteTimelinePNG(t *testing.T) {
	r := New(Config{PixelsPerS: 60}, time.Second/60)
	for i := uint64(1); i <= 120; i++ {
		r.Record(snapshot("a", i, game.MatchRunning, 1))
	}
	path := filepath.Join(t.TempDir(), "timeline.png")
	if err := r.Recording().WriteTimelinePNG(path); err != nil {
		t.Fatalf("WriteTimelinePNG failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	wantW := margin*3 + swatchSize + 120
	wantH := margin*2 + 2*rowHeight + rowGap
	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Errorf("Expected %dx%d, got %dx%d", wantW, wantH, b.Dx(), b.Dy())
	}

	// Top of the first strip shows the LED color, above the rumble bar
	r8, g8, b8, _ := img.At(margin*2+swatchSize+10, margin+1).RGBA()
	if r8>>8 != 255 || g8>>8 != 0 || b8>>8 != 255 {
		t.Errorf("Expected a pink LED pixel, got %d,%d,%d", r8>>8, g8>>8, b8>>8)
	}
}

func TestWriteRumbleWAV(t *testing.T) {
	r := New(Config{SampleRate: 8000, RumbleHz: 100}, time.Second/50)
	for i := uint64(1); i <= 50; i++ {
		r.Record(snapshot("a", i, game.MatchRunning, 1))
	}
	path := filepath.Join(t.TempDir(), "rumble.wav")
	if err := r.Recording().WriteRumbleWAV(path); err != nil {
		t.Fatalf("WriteRumbleWAV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	s, format, err := wav.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	defer s.Close()

	if format.SampleRate != 8000 || format.NumChannels != 1 {
		t.Errorf("Expected 8000 Hz mono, got %d Hz with %d channels", format.SampleRate, format.NumChannels)
	}
	if s.Len() != 8000 {
		t.Errorf("Expected one second of samples, got %d", s.Len())
	}
}

func TestEmptyRecording(t *testing.T) {
	rec := New(Config{}, 0).Recording()
	dir := t.TempDir()

	if err := rec.WriteTimelinePNG(filepath.Join(dir, "x.png")); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
	if err := rec.WriteFiles(dir); !errors.Is(err, ErrEmpty) {
		t.Errorf("Expected ErrEmpty, got %v", err)
	}
}

func TestMatchOverWritesFilesOnce(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Dir: dir, SampleRate: 8000}, time.Second/60)

	r.Record(snapshot("final", 1, game.MatchRunning, 0))
	r.Record(snapshot("final", 2, game.MatchOver, 1))
	r.Record(snapshot("final", 2, game.MatchOver, 1))
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, name := range []string{"final-timeline.png", "final-rumble.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}
