// Package recorder keeps the LED and rumble output of every wand for the
// current match and renders it to a timeline image and a rumble track.
package recorder

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wizardry/internal/game"
)

// MaxSamples bounds a recording to ten minutes at 60 ticks per second.
const MaxSamples = 10 * 60 * 60

var ErrEmpty = errors.New("recorder: nothing recorded")

// Config controls where and how recordings are written.
type Config struct {
	Dir        string // empty disables writing on match over
	SampleRate int
	RumbleHz   float64
	PixelsPerS int
}

// Sample is one wand's output for one tick.
type Sample struct {
	LED    [3]uint8
	Rumble float64
}

// Recorder samples published snapshots. Record is called from the engine
// loop; files are written from a separate goroutine.
type Recorder struct {
	cfg  Config
	tick time.Duration

	mu      sync.Mutex
	matchID string
	tracks  [][]Sample
	colors  [][3]uint8
	written bool

	wg sync.WaitGroup
}

// New creates a recorder for an engine ticking every tick.
func New(cfg Config, tick time.Duration) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if cfg.RumbleHz <= 0 {
		cfg.RumbleHz = 90
	}
	if cfg.PixelsPerS <= 0 {
		cfg.PixelsPerS = 40
	}
	if tick <= 0 {
		tick = time.Second / 60
	}
	return &Recorder{cfg: cfg, tick: tick}
}

// Record appends one sample per participant. A new match id starts a new
// recording; a finished match is written once when Dir is set.
func (r *Recorder) Record(snap *game.Snapshot) {
	if snap == nil {
		return
	}

	r.mu.Lock()
	if snap.MatchID != r.matchID {
		r.reset(snap)
	}
	if len(r.tracks) > 0 && len(r.tracks[0]) < MaxSamples {
		for i, p := range snap.Participants {
			r.tracks[i] = append(r.tracks[i], Sample{LED: p.LED.RGB8(), Rumble: p.Rumble})
		}
	}

	var finished *Recording
	if snap.Status == game.MatchOver && !r.written && r.cfg.Dir != "" {
		r.written = true
		finished = r.recordingLocked()
	}
	r.mu.Unlock()

	if finished != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := finished.WriteFiles(r.cfg.Dir); err != nil {
				log.Printf("⚠️ Recording not written: %v", err)
			}
		}()
	}
}

func (r *Recorder) reset(snap *game.Snapshot) {
	r.matchID = snap.MatchID
	r.written = false
	r.tracks = make([][]Sample, len(snap.Participants))
	r.colors = make([][3]uint8, len(snap.Participants))
	for i, p := range snap.Participants {
		r.colors[i] = p.Color.RGB8()
	}
}

// Recording returns a copy of the current match's samples.
func (r *Recorder) Recording() *Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordingLocked()
}

func (r *Recorder) recordingLocked() *Recording {
	rec := &Recording{
		MatchID: r.matchID,
		Tick:    r.tick,
		Colors:  append([][3]uint8(nil), r.colors...),
		Tracks:  make([][]Sample, len(r.tracks)),
		cfg:     r.cfg,
	}
	for i, t := range r.tracks {
		rec.Tracks[i] = append([]Sample(nil), t...)
	}
	return rec
}

// Close waits for pending writes and saves the current match if it was
// never written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	pending := !r.written && r.cfg.Dir != "" && r.matchID != ""
	r.written = true
	rec := r.recordingLocked()
	r.mu.Unlock()

	r.wg.Wait()
	if !pending {
		return nil
	}
	if err := rec.WriteFiles(r.cfg.Dir); err != nil && !errors.Is(err, ErrEmpty) {
		return err
	}
	return nil
}

// Recording is an immutable copy of one match's output.
type Recording struct {
	MatchID string
	Tick    time.Duration
	Colors  [][3]uint8
	Tracks  [][]Sample

	cfg Config
}

// Len returns the number of ticks recorded.
func (rec *Recording) Len() int {
	if len(rec.Tracks) == 0 {
		return 0
	}
	return len(rec.Tracks[0])
}

// Duration returns the recorded time span.
func (rec *Recording) Duration() time.Duration {
	return time.Duration(rec.Len()) * rec.Tick
}

// WriteFiles writes <match>-timeline.png and <match>-rumble.wav into dir.
func (rec *Recording) WriteFiles(dir string) error {
	if rec.Len() == 0 {
		return ErrEmpty
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create recorder dir: %w", err)
	}

	png := filepath.Join(dir, rec.MatchID+"-timeline.png")
	if err := rec.WriteTimelinePNG(png); err != nil {
		return err
	}
	wav := filepath.Join(dir, rec.MatchID+"-rumble.wav")
	if err := rec.WriteRumbleWAV(wav); err != nil {
		return err
	}

	log.Printf("🎞️ Match %s recorded (%s): %s, %s", rec.MatchID, rec.Duration().Round(time.Second), png, wav)
	return nil
}
