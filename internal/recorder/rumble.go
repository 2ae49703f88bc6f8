package recorder

import (
	"fmt"
	"math"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"
)

// rumbleTrack is a sine tone per wand whose amplitude follows that wand's
// rumble level, summed into one channel. Each wand gets its own pitch so
// overlapping vibrations stay audible.
type rumbleTrack struct {
	tracks   [][]Sample
	freqs    []float64
	phases   []float64
	rate     beep.SampleRate
	perTick  int
	position int
	total    int
}

func newRumbleTrack(rec *Recording) *rumbleTrack {
	rate := beep.SampleRate(rec.cfg.SampleRate)
	perTick := rate.N(rec.Tick)
	if perTick < 1 {
		perTick = 1
	}

	t := &rumbleTrack{
		tracks:  rec.Tracks,
		freqs:   make([]float64, len(rec.Tracks)),
		phases:  make([]float64, len(rec.Tracks)),
		rate:    rate,
		perTick: perTick,
		total:   perTick * rec.Len(),
	}
	for i := range t.freqs {
		t.freqs[i] = rec.cfg.RumbleHz * (1 + 0.25*float64(i))
	}
	return t
}

func (t *rumbleTrack) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.total {
			return i, i > 0
		}

		tick := t.position / t.perTick
		var val float64
		for w, track := range t.tracks {
			val += math.Min(track[tick].Rumble, 1) * math.Sin(2*math.Pi*t.phases[w])
			t.phases[w] += t.freqs[w] / float64(t.rate)
			t.phases[w] -= math.Floor(t.phases[w])
		}

		samples[i][0] = val
		samples[i][1] = val
		t.position++
	}
	return len(samples), true
}

func (t *rumbleTrack) Err() error { return nil }

// newVolume scales s linearly; zero is silent since log2(0) is -Inf.
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// WriteRumbleWAV renders the rumble envelope of every wand as a mono
// 16-bit WAV file.
func (rec *Recording) WriteRumbleWAV(path string) error {
	if rec.Len() == 0 {
		return ErrEmpty
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(rec.cfg.SampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	// Keep the sum of all tones inside [-1, 1]
	streamer := newVolume(newRumbleTrack(rec), 1/float64(len(rec.Tracks)))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create rumble track: %w", err)
	}
	if err := wav.Encode(f, streamer, format); err != nil {
		f.Close()
		return fmt.Errorf("encode rumble track: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close rumble track: %w", err)
	}
	return nil
}
