package game

import (
	"math"
	"time"

	"github.com/tanema/gween/ease"
)

// Color is an LED color with channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Scale multiplies every channel, clamping to [0,1].
func (c Color) Scale(k float64) Color {
	return Color{clamp01(c.R * k), clamp01(c.G * k), clamp01(c.B * k)}
}

// RGB8 returns the color as 8-bit channels for the device.
func (c Color) RGB8() [3]uint8 {
	return [3]uint8{to8(c.R), to8(c.G), to8(c.B)}
}

func to8(v float64) uint8 { return uint8(math.Round(clamp01(v) * 255)) }

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Palette
var (
	ColorPink         = Color{1, 0, 1}
	ColorGreen        = Color{0, 1, 0}
	ColorRed          = Color{1, 0, 0}
	ColorCyan         = Color{0, 1, 1}
	ColorShield       = Color{1, 1, 1}
	ColorBrokenShield = Color{0.2, 0.2, 0.2}
	ColorBlack        = Color{}

	// ParticipantColors is indexed by participant id. Target buttons share these colors.
	ParticipantColors = [MaxParticipants]Color{ColorPink, ColorGreen, ColorRed, ColorCyan}

	rainbowPalette = []Color{
		{1, 0, 0}, {1, 0.5, 0}, {1, 1, 0}, {0, 1, 0}, {0, 1, 1}, {0, 0, 1}, {1, 0, 1},
	}
)

// ColorOf returns the assigned color of a participant id.
func ColorOf(id int) Color {
	if id < 0 || id >= len(ParticipantColors) {
		return ColorBlack
	}
	return ParticipantColors[id]
}

// Feedback timings.
const (
	ResultBlinkDuration  = 2 * time.Second
	ResultBlinkPeriod    = 100 * time.Millisecond
	ResultVibration      = 1.0
	ChargedBlinkDuration = 10 * time.Second
	ChargedBlinkPeriod   = 500 * time.Millisecond
	ShieldFailDuration   = 1 * time.Second
	ShieldFailPeriod     = 200 * time.Millisecond
	RainbowStep          = 150 * time.Millisecond

	glowFloor     = 0.01
	glowAmplitude = 0.05
)

// Output is what the actuator shows for one frame.
type Output struct {
	LED    Color   `json:"led"`
	Rumble float64 `json:"rumble"`
}

// Hold is the state-driven output (charging, shielding, countering) that
// sits between the timed effects and the idle glow.
type Hold struct {
	Active bool
	LED    Color
	Rumble float64
}

type blinkTimer struct {
	active      bool
	on, off     Color
	start, stop time.Duration
	period      time.Duration
}

type rainbowTimer struct {
	active      bool
	start, stop time.Duration // stop <= start means endless
}

type vibrationTimer struct {
	active    bool
	intensity float64
	stop      time.Duration
}

// Presentation holds the timers of a participant's feedback. It never
// touches combat state; Render is a pure function of time and timers.
type Presentation struct {
	color     Color
	blink     blinkTimer
	rainbow   rainbowTimer
	vibration vibrationTimer
}

// NewPresentation creates the feedback state for a participant color.
func NewPresentation(color Color) Presentation {
	return Presentation{color: color}
}

// Blink alternates on/off for duration. The first half of each period shows on.
// Starting a blink replaces any rainbow.
func (p *Presentation) Blink(now, duration, period time.Duration, on, off Color) {
	p.rainbow = rainbowTimer{}
	p.blink = blinkTimer{active: true, on: on, off: off, start: now, stop: now + duration, period: period}
}

// Rainbow steps through the palette for duration, or forever when duration <= 0.
// Starting a rainbow replaces any blink.
func (p *Presentation) Rainbow(now, duration time.Duration) {
	p.blink = blinkTimer{}
	stop := now
	if duration > 0 {
		stop = now + duration
	}
	p.rainbow = rainbowTimer{active: true, start: now, stop: stop}
}

// Vibrate runs the rumble motor at intensity for duration, alongside any visual mode.
func (p *Presentation) Vibrate(now, duration time.Duration, intensity float64) {
	p.vibration = vibrationTimer{active: true, intensity: clamp01(intensity), stop: now + duration}
}

// StopVisual cancels blink and rainbow.
func (p *Presentation) StopVisual() {
	p.blink = blinkTimer{}
	p.rainbow = rainbowTimer{}
}

// StopAll cancels every timer.
func (p *Presentation) StopAll() {
	p.StopVisual()
	p.vibration = vibrationTimer{}
}

// Blinking reports whether a blink is still running at now.
func (p Presentation) Blinking(now time.Duration) bool {
	return p.blink.active && now <= p.blink.stop
}

// Vibrating reports whether a vibration pulse is still running at now.
func (p Presentation) Vibrating(now time.Duration) bool {
	return p.vibration.active && now < p.vibration.stop
}

func (p Presentation) rainbowOn(now time.Duration) bool {
	if !p.rainbow.active {
		return false
	}
	return p.rainbow.stop <= p.rainbow.start || now <= p.rainbow.stop
}

// Render computes the output at now. Priority: blink or rainbow, then hold, then glow.
// The vibration pulse overrides the hold rumble while it runs.
func (p Presentation) Render(now time.Duration, hold Hold) Output {
	var out Output

	switch {
	case p.Blinking(now):
		out.LED = p.blinkColor(now)
	case p.rainbowOn(now):
		step := int((now - p.rainbow.start) / RainbowStep)
		out.LED = rainbowPalette[step%len(rainbowPalette)]
	case hold.Active:
		out.LED = hold.LED
	default:
		out.LED = p.color.Scale(Glow(now))
	}

	switch {
	case p.Vibrating(now):
		out.Rumble = p.vibration.intensity
	case hold.Active:
		out.Rumble = clamp01(hold.Rumble)
	}
	return out
}

func (p Presentation) blinkColor(now time.Duration) Color {
	if p.blink.period <= 0 {
		return p.blink.on
	}
	phase := (now - p.blink.start) % p.blink.period
	if 2*phase <= p.blink.period {
		return p.blink.on
	}
	return p.blink.off
}

// Glow is the idle breathing brightness |sin(2t)|*0.05 + 0.01, built from two
// sine easing quarters: out-sine rising then in-sine falling.
func Glow(now time.Duration) float64 {
	const quarter = float32(math.Pi / 4)
	t := float32(math.Mod(now.Seconds(), math.Pi/2))

	var level float32
	if t < quarter {
		level = ease.OutSine(t, 0, 1, quarter)
	} else {
		level = ease.InSine(t-quarter, 1, -1, quarter)
	}
	return float64(level)*glowAmplitude + glowFloor
}
