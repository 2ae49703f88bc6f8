package wand

import (
	"encoding/json"
	"errors"
	"fmt"

	"wizardry/internal/game"
)

// Message types
const (
	MsgHello    = "hello"
	MsgMotion   = "motion"
	MsgWelcome  = "welcome"
	MsgFeedback = "feedback"
	MsgError    = "error"
)

// MaxMessageSize caps a single inbound frame.
const MaxMessageSize = 4096

var (
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLarge = errors.New("message too large")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrUnknownButton   = errors.New("unknown button")
	ErrWandBusy        = errors.New("wand already driven")
)

// Envelope wraps every message: a type tag and its raw payload.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// Hello is the first message a device bridge sends.
type Hello struct {
	Device string `json:"device,omitempty"`
}

// Motion is one IMU sample plus button edges since the previous sample.
type Motion struct {
	Accel    [3]float64 `json:"accel"`
	Gyro     [3]float64 `json:"gyro"`
	Pressed  []string   `json:"pressed,omitempty"`
	Released []string   `json:"released,omitempty"`
}

// Welcome tells the bridge which participant it drives.
type Welcome struct {
	ID      int      `json:"id"`
	Color   [3]uint8 `json:"color"`
	MatchID string   `json:"match,omitempty"`
}

// Feedback is the LED color and rumble the wand should show.
type Feedback struct {
	LED    [3]uint8 `json:"led"`
	Rumble float64  `json:"rumble"`
}

// ErrorMessage reports a rejected message back to the bridge.
type ErrorMessage struct {
	Message string `json:"message"`
}

// Encode wraps payload in an envelope of type t.
func Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: %w", ErrUnknownMessage)
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{T: t, P: pb})
}

// Decode parses an envelope without looking at its payload.
func Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	if len(b) > MaxMessageSize {
		return Envelope{}, ErrMessageTooLarge
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.T == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("%w: empty payload for %q", ErrInvalidPayload, env.T)
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}

// Input converts the sample into an engine input for participant id.
// Force and rotation are squared magnitudes, matching the rule thresholds.
func (m Motion) Input(id int) (game.Input, error) {
	edges, err := Edges(m.Pressed, m.Released)
	if err != nil {
		return game.Input{}, err
	}
	accel := game.Vec3{X: m.Accel[0], Y: m.Accel[1], Z: m.Accel[2]}
	gyro := game.Vec3{X: m.Gyro[0], Y: m.Gyro[1], Z: m.Gyro[2]}
	return game.Input{
		Kind:      game.InputMotion,
		ID:        id,
		Accel:     accel,
		PeakForce: accel.SqrMagnitude(),
		Rotation:  gyro.SqrMagnitude(),
		Buttons:   edges,
	}, nil
}

// FeedbackFrom converts an engine output to its wire form.
func FeedbackFrom(out game.Output) Feedback {
	return Feedback{LED: out.LED.RGB8(), Rumble: out.Rumble}
}
