package wand

import (
	"errors"
	"strings"
	"testing"

	"wizardry/internal/game"
)

func TestDecodeRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyMessage},
		{"too large", []byte(`{"t":"motion","p":"` + strings.Repeat("x", MaxMessageSize) + `"}`), ErrMessageTooLarge},
		{"not json", []byte(`motion`), ErrInvalidPayload},
		{"missing type", []byte(`{"p":{}}`), ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeDecodeFeedback(t *testing.T) {
	data, err := Encode(MsgFeedback, FeedbackFrom(game.Output{LED: game.ColorGreen, Rumble: 0.5}))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.T != MsgFeedback {
		t.Errorf("Expected type %q, got %q", MsgFeedback, env.T)
	}
	fb, err := DecodePayload[Feedback](env)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if fb.LED != game.ColorGreen.RGB8() || fb.Rumble != 0.5 {
		t.Errorf("Unexpected feedback %+v", fb)
	}

	if _, err := DecodePayload[Feedback](Envelope{T: MsgFeedback}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Expected ErrInvalidPayload for an empty payload, got %v", err)
	}
}

func TestMotionInput(t *testing.T) {
	m := Motion{
		Accel:    [3]float64{3, 4, 0},
		Gyro:     [3]float64{1, 2, 2},
		Pressed:  []string{"triangle"},
		Released: []string{"square"},
	}
	in, err := m.Input(1)
	if err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	if in.ID != 1 || in.Kind != game.InputMotion {
		t.Errorf("Unexpected header %+v", in)
	}
	if in.PeakForce != 25 {
		t.Errorf("Expected squared force 25, got %v", in.PeakForce)
	}
	if in.Rotation != 9 {
		t.Errorf("Expected squared rotation 9, got %v", in.Rotation)
	}
	want := []game.ButtonEdge{
		{Button: game.ButtonTarget0, Pressed: false},
		{Button: game.ButtonTarget1, Pressed: true},
	}
	if len(in.Buttons) != len(want) || in.Buttons[0] != want[0] || in.Buttons[1] != want[1] {
		t.Errorf("Expected release before press %+v, got %+v", want, in.Buttons)
	}

	m.Pressed = []string{"start"}
	if _, err := m.Input(1); !errors.Is(err, ErrUnknownButton) {
		t.Errorf("Expected ErrUnknownButton, got %v", err)
	}
}

func TestButtonNames(t *testing.T) {
	tests := []struct {
		name string
		want game.Button
	}{
		{"trigger", game.ButtonShield},
		{"move", game.ButtonCounter},
		{"square", game.TargetButton(0)},
		{"triangle", game.TargetButton(1)},
		{"circle", game.TargetButton(2)},
		{"cross", game.TargetButton(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := ParseButton(tt.name)
			if !ok || b != tt.want {
				t.Errorf("Expected %v, got %v (ok=%v)", tt.want, b, ok)
			}
			if got := ButtonName(b); got != tt.name {
				t.Errorf("Expected name %q, got %q", tt.name, got)
			}
		})
	}
}
