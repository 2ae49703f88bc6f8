package game

import (
	"math"
	"testing"
)

func sample(x, y, z float64) MotionSample {
	return MotionSample{Accel: Vec3{x, y, z}}
}

func TestMotionHistoryEvictsOldest(t *testing.T) {
	h := NewMotionHistory(3)
	for i := 1; i <= 5; i++ {
		h.Record(sample(0, float64(i), 0))
	}

	if h.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", h.Len())
	}
	// 3, 4, 5 remain
	if got := h.AveragedVerticalComponent(); got != 4 {
		t.Errorf("Expected average 4, got %v", got)
	}
	if h.at(0).Y != 3 || h.at(2).Y != 5 {
		t.Errorf("Expected oldest 3 and newest 5, got %v and %v", h.at(0).Y, h.at(2).Y)
	}
}

func TestMotionHistoryAveragedVector(t *testing.T) {
	h := NewMotionHistory(DefaultHistorySize)
	if got := h.AveragedVector(); got != (Vec3{}) {
		t.Errorf("Expected zero vector for empty history, got %v", got)
	}

	h.Record(sample(1, 2, 3))
	h.Record(sample(3, 4, 5))
	got := h.AveragedVector()
	if got != (Vec3{2, 3, 4}) {
		t.Errorf("Expected {2 3 4}, got %v", got)
	}
}

func TestMotionHistoryIsStill(t *testing.T) {
	tests := []struct {
		name    string
		samples []MotionSample
		want    bool
	}{
		{"empty", nil, false},
		{"single sample", []MotionSample{sample(0, 1, 0)}, false},
		{"identical samples", []MotionSample{sample(0, 1, 0), sample(0, 1, 0), sample(0, 1, 0)}, true},
		{"small jitter", []MotionSample{sample(0, 1, 0), sample(0.1, 1, 0), sample(0, 1.1, 0)}, true},
		{"spike in the middle", []MotionSample{sample(0, 1, 0), sample(2, 1, 0), sample(0, 1, 0)}, false},
		{"spike at oldest pair", []MotionSample{sample(5, 0, 0), sample(0, 1, 0), sample(0, 1, 0)}, false},
		{"delta exactly at threshold", []MotionSample{sample(0, 0, 0), sample(1, 0, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMotionHistory(DefaultHistorySize)
			for _, s := range tt.samples {
				h.Record(s)
			}
			if got := h.IsStill(1.0); got != tt.want {
				t.Errorf("Expected IsStill=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestMotionHistoryStillnessAfterEviction(t *testing.T) {
	h := NewMotionHistory(4)
	h.Record(sample(10, 0, 0)) // evicted below
	for i := 0; i < 4; i++ {
		h.Record(sample(0, -1, 0))
	}
	if !h.IsStill(0.5) {
		t.Error("Expected history to be still once the spike was evicted")
	}
}

func TestMotionHistoryClear(t *testing.T) {
	h := NewMotionHistory(DefaultHistorySize)
	h.Record(sample(0, 1, 0))
	h.Record(sample(0, 1, 0))
	h.Clear()

	if h.Len() != 0 {
		t.Fatalf("Expected empty history, got %d samples", h.Len())
	}
	if h.IsStill(1) {
		t.Error("Expected cleared history to be not still")
	}
}

func TestVec3SqrMagnitude(t *testing.T) {
	v := Vec3{1, 2, 2}
	if got := v.SqrMagnitude(); math.Abs(got-9) > 1e-9 {
		t.Errorf("Expected 9, got %v", got)
	}
}
