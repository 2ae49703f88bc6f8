package game

// Vec3 is a 3-axis sensor reading. Y is the vertical axis.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// SqrMagnitude avoids the sqrt; all motion thresholds are expressed squared.
func (v Vec3) SqrMagnitude() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

// MotionSample is one acceleration reading. Its position in the history is its timestamp.
type MotionSample struct {
	Accel Vec3
}

// DefaultHistorySize is the number of frames kept for smoothing and stillness.
const DefaultHistorySize = 15

// MotionHistory is a fixed-capacity FIFO of motion samples, oldest evicted first.
type MotionHistory struct {
	buf   []Vec3
	start int // index of the oldest sample
	count int
}

// NewMotionHistory creates a history holding at most size samples.
func NewMotionHistory(size int) *MotionHistory {
	if size < 2 {
		size = DefaultHistorySize
	}
	return &MotionHistory{buf: make([]Vec3, size)}
}

// Record appends a sample, evicting the oldest one when full.
func (h *MotionHistory) Record(s MotionSample) {
	if h.count < len(h.buf) {
		h.buf[(h.start+h.count)%len(h.buf)] = s.Accel
		h.count++
		return
	}
	h.buf[h.start] = s.Accel
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored samples.
func (h *MotionHistory) Len() int { return h.count }

// Cap returns the maximum number of samples.
func (h *MotionHistory) Cap() int { return len(h.buf) }

// Clear drops every sample.
func (h *MotionHistory) Clear() {
	h.start = 0
	h.count = 0
}

// at returns the i-th sample, 0 being the oldest.
func (h *MotionHistory) at(i int) Vec3 {
	return h.buf[(h.start+i)%len(h.buf)]
}

// AveragedVector returns the mean of all stored samples, or the zero vector when empty.
func (h *MotionHistory) AveragedVector() Vec3 {
	if h.count == 0 {
		return Vec3{}
	}
	var sum Vec3
	for i := 0; i < h.count; i++ {
		sum = sum.Add(h.at(i))
	}
	n := float64(h.count)
	return Vec3{sum.X / n, sum.Y / n, sum.Z / n}
}

// AveragedVerticalComponent is the smoothed orientation used for counters.
func (h *MotionHistory) AveragedVerticalComponent() float64 {
	return h.AveragedVector().Y
}

// IsStill reports whether every consecutive pair of samples, newest to oldest,
// differs by a squared magnitude below threshold. Fewer than two samples is never still.
func (h *MotionHistory) IsStill(threshold float64) bool {
	if h.count < 2 {
		return false
	}
	for i := h.count - 1; i > 0; i-- {
		if h.at(i).Sub(h.at(i-1)).SqrMagnitude() >= threshold {
			return false
		}
	}
	return true
}
