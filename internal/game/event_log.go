package game

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize         = 1024                   // Circular buffer size
	DefaultEventsPerSec     = 500                    // Global rate limit
	DefaultEventBurst       = 100                    // Global burst
	MaxEventsPerParticipant = 60                     // Per-wand rate limit per second
	BatchFlushSize          = 64                     // Events per batch write
	BatchFlushInterval      = 100 * time.Millisecond // How often to flush
)

// EventLog is a bounded, rate-limited journal of combat events. Recent events
// stay queryable in memory; when a path is given they are also appended to a
// JSONL file by a background writer.
type EventLog struct {
	mu      sync.Mutex
	buffer  [EventBufferSize]Event
	seq     uint64 // last sequence assigned
	flushed uint64 // last sequence handed to the writer

	// Rate limiting keeps a misbehaving wand from flooding the journal
	globalLimiter       *rate.Limiter
	participantLimiters [MaxParticipants]*rate.Limiter

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// NewEventLog creates a new bounded event log
func NewEventLog(perSec float64, burst int) *EventLog {
	if perSec <= 0 {
		perSec = DefaultEventsPerSec
	}
	if burst <= 0 {
		burst = DefaultEventBurst
	}
	el := &EventLog{
		globalLimiter: rate.NewLimiter(rate.Limit(perSec), burst),
		stopChan:      make(chan struct{}),
	}
	for i := range el.participantLimiters {
		el.participantLimiters[i] = rate.NewLimiter(MaxEventsPerParticipant, MaxEventsPerParticipant/4)
	}
	return el
}

// Start begins the async writer goroutine. An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()

	return nil
}

// Stop flushes pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit records an event. Returns false if rate limited or the log is stopped.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}
	if id := event.ParticipantID; id >= 0 && id < MaxParticipants {
		if !el.participantLimiters[id].Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.mu.Lock()
	el.seq++
	event.Sequence = el.seq
	el.buffer[el.seq%EventBufferSize] = event
	// Writer fell a full ring behind: the oldest unwritten event is overwritten
	if el.seq-el.flushed > EventBufferSize {
		el.flushed++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	el.mu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitSimple is a convenience method to emit an event with automatic creation
func (el *EventLog) EmitSimple(eventType EventType, frame uint64, matchTime time.Duration, participantID int, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, frame, matchTime, participantID, payload))
}

// Recent returns up to n of the latest events, oldest first.
func (el *EventLog) Recent(n int) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	if n <= 0 || el.seq == 0 {
		return nil
	}
	if uint64(n) > el.seq {
		n = int(el.seq)
	}
	if n > EventBufferSize {
		n = EventBufferSize
	}
	out := make([]Event, 0, n)
	for s := el.seq - uint64(n) + 1; s <= el.seq; s++ {
		out = append(out, el.buffer[s%EventBufferSize])
	}
	return out
}

// Since returns buffered events with a sequence greater than seq, oldest first.
func (el *EventLog) Since(seq uint64) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	if seq >= el.seq {
		return nil
	}
	oldest := uint64(1)
	if el.seq > EventBufferSize {
		oldest = el.seq - EventBufferSize + 1
	}
	if seq+1 > oldest {
		oldest = seq + 1
	}
	out := make([]Event, 0, el.seq-oldest+1)
	for s := oldest; s <= el.seq; s++ {
		out = append(out, el.buffer[s%EventBufferSize])
	}
	return out
}

// LastSequence returns the sequence of the newest event.
func (el *EventLog) LastSequence() uint64 {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.seq
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// collectBatch takes the next unwritten events from the ring
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.flushed < el.seq && len(batch) < BatchFlushSize {
		el.flushed++
		batch = append(batch, el.buffer[el.flushed%EventBufferSize])
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.file.Write(append(data, '\n'))
	}
}

// GetStats returns journal counters for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.mu.Lock()
	pending := el.seq - el.flushed
	el.mu.Unlock()

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": pending,
		"running": el.running.Load(),
		"path":    el.filePath,
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events recorded
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
