package game

import (
	"container/heap"
	"time"
)

// counterTimeout is the delayed end of a counter window. It carries
// everything needed to check, at fire time, that the window it was armed
// for is still the one open; otherwise firing is a no-op.
type counterTimeout struct {
	defender int
	attacker int
	window   uint64
}

type scheduledTask struct {
	due  time.Duration
	seq  uint64
	task counterTimeout
}

type taskQueue []scheduledTask

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q taskQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x interface{}) { *q = append(*q, x.(scheduledTask)) }
func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// scheduler runs delayed tasks against the arena's frame clock, never wall time.
// Tasks due at the same instant fire in scheduling order.
type scheduler struct {
	queue taskQueue
	seq   uint64
}

// after schedules task to fire once the clock reaches now+delay.
func (s *scheduler) after(now, delay time.Duration, task counterTimeout) {
	s.seq++
	heap.Push(&s.queue, scheduledTask{due: now + delay, seq: s.seq, task: task})
}

// popDue removes and returns the next task due at or before now.
func (s *scheduler) popDue(now time.Duration) (counterTimeout, bool) {
	if len(s.queue) == 0 || s.queue[0].due > now {
		return counterTimeout{}, false
	}
	return heap.Pop(&s.queue).(scheduledTask).task, true
}

// pending returns the number of scheduled tasks, including stale ones.
func (s *scheduler) pending() int { return len(s.queue) }
