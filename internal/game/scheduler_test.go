package game

import (
	"testing"
	"time"
)

func TestSchedulerFiresInDueThenScheduleOrder(t *testing.T) {
	var s scheduler
	s.after(0, 3*time.Second, counterTimeout{defender: 3})
	s.after(0, time.Second, counterTimeout{defender: 1})
	s.after(500*time.Millisecond, 500*time.Millisecond, counterTimeout{defender: 2})

	if _, ok := s.popDue(999 * time.Millisecond); ok {
		t.Fatal("Expected nothing due before 1s")
	}

	var got []int
	for {
		task, ok := s.popDue(2 * time.Second)
		if !ok {
			break
		}
		got = append(got, task.defender)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Expected [1 2], got %v", got)
	}
	if s.pending() != 1 {
		t.Errorf("Expected 1 pending task, got %d", s.pending())
	}
}
