package game

import "testing"

func TestStandingsOrderAndTies(t *testing.T) {
	snap := &Snapshot{Participants: []ParticipantSnapshot{
		{ID: 0, Score: 60},
		{ID: 1, Score: 100},
		{ID: 2, Score: 60},
		{ID: 3, Score: -10},
	}}

	want := []Standing{
		{Rank: 1, ID: 1, Score: 100},
		{Rank: 2, ID: 0, Score: 60},
		{Rank: 2, ID: 2, Score: 60},
		{Rank: 4, ID: 3, Score: -10},
	}
	got := snap.Standings()
	if len(got) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Row %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestNewSnapshotCopiesArena(t *testing.T) {
	a := NewArena(DefaultRules(), 3)
	if !a.StartCharge(0, 2) {
		t.Fatal("StartCharge rejected")
	}
	a.participants[0].charge = a.Rules().ChargeCap / 4
	a.participants[1].shield = a.Rules().ShieldEnergy / 2

	snap := NewSnapshot("match-1", a)
	if snap.MatchID != "match-1" || snap.Status != MatchRunning || snap.WinnerID != NoParticipant {
		t.Errorf("Unexpected header %+v", snap)
	}
	if len(snap.Participants) != 3 {
		t.Fatalf("Expected 3 participants, got %d", len(snap.Participants))
	}

	p0 := snap.Participants[0]
	if p0.State != StateCharging || p0.TargetID != 2 || p0.ChargeRatio != 0.25 {
		t.Errorf("Unexpected charging participant %+v", p0)
	}
	if snap.Participants[1].ShieldRatio != 0.5 {
		t.Errorf("Expected half shield, got %v", snap.Participants[1].ShieldRatio)
	}
	if snap.Participants[2].Color != ColorRed {
		t.Errorf("Expected red third participant, got %v", snap.Participants[2].Color)
	}

	// The snapshot must not follow later changes
	a.StopCharge(0)
	if snap.Participants[0].State != StateCharging {
		t.Error("Snapshot changed with the arena")
	}
}
