package game

import (
	"sort"
	"time"
)

// ParticipantSnapshot is an immutable copy of participant state for readers.
// Uses value types (not pointers) so it can be shared across goroutines.
type ParticipantSnapshot struct {
	ID          int     `json:"id"`
	Color       Color   `json:"color"`
	State       State   `json:"state"`
	Score       int     `json:"score"`
	TargetID    int     `json:"targetId"`
	AttackerID  int     `json:"attackerId"`
	ChargeRatio float64 `json:"chargeRatio"`
	ShieldRatio float64 `json:"shieldRatio"`
	Connected   bool    `json:"connected"`
	Forfeited   bool    `json:"forfeited"`
	LED         Color   `json:"led"`
	Rumble      float64 `json:"rumble"`
}

// Snapshot is the state of a match at the end of a frame.
type Snapshot struct {
	MatchID      string                `json:"matchId"`
	Frame        uint64                `json:"frame"`
	Clock        time.Duration         `json:"clockNs"`
	Status       MatchStatus           `json:"status"`
	WinnerID     int                   `json:"winnerId"`
	WinScore     int                   `json:"winScore"`
	Participants []ParticipantSnapshot `json:"participants"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// NewSnapshot copies the arena state. Must run on the goroutine that owns the arena.
func NewSnapshot(matchID string, a *Arena) *Snapshot {
	rules := a.Rules()
	s := &Snapshot{
		MatchID:      matchID,
		Frame:        a.Frame(),
		Clock:        a.Clock(),
		Status:       a.Status(),
		WinnerID:     a.Winner(),
		WinScore:     rules.WinScore,
		Participants: make([]ParticipantSnapshot, 0, a.Len()),
		CreatedAt:    time.Now(),
	}
	for _, p := range a.participants {
		out := p.Output()
		s.Participants = append(s.Participants, ParticipantSnapshot{
			ID:          p.id,
			Color:       p.color,
			State:       p.state,
			Score:       p.score,
			TargetID:    p.targetID,
			AttackerID:  p.attackerID,
			ChargeRatio: clamp01(p.charge / rules.ChargeCap),
			ShieldRatio: clamp01(float64(p.shield) / float64(rules.ShieldEnergy)),
			Connected:   p.connected,
			Forfeited:   p.forfeited,
			LED:         out.LED,
			Rumble:      out.Rumble,
		})
	}
	return s
}

// Standing is one row of the score table.
type Standing struct {
	Rank  int `json:"rank"`
	ID    int `json:"id"`
	Score int `json:"score"`
}

// Standings ranks participants by score (descending), then by id for stability.
func (s *Snapshot) Standings() []Standing {
	rows := make([]Standing, 0, len(s.Participants))
	for _, p := range s.Participants {
		rows = append(rows, Standing{ID: p.ID, Score: p.Score})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].ID < rows[j].ID
	})
	for i := range rows {
		rows[i].Rank = i + 1
		if i > 0 && rows[i].Score == rows[i-1].Score {
			rows[i].Rank = rows[i-1].Rank
		}
	}
	return rows
}
