package ipc

import (
	"sort"

	"wizardry/internal/game"
)

// FrameFromSnapshot converts an engine snapshot into the scoreboard view.
func FrameFromSnapshot(s *game.Snapshot) *ScoreboardFrame {
	msg := &ScoreboardFrame{
		Timestamp:    s.CreatedAt.UnixNano(),
		MatchID:      s.MatchID,
		Frame:        s.Frame,
		ClockNs:      int64(s.Clock),
		Status:       s.Status.String(),
		WinnerID:     s.WinnerID,
		WinScore:     s.WinScore,
		Participants: make([]ParticipantData, len(s.Participants)),
	}

	for i, p := range s.Participants {
		msg.Participants[i] = ParticipantData{
			ID:         p.ID,
			Color:      p.Color.RGB8(),
			State:      p.State.String(),
			Score:      p.Score,
			TargetID:   p.TargetID,
			AttackerID: p.AttackerID,
			Charge:     p.ChargeRatio,
			Shield:     p.ShieldRatio,
			Connected:  p.Connected,
			Forfeited:  p.Forfeited,
			LED:        p.LED.RGB8(),
			Rumble:     p.Rumble,
		}
	}
	return msg
}

// Leader returns the participant with the highest score, lowest id on ties,
// or nil for an empty frame.
func (f *ScoreboardFrame) Leader() *ParticipantData {
	if len(f.Participants) == 0 {
		return nil
	}
	ranked := make([]*ParticipantData, len(f.Participants))
	for i := range f.Participants {
		ranked[i] = &f.Participants[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked[0]
}
