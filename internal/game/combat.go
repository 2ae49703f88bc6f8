package game

import (
	"strings"
	"time"
)

// ScoreTable holds the score delta of every combat outcome.
// These are fixed by the game and must not drift between builds.
type ScoreTable struct {
	SuccessfulAttack  int `json:"successfulAttack"`  // attacker whose attack landed
	SuccessfulCounter int `json:"successfulCounter"` // defender who countered
	SuccessfulBlock   int `json:"successfulBlock"`   // defender who shielded
	CancelAttack      int `json:"cancelAttack"`      // attacker who let go of the target button
	InterruptedAttack int `json:"interruptedAttack"` // attacker who released before full charge
	BlockedAttack     int `json:"blockedAttack"`     // attacker stopped by a shield
	CounteredAttack   int `json:"counteredAttack"`   // attacker stopped by a counter
	SufferAttack      int `json:"sufferAttack"`      // defender who failed to defend
}

// DefaultScores returns the canonical score table.
func DefaultScores() ScoreTable {
	return ScoreTable{
		SuccessfulAttack:  100,
		SuccessfulCounter: 60,
		SuccessfulBlock:   10,
		CancelAttack:      -10,
		InterruptedAttack: -20,
		BlockedAttack:     -30,
		CounteredAttack:   -60,
		SufferAttack:      -60,
	}
}

// Balance defaults.
const (
	DefaultWinScore             = 1000
	DefaultForceLimit           = 2.5  // squared g
	DefaultChargeCap            = 4000 // summed squared gyro magnitude
	DefaultShieldEnergy         = 10 * time.Second
	DefaultCounterWindow        = 2 * time.Second
	DefaultOrientationThreshold = 0.5
	DefaultStillThreshold       = 1.0

	MinParticipants = 2
	MaxParticipants = 4
)

// DisconnectPolicy decides what happens to a match when a wand drops.
type DisconnectPolicy uint8

const (
	// DisconnectPause freezes the match clock until every wand is back.
	DisconnectPause DisconnectPolicy = iota
	// DisconnectForfeit removes the participant from the match for good.
	DisconnectForfeit
)

func (p DisconnectPolicy) String() string {
	if p == DisconnectForfeit {
		return "forfeit"
	}
	return "pause"
}

// MarshalText writes the policy by name.
func (p DisconnectPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// ParseDisconnectPolicy maps "pause"/"forfeit" to a policy, defaulting to pause.
func ParseDisconnectPolicy(s string) DisconnectPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "forfeit") {
		return DisconnectForfeit
	}
	return DisconnectPause
}

// Rules is the immutable configuration of a match. The arena keeps its own copy.
type Rules struct {
	Scores               ScoreTable       `json:"scores"`
	WinScore             int              `json:"winScore"`
	ForceLimit           float64          `json:"forceLimit"`
	ChargeCap            float64          `json:"chargeCap"`
	ShieldEnergy         time.Duration    `json:"shieldEnergy"`
	CounterWindow        time.Duration    `json:"counterWindow"`
	OrientationThreshold float64          `json:"orientationThreshold"`
	StillThreshold       float64          `json:"stillThreshold"`
	HistorySize          int              `json:"historySize"`
	Disconnect           DisconnectPolicy `json:"disconnectPolicy"`
}

// DefaultRules returns the canonical match rules.
func DefaultRules() Rules {
	return Rules{
		Scores:               DefaultScores(),
		WinScore:             DefaultWinScore,
		ForceLimit:           DefaultForceLimit,
		ChargeCap:            DefaultChargeCap,
		ShieldEnergy:         DefaultShieldEnergy,
		CounterWindow:        DefaultCounterWindow,
		OrientationThreshold: DefaultOrientationThreshold,
		StillThreshold:       DefaultStillThreshold,
		HistorySize:          DefaultHistorySize,
		Disconnect:           DisconnectPause,
	}
}

// withDefaults fills every zero field from DefaultRules.
func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.Scores == (ScoreTable{}) {
		r.Scores = d.Scores
	}
	if r.WinScore <= 0 {
		r.WinScore = d.WinScore
	}
	if r.ForceLimit <= 0 {
		r.ForceLimit = d.ForceLimit
	}
	if r.ChargeCap <= 0 {
		r.ChargeCap = d.ChargeCap
	}
	if r.ShieldEnergy <= 0 {
		r.ShieldEnergy = d.ShieldEnergy
	}
	if r.CounterWindow <= 0 {
		r.CounterWindow = d.CounterWindow
	}
	if r.OrientationThreshold <= 0 {
		r.OrientationThreshold = d.OrientationThreshold
	}
	if r.StillThreshold <= 0 {
		r.StillThreshold = d.StillThreshold
	}
	if r.HistorySize < 2 {
		r.HistorySize = d.HistorySize
	}
	return r
}
