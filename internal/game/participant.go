package game

import "time"

// State is a participant's combat state. Exactly one is active at any time.
type State uint8

const (
	StateIdle State = iota
	StateShielding
	StateCharging
	StateAttacking
	StateCountering
	// Result states last a single frame so the result feedback is visible
	// to observers before the participant settles back to IDLE.
	StateResolvingAttack
	StateHitCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateShielding:
		return "SHIELDING"
	case StateCharging:
		return "CHARGING"
	case StateAttacking:
		return "ATTACKING"
	case StateCountering:
		return "COUNTERING"
	case StateResolvingAttack:
		return "RESOLVING_ATTACK"
	case StateHitCooldown:
		return "HIT_COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets states appear by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// resting states accept new charges and shields.
func (s State) resting() bool {
	return s == StateIdle || s == StateResolvingAttack || s == StateHitCooldown
}

// NoParticipant marks an unset target or attacker link.
const NoParticipant = -1

// Participant is one wand holder. Only the Arena mutates it; everything
// exported here is read-only.
type Participant struct {
	id    int
	color Color
	score int
	state State

	targetID   int
	attackerID int

	charge      float64
	chargedOnce bool // charged feedback already played for this charge

	shield time.Duration // remaining shield energy

	// Attack in flight. delivered is set once the stillness release
	// handed the attack to the arena and a counter window is open.
	delivered bool

	attackerOrientation float64
	counterWindow       uint64 // id of the open counter window

	stillArmed bool
	accel      Vec3 // latest reading, recorded once per frame
	history    *MotionHistory

	connected bool
	forfeited bool

	feedback Presentation
	output   Output
}

func newParticipant(id int, rules Rules) *Participant {
	return &Participant{
		id:         id,
		color:      ColorOf(id),
		state:      StateIdle,
		targetID:   NoParticipant,
		attackerID: NoParticipant,
		shield:     rules.ShieldEnergy,
		history:    NewMotionHistory(rules.HistorySize),
		connected:  true,
		feedback:   NewPresentation(ColorOf(id)),
	}
}

func (p *Participant) ID() int               { return p.id }
func (p *Participant) Color() Color          { return p.color }
func (p *Participant) Score() int            { return p.score }
func (p *Participant) State() State          { return p.state }
func (p *Participant) TargetID() int         { return p.targetID }
func (p *Participant) AttackerID() int       { return p.attackerID }
func (p *Participant) Charge() float64       { return p.charge }
func (p *Participant) Shield() time.Duration { return p.shield }
func (p *Participant) Connected() bool       { return p.connected }
func (p *Participant) Forfeited() bool       { return p.forfeited }
func (p *Participant) Output() Output        { return p.output }

// AttackerOrientation is the vertical orientation captured when the current counter window opened.
func (p *Participant) AttackerOrientation() float64 { return p.attackerOrientation }

// History exposes the motion buffer for inspection.
func (p *Participant) History() *MotionHistory { return p.history }

// active participants can act and be targeted.
func (p *Participant) active() bool { return !p.forfeited }

// armStillness starts a fresh stillness window.
func (p *Participant) armStillness() {
	p.stillArmed = true
	p.history.Clear()
}

// beginCharge moves a resting participant into CHARGING against target.
func (p *Participant) beginCharge(target int) {
	p.state = StateCharging
	p.targetID = target
	p.charge = 0
	p.chargedOnce = false
	p.delivered = false
	p.stillArmed = false
}

// addCharge accumulates rotation and reports whether the cap was reached for the first time.
func (p *Participant) addCharge(amount, limit float64) bool {
	if amount <= 0 || p.charge >= limit {
		return false
	}
	p.charge += amount
	if p.charge >= limit {
		p.charge = limit
		if !p.chargedOnce {
			p.chargedOnce = true
			return true
		}
	}
	return false
}

// dropAttack clears any charge or attack in progress.
func (p *Participant) dropAttack() {
	p.targetID = NoParticipant
	p.charge = 0
	p.chargedOnce = false
	p.delivered = false
	p.stillArmed = false
}

// openCounterWindow forces the participant to defend against attacker.
func (p *Participant) openCounterWindow(attacker int, orientation float64, window uint64) {
	p.dropAttack()
	p.state = StateCountering
	p.attackerID = attacker
	p.attackerOrientation = orientation
	p.counterWindow = window
	p.armStillness()
}

// closeCounterWindow ends the defence, moving to the given state.
func (p *Participant) closeCounterWindow(next State) {
	p.attackerID = NoParticipant
	p.stillArmed = false
	p.state = next
}

// settle returns to IDLE, clearing links and timers that belong to the previous state.
func (p *Participant) settle(next State) {
	p.dropAttack()
	p.attackerID = NoParticipant
	p.state = next
}

// hold derives the state-driven LED and rumble.
func (p *Participant) hold(rules Rules) Hold {
	switch p.state {
	case StateCharging:
		ratio := clamp01(p.charge / rules.ChargeCap)
		rumble := 0.1 + 0.4*ratio
		if ratio >= 1 {
			rumble = 1
		}
		return Hold{Active: true, LED: ColorOf(p.targetID).Scale(ratio), Rumble: rumble}
	case StateShielding:
		return Hold{Active: true, LED: ColorShield.Scale(clamp01(p.shield.Seconds()))}
	case StateCountering:
		return Hold{Active: true, LED: ColorOf(p.attackerID)}
	}
	return Hold{}
}
