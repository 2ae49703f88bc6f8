package game

import (
	"math"
	"time"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus uint8

const (
	// MatchWaiting holds the match until every wand has connected once.
	MatchWaiting MatchStatus = iota
	MatchRunning
	MatchPaused
	MatchOver
)

func (s MatchStatus) String() string {
	switch s {
	case MatchWaiting:
		return "waiting"
	case MatchRunning:
		return "running"
	case MatchPaused:
		return "paused"
	case MatchOver:
		return "over"
	default:
		return "unknown"
	}
}

// MarshalText writes the status by name.
func (s MatchStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Button identifies a wand button as the arena sees it.
type Button uint8

const (
	ButtonNone    Button = iota
	ButtonShield         // held to keep the shield up
	ButtonCounter        // explicit counter attempt
	ButtonTarget0        // one target button per participant color
	ButtonTarget1
	ButtonTarget2
	ButtonTarget3
)

// TargetButton returns the button that targets participant id.
func TargetButton(id int) Button {
	if id < 0 || id >= MaxParticipants {
		return ButtonNone
	}
	return ButtonTarget0 + Button(id)
}

// Target returns the participant a target button points at, or NoParticipant.
func (b Button) Target() int {
	if b < ButtonTarget0 || b > ButtonTarget3 {
		return NoParticipant
	}
	return int(b - ButtonTarget0)
}

// ButtonEdge is a press or release.
type ButtonEdge struct {
	Button  Button
	Pressed bool
}

// FrameInput is everything one participant's wand reported since the last step.
type FrameInput struct {
	ID int
	// Accel is the latest acceleration; it is recorded into the history once per frame.
	Accel Vec3
	// PeakForce is the largest squared acceleration seen since the last step.
	PeakForce float64
	// Rotation is the summed squared gyro magnitude since the last step.
	Rotation float64
	Buttons  []ButtonEdge
}

// ArenaOption configures a new arena.
type ArenaOption func(*Arena)

// WithLobby starts the match in MatchWaiting with every wand disconnected.
// It begins once all of them have connected.
func WithLobby() ArenaOption {
	return func(a *Arena) {
		a.status = MatchWaiting
		for _, p := range a.participants {
			p.connected = false
		}
	}
}

// WithEventHandler receives every combat event as it happens.
func WithEventHandler(fn func(Event)) ArenaOption {
	return func(a *Arena) { a.onEvent = fn }
}

// Arena owns every participant and is the only place their state changes.
// It is not safe for concurrent use; one goroutine drives it.
type Arena struct {
	rules        Rules
	participants []*Participant

	clock  time.Duration
	frame  uint64
	timers scheduler
	window uint64 // last counter window id handed out

	status MatchStatus
	winner int

	onEvent func(Event)
}

// NewArena creates a match between n participants (clamped to 2..4).
func NewArena(rules Rules, n int, opts ...ArenaOption) *Arena {
	rules = rules.withDefaults()
	if n < MinParticipants {
		n = MinParticipants
	}
	if n > MaxParticipants {
		n = MaxParticipants
	}

	a := &Arena{
		rules:        rules,
		participants: make([]*Participant, n),
		status:       MatchRunning,
		winner:       NoParticipant,
	}
	for i := range a.participants {
		a.participants[i] = newParticipant(i, rules)
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, p := range a.participants {
		p.output = p.feedback.Render(0, p.hold(a.rules))
	}
	return a
}

// Rules returns the match rules.
func (a *Arena) Rules() Rules { return a.rules }

// Clock returns the match time; it only advances while the match runs.
func (a *Arena) Clock() time.Duration { return a.clock }

// Frame returns the number of steps taken.
func (a *Arena) Frame() uint64 { return a.frame }

// Status returns the match status.
func (a *Arena) Status() MatchStatus { return a.status }

// Winner returns the winning participant id, or NoParticipant.
func (a *Arena) Winner() int { return a.winner }

// Len returns the number of participants.
func (a *Arena) Len() int { return len(a.participants) }

// Participant returns a read-only handle to participant id.
func (a *Arena) Participant(id int) (*Participant, bool) {
	if !a.valid(id) {
		return nil, false
	}
	return a.participants[id], true
}

// PendingTimers returns the number of scheduled counter timeouts, stale ones included.
func (a *Arena) PendingTimers() int { return a.timers.pending() }

func (a *Arena) valid(id int) bool { return id >= 0 && id < len(a.participants) }

// get returns the participant if id is valid and still in the match.
func (a *Arena) get(id int) *Participant {
	if !a.valid(id) || a.participants[id].forfeited {
		return nil
	}
	return a.participants[id]
}

func (a *Arena) running() bool { return a.status == MatchRunning }

// =============================================================================
// FRAME
// =============================================================================

// Step advances the match by dt and applies the inputs gathered since the last step.
//
// Order within a step: result states settle, inputs apply (buttons, then the
// force-limit release, then rotation), each participant updates in id order
// (motion sample, shield drain, stillness), due timers fire, feedback renders.
// Gestures therefore always win a tie against a timeout due in the same step.
func (a *Arena) Step(dt time.Duration, inputs []FrameInput) {
	for _, in := range inputs {
		if a.valid(in.ID) {
			a.participants[in.ID].accel = in.Accel
		}
	}

	if a.status == MatchRunning {
		a.clock += dt
		a.frame++

		for _, p := range a.participants {
			if p.state == StateResolvingAttack || p.state == StateHitCooldown {
				p.state = StateIdle
			}
		}

		for _, in := range inputs {
			a.applyInput(in)
		}
		for _, p := range a.participants {
			a.update(p, dt)
		}
		a.fireTimers()
	} else if a.status == MatchOver {
		// keep animations alive after the end
		a.clock += dt
		a.frame++
	}

	a.render()
}

func (a *Arena) applyInput(in FrameInput) {
	if a.get(in.ID) == nil {
		return
	}
	for _, edge := range in.Buttons {
		a.applyButton(in.ID, edge)
	}
	if in.PeakForce > a.rules.ForceLimit {
		a.AboveForceLimit(in.ID)
	}
	if in.Rotation > 0 {
		a.RegisterRotation(in.ID, in.Rotation)
	}
}

func (a *Arena) applyButton(id int, edge ButtonEdge) {
	switch edge.Button {
	case ButtonShield:
		a.SetShield(id, edge.Pressed)
	case ButtonCounter:
		if edge.Pressed {
			a.AttemptCounter(id)
		}
	default:
		target := edge.Button.Target()
		if target == NoParticipant {
			return
		}
		if edge.Pressed {
			a.StartCharge(id, target)
		} else if p := a.get(id); p != nil && p.targetID == target {
			a.StopCharge(id)
		}
	}
}

// update runs one participant's per-frame logic.
func (a *Arena) update(p *Participant, dt time.Duration) {
	if p.forfeited || !a.running() {
		return
	}
	p.history.Record(MotionSample{Accel: p.accel})

	switch p.state {
	case StateShielding:
		p.shield -= dt
		if p.shield <= 0 {
			p.shield = 0
			p.state = StateIdle
			a.emit(EventTypeShieldExhausted, p.id, ShieldPayload{})
		}
	case StateAttacking:
		if p.stillArmed && !p.delivered && a.still(p) {
			p.stillArmed = false
			a.LaunchAttack(p.id, p.targetID)
		}
	case StateCountering:
		if p.stillArmed && a.still(p) {
			a.counterAttempt(p)
		}
	}
}

// still reports a deliberate hold: a full window of samples since arming, all still.
func (a *Arena) still(p *Participant) bool {
	return p.history.Len() >= p.history.Cap() && p.history.IsStill(a.rules.StillThreshold)
}

func (a *Arena) fireTimers() {
	for a.running() {
		t, ok := a.timers.popDue(a.clock)
		if !ok {
			return
		}
		a.counterTimedOut(t)
	}
}

func (a *Arena) render() {
	for _, p := range a.participants {
		p.output = p.feedback.Render(a.clock, p.hold(a.rules))
	}
}

// =============================================================================
// INPUT OPERATIONS
// =============================================================================

// StartCharge begins charging an attack against target. Self-targeting,
// unknown ids, absent targets and non-resting states are ignored.
func (a *Arena) StartCharge(id, target int) bool {
	p, t := a.get(id), a.get(target)
	if !a.running() || p == nil || t == nil || id == target {
		return false
	}
	if !p.state.resting() {
		return false
	}
	p.beginCharge(target)
	p.feedback.StopVisual()
	a.emit(EventTypeChargeStart, id, ChargePayload{TargetID: target})
	return true
}

// StopCharge cancels a charge in progress.
func (a *Arena) StopCharge(id int) bool {
	return a.ResolveCancel(id)
}

// RegisterRotation adds rotation to a charge in progress.
func (a *Arena) RegisterRotation(id int, amount float64) bool {
	p := a.get(id)
	if !a.running() || p == nil || p.state != StateCharging || math.IsNaN(amount) {
		return false
	}
	if p.addCharge(amount, a.rules.ChargeCap) {
		p.feedback.Blink(a.clock, ChargedBlinkDuration, ChargedBlinkPeriod, ColorOf(p.targetID), ColorBlack)
		a.emit(EventTypeCharged, id, ChargePayload{TargetID: p.targetID, Charge: p.charge})
	}
	return true
}

// AboveForceLimit handles the release gesture: a full charge becomes an
// attack waiting for stillness, anything less breaks the attack.
func (a *Arena) AboveForceLimit(id int) bool {
	p := a.get(id)
	if !a.running() || p == nil || p.state != StateCharging {
		return false
	}
	if p.charge < a.rules.ChargeCap {
		return a.ResolveBreak(id)
	}
	p.charge = 0
	p.state = StateAttacking
	p.delivered = false
	p.armStillness()
	a.emit(EventTypeAttackReady, id, ChargePayload{TargetID: p.targetID, Charge: a.rules.ChargeCap})
	return true
}

// SetShield raises or lowers the shield. Raising only works from a resting
// state or while already shielding, and fails visibly without energy.
func (a *Arena) SetShield(id int, on bool) bool {
	p := a.get(id)
	if !a.running() || p == nil {
		return false
	}
	if !on {
		if p.state != StateShielding {
			return false
		}
		p.state = StateIdle
		a.emit(EventTypeShieldDown, id, ShieldPayload{EnergySeconds: p.shield.Seconds()})
		return true
	}

	if p.state == StateShielding {
		return true
	}
	if !p.state.resting() {
		return false
	}
	if p.shield <= 0 {
		p.state = StateIdle
		p.feedback.Blink(a.clock, ShieldFailDuration, ShieldFailPeriod, ColorBrokenShield, p.color.Scale(0.05))
		a.emit(EventTypeShieldFail, id, ShieldPayload{})
		return false
	}
	p.state = StateShielding
	p.feedback.StopVisual()
	a.emit(EventTypeShieldUp, id, ShieldPayload{EnergySeconds: p.shield.Seconds()})
	return true
}

// AttemptCounter is the explicit counter gesture of a defender.
func (a *Arena) AttemptCounter(id int) bool {
	p := a.get(id)
	if !a.running() || p == nil || p.state != StateCountering {
		return false
	}
	a.counterAttempt(p)
	return true
}

// counterAttempt compares the defender's current vertical orientation to the
// attacker's captured one and resolves the window either way.
func (a *Arena) counterAttempt(p *Participant) {
	measured := p.history.AveragedVerticalComponent()
	if p.history.Len() == 0 {
		// Window opened after this wand's sample was taken this frame
		measured = p.accel.Y
	}
	diff := math.Abs(measured - p.attackerOrientation)
	attacker := p.attackerID
	payload := CounterPayload{
		AttackerID:  attacker,
		Window:      p.counterWindow,
		Orientation: p.attackerOrientation,
		Measured:    measured,
		Threshold:   a.rules.OrientationThreshold,
	}

	a.emit(EventTypeCounterAttempt, p.id, payload)
	if diff < a.rules.OrientationThreshold {
		a.ResolveCounter(attacker, p.id)
		return
	}
	a.ResolveSuccessfulAttack(attacker, p.id)
}

// =============================================================================
// RESOLUTION OPERATIONS
// =============================================================================

// LaunchAttack delivers a released attack. A raised shield blocks it. A target
// that is charging, or already countering another attacker, is hit outright.
// Anyone else gets a counter window, dropping an attack it has not delivered.
func (a *Arena) LaunchAttack(attackerID, targetID int) bool {
	attacker, target := a.get(attackerID), a.get(targetID)
	if !a.running() || attacker == nil || target == nil || attackerID == targetID {
		return false
	}
	if attacker.state != StateAttacking || attacker.delivered || attacker.targetID != targetID {
		return false
	}

	orientation := attacker.history.AveragedVerticalComponent()
	attacker.stillArmed = false
	a.emit(EventTypeAttackLaunch, attackerID, CounterPayload{AttackerID: attackerID, Orientation: orientation})

	switch {
	case target.state == StateShielding && target.shield > 0:
		a.applyBlock(attacker, target)
	case target.state == StateCharging || target.state == StateCountering:
		a.applyHit(attacker, target)
	default:
		a.window++
		attacker.delivered = true
		target.openCounterWindow(attackerID, orientation, a.window)
		target.feedback.StopVisual()
		a.timers.after(a.clock, a.rules.CounterWindow, counterTimeout{
			defender: targetID,
			attacker: attackerID,
			window:   a.window,
		})
		a.emit(EventTypeCounterOpen, targetID, CounterPayload{
			AttackerID:  attackerID,
			Window:      a.window,
			Orientation: orientation,
		})
	}
	return true
}

// ResolveSuccessfulAttack settles an open counter window as a hit.
// It is a no-op unless target is still countering attacker.
func (a *Arena) ResolveSuccessfulAttack(attackerID, targetID int) bool {
	attacker, target := a.participantPair(attackerID, targetID)
	if attacker == nil || !a.countering(target, attackerID) {
		return false
	}
	a.applyHit(attacker, target)
	return true
}

// ResolveCounter settles an open counter window in the defender's favour.
// It is a no-op unless defender is still countering attacker.
func (a *Arena) ResolveCounter(attackerID, defenderID int) bool {
	attacker, defender := a.participantPair(attackerID, defenderID)
	if attacker == nil || !a.countering(defender, attackerID) {
		return false
	}

	s := a.rules.Scores
	defender.score += s.SuccessfulCounter
	attacker.score += s.CounteredAttack

	defender.closeCounterWindow(StateResolvingAttack)
	a.resultFeedback(defender, ColorOf(attackerID), ColorShield)
	a.finishAttack(attacker, defenderID, StateHitCooldown, ColorOf(defenderID), ColorShield)

	a.emit(EventTypeCounterSuccess, defenderID, OutcomePayload{
		AttackerID:    attackerID,
		DefenderID:    defenderID,
		AttackerDelta: s.CounteredAttack,
		DefenderDelta: s.SuccessfulCounter,
		AttackerScore: attacker.score,
		DefenderScore: defender.score,
	})
	a.checkWin()
	return true
}

// ResolveBreak penalizes an attack released before full charge.
func (a *Arena) ResolveBreak(id int) bool {
	return a.penalize(id, a.rules.Scores.InterruptedAttack, EventTypeAttackBreak)
}

// ResolveCancel penalizes a charge abandoned by letting go of the target button.
func (a *Arena) ResolveCancel(id int) bool {
	return a.penalize(id, a.rules.Scores.CancelAttack, EventTypeChargeCancel)
}

func (a *Arena) penalize(id, delta int, kind EventType) bool {
	p := a.get(id)
	if !a.running() || p == nil || p.state != StateCharging {
		return false
	}
	p.score += delta
	p.settle(StateIdle)
	p.feedback.StopVisual()
	a.emit(kind, id, PenaltyPayload{Delta: delta, Score: p.score})
	return true
}

func (a *Arena) participantPair(first, second int) (*Participant, *Participant) {
	p, q := a.get(first), a.get(second)
	if !a.running() || p == nil || q == nil || first == second {
		return nil, nil
	}
	return p, q
}

func (a *Arena) countering(defender *Participant, attackerID int) bool {
	return defender != nil && defender.state == StateCountering && defender.attackerID == attackerID
}

// counterTimedOut is the delayed end of a counter window. The captured window
// id makes it a no-op if the defender already resolved, even if a later window
// from the same attacker is now open.
func (a *Arena) counterTimedOut(t counterTimeout) {
	defender := a.get(t.defender)
	if !a.countering(defender, t.attacker) || defender.counterWindow != t.window {
		return
	}
	a.emit(EventTypeCounterTimeout, t.defender, CounterPayload{
		AttackerID:  t.attacker,
		Window:      t.window,
		Orientation: defender.attackerOrientation,
	})
	a.ResolveSuccessfulAttack(t.attacker, t.defender)
}

// applyBlock scores a shielded defence. The defender keeps its shield up.
func (a *Arena) applyBlock(attacker, defender *Participant) {
	s := a.rules.Scores
	attacker.score += s.BlockedAttack
	defender.score += s.SuccessfulBlock

	a.finishAttack(attacker, defender.id, StateResolvingAttack, ColorOf(defender.id), ColorShield)

	a.emit(EventTypeAttackBlock, defender.id, OutcomePayload{
		AttackerID:    attacker.id,
		DefenderID:    defender.id,
		AttackerDelta: s.BlockedAttack,
		DefenderDelta: s.SuccessfulBlock,
		AttackerScore: attacker.score,
		DefenderScore: defender.score,
	})
	a.checkWin()
}

// applyHit scores a landed attack. Whatever the target was doing is lost:
// its own undelivered attack is dropped and an open counter window closes,
// turning the attack that opened it into a miss.
func (a *Arena) applyHit(attacker, target *Participant) {
	s := a.rules.Scores
	attacker.score += s.SuccessfulAttack
	target.score += s.SufferAttack

	prevAttacker := NoParticipant
	if target.state == StateCountering && target.attackerID != attacker.id {
		prevAttacker = target.attackerID
	}
	// A delivered attack of the target lives on in its defender's counter window.
	target.settle(StateHitCooldown)
	a.resultFeedback(target, ColorOf(attacker.id), ColorBlack)
	a.finishAttack(attacker, target.id, StateResolvingAttack, ColorOf(target.id), ColorBlack)

	a.emit(EventTypeAttackHit, target.id, OutcomePayload{
		AttackerID:    attacker.id,
		DefenderID:    target.id,
		AttackerDelta: s.SuccessfulAttack,
		DefenderDelta: s.SufferAttack,
		AttackerScore: attacker.score,
		DefenderScore: target.score,
	})

	if prevAttacker != NoParticipant {
		a.missed(prevAttacker, target.id)
	}
	a.checkWin()
}

// finishAttack moves the attacker to a result state if it is still attacking
// defenderID. An attacker that was hit in the meantime keeps its current state
// but still gets the result feedback.
func (a *Arena) finishAttack(attacker *Participant, defenderID int, next State, on, off Color) {
	if attacker.state == StateAttacking && attacker.targetID == defenderID {
		attacker.settle(next)
	}
	a.resultFeedback(attacker, on, off)
}

// missed resolves an attack whose counter window vanished without a result.
func (a *Arena) missed(attackerID, defenderID int) {
	p := a.get(attackerID)
	if p == nil {
		return
	}
	if p.state == StateAttacking && p.delivered && p.targetID == defenderID {
		p.settle(StateResolvingAttack)
		p.feedback.StopVisual()
	}
	a.emit(EventTypeAttackMiss, attackerID, CounterPayload{AttackerID: attackerID})
}

func (a *Arena) resultFeedback(p *Participant, on, off Color) {
	p.feedback.Blink(a.clock, ResultBlinkDuration, ResultBlinkPeriod, on, off)
	p.feedback.Vibrate(a.clock, ResultBlinkDuration, ResultVibration)
}

// checkWin ends the match once someone reaches the win score.
func (a *Arena) checkWin() {
	if a.status == MatchOver {
		return
	}
	best := NoParticipant
	for _, p := range a.participants {
		if p.forfeited || p.score < a.rules.WinScore {
			continue
		}
		if best == NoParticipant || p.score > a.participants[best].score {
			best = p.id
		}
	}
	if best != NoParticipant {
		a.endMatch(best, "score")
	}
}

func (a *Arena) endMatch(winner int, reason string) {
	a.status = MatchOver
	a.winner = winner
	if w := a.get(winner); w != nil {
		w.feedback.Rainbow(a.clock, 0)
	}
	a.emit(EventTypeMatchOver, winner, MatchPayload{WinnerID: winner, Scores: a.scores(), Reason: reason})
}

func (a *Arena) scores() []int {
	out := make([]int, len(a.participants))
	for i, p := range a.participants {
		out[i] = p.score
	}
	return out
}

// =============================================================================
// CONNECTIONS
// =============================================================================

// SetConnected records a wand link change and applies the disconnect policy.
func (a *Arena) SetConnected(id int, connected bool) bool {
	if !a.valid(id) || a.status == MatchOver {
		return false
	}
	p := a.participants[id]
	if p.connected == connected {
		return false
	}
	p.connected = connected
	if connected {
		a.emit(EventTypeWandJoined, id, nil)
	} else {
		a.emit(EventTypeWandLeft, id, nil)
	}

	switch a.status {
	case MatchWaiting:
		if a.allConnected() {
			a.status = MatchRunning
			a.emit(EventTypeMatchStart, NoParticipant, MatchPayload{WinnerID: NoParticipant, Scores: a.scores()})
		}
	case MatchRunning:
		if !connected {
			if a.rules.Disconnect == DisconnectForfeit {
				a.forfeit(p)
			} else {
				a.status = MatchPaused
				a.emit(EventTypeMatchPaused, id, nil)
			}
		}
	case MatchPaused:
		if a.allConnected() {
			a.status = MatchRunning
			a.emit(EventTypeMatchResumed, id, nil)
		}
	}
	return true
}

func (a *Arena) allConnected() bool {
	for _, p := range a.participants {
		if !p.connected && !p.forfeited {
			return false
		}
	}
	return true
}

// forfeit removes p from the match. Interactions involving it end without score.
func (a *Arena) forfeit(p *Participant) {
	if p.state == StateCountering {
		a.missed(p.attackerID, p.id)
	}
	p.settle(StateIdle)
	p.forfeited = true
	p.feedback.StopAll()
	a.emit(EventTypeForfeit, p.id, PenaltyPayload{Score: p.score})

	var remaining []*Participant
	for _, q := range a.participants {
		if q.forfeited {
			continue
		}
		remaining = append(remaining, q)
		switch {
		case q.state == StateCountering && q.attackerID == p.id:
			q.closeCounterWindow(StateIdle)
		case (q.state == StateCharging || q.state == StateAttacking) && q.targetID == p.id:
			q.settle(StateIdle)
			q.feedback.StopVisual()
		}
	}

	if len(remaining) == 1 {
		a.endMatch(remaining[0].id, "forfeit")
	}
}

func (a *Arena) emit(kind EventType, participant int, payload interface{}) {
	if a.onEvent == nil {
		return
	}
	a.onEvent(NewEvent(kind, a.frame, a.clock, participant, payload))
}
