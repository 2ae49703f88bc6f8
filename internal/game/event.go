package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeMatchStart
	EventTypeMatchOver
	EventTypeMatchPaused
	EventTypeMatchResumed
	EventTypeWandJoined
	EventTypeWandLeft
	EventTypeForfeit
	EventTypeChargeStart
	EventTypeCharged
	EventTypeChargeCancel
	EventTypeAttackBreak
	EventTypeAttackReady
	EventTypeAttackLaunch
	EventTypeAttackBlock
	EventTypeAttackHit
	EventTypeAttackMiss
	EventTypeCounterOpen
	EventTypeCounterSuccess
	EventTypeCounterAttempt
	EventTypeCounterTimeout
	EventTypeShieldUp
	EventTypeShieldDown
	EventTypeShieldFail
	EventTypeShieldExhausted
)

// EventVersion for backwards compatibility of the JSONL journal
const EventVersion uint8 = 1

var eventTypeNames = [...]string{
	EventTypeUnknown:         "unknown",
	EventTypeMatchStart:      "match_start",
	EventTypeMatchOver:       "match_over",
	EventTypeMatchPaused:     "match_paused",
	EventTypeMatchResumed:    "match_resumed",
	EventTypeWandJoined:      "wand_joined",
	EventTypeWandLeft:        "wand_left",
	EventTypeForfeit:         "forfeit",
	EventTypeChargeStart:     "charge_start",
	EventTypeCharged:         "charged",
	EventTypeChargeCancel:    "charge_cancel",
	EventTypeAttackBreak:     "attack_break",
	EventTypeAttackReady:     "attack_ready",
	EventTypeAttackLaunch:    "attack_launch",
	EventTypeAttackBlock:     "attack_block",
	EventTypeAttackHit:       "attack_hit",
	EventTypeAttackMiss:      "attack_miss",
	EventTypeCounterOpen:     "counter_open",
	EventTypeCounterSuccess:  "counter_success",
	EventTypeCounterAttempt:  "counter_attempt",
	EventTypeCounterTimeout:  "counter_timeout",
	EventTypeShieldUp:        "shield_up",
	EventTypeShieldDown:      "shield_down",
	EventTypeShieldFail:      "shield_fail",
	EventTypeShieldExhausted: "shield_exhausted",
}

// String returns human-readable event type
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// MarshalText writes the event type by name.
func (t EventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText parses an event type name; unknown names map to EventTypeUnknown.
func (t *EventType) UnmarshalText(b []byte) error {
	*t = EventTypeUnknown
	for i, name := range eventTypeNames {
		if name == string(b) {
			*t = EventType(i)
			break
		}
	}
	return nil
}

// Event is the core event structure for the event log
type Event struct {
	Version       uint8           `json:"version"`
	Type          EventType       `json:"type"`
	Timestamp     int64           `json:"timestamp"` // Unix nano
	Sequence      uint64          `json:"sequence"`  // Assigned by the log
	Frame         uint64          `json:"frame"`
	MatchTime     time.Duration   `json:"matchTimeNs"`
	ParticipantID int             `json:"participantId"` // Source participant, -1 for match events
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Typed payloads for different event types

// OutcomePayload describes a scored interaction between two participants.
type OutcomePayload struct {
	AttackerID    int `json:"attackerId"`
	DefenderID    int `json:"defenderId"`
	AttackerDelta int `json:"attackerDelta"`
	DefenderDelta int `json:"defenderDelta"`
	AttackerScore int `json:"attackerScore"`
	DefenderScore int `json:"defenderScore"`
}

// PenaltyPayload describes a single-participant score change.
type PenaltyPayload struct {
	Delta int `json:"delta"`
	Score int `json:"score"`
}

// CounterPayload describes a counter window and its attempt.
type CounterPayload struct {
	AttackerID  int     `json:"attackerId"`
	Window      uint64  `json:"window"`
	Orientation float64 `json:"orientation"`
	Measured    float64 `json:"measured,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// ChargePayload describes a charge against a target.
type ChargePayload struct {
	TargetID int     `json:"targetId"`
	Charge   float64 `json:"charge"`
}

// ShieldPayload reports remaining shield energy.
type ShieldPayload struct {
	EnergySeconds float64 `json:"energySeconds"`
}

// MatchPayload describes a match status change.
type MatchPayload struct {
	WinnerID int    `json:"winnerId"`
	Scores   []int  `json:"scores"`
	Reason   string `json:"reason,omitempty"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// DecodePayload unmarshals an event payload into T.
func DecodePayload[T any](e Event) (T, error) {
	var v T
	err := json.Unmarshal(e.Payload, &v)
	return v, err
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, frame uint64, matchTime time.Duration, participantID int, payload interface{}) Event {
	return Event{
		Version:       EventVersion,
		Type:          eventType,
		Timestamp:     time.Now().UnixNano(),
		Frame:         frame,
		MatchTime:     matchTime,
		ParticipantID: participantID,
		Payload:       EncodePayload(payload),
	}
}
