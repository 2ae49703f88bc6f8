package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"wizardry/internal/game"
)

const (
	defaultEventLimit = 50
	maxBodyBytes      = 1 << 12
)

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"match":  snap.MatchID,
		"frame":  snap.Frame,
	})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

func (h *routerHandlers) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, map[string]interface{}{
		"match":     snap.MatchID,
		"status":    snap.Status,
		"winner":    snap.WinnerID,
		"winScore":  snap.WinScore,
		"standings": snap.Standings(),
	})
}

// rulesView reports durations in seconds.
type rulesView struct {
	game.Rules
	ShieldEnergy  float64 `json:"shieldEnergy"`
	CounterWindow float64 `json:"counterWindow"`
}

func (h *routerHandlers) handleGetRules(w http.ResponseWriter, r *http.Request) {
	rules := h.engine.Rules()
	writeJSON(w, rulesView{
		Rules:         rules,
		ShieldEnergy:  rules.ShieldEnergy.Seconds(),
		CounterWindow: rules.CounterWindow.Seconds(),
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.GetStats()
	stats["events"] = h.engine.EventLog().GetStats()
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetWands(w http.ResponseWriter, r *http.Request) {
	if h.wandStats == nil {
		writeJSON(w, []map[string]interface{}{})
		return
	}
	writeJSON(w, h.wandStats())
}

// handleGetEvents returns recent events; ?since=seq returns everything newer.
func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	el := h.engine.EventLog()

	if s := q.Get("since"); s != "" {
		seq, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		writeEvents(w, el.Since(seq))
		return
	}

	limit := defaultEventLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, game.EventBufferSize)
	}
	writeEvents(w, el.Recent(limit))
}

func writeEvents(w http.ResponseWriter, events []game.Event) {
	if events == nil {
		events = []game.Event{}
	}
	writeJSON(w, events)
}

func (h *routerHandlers) handleGetEventStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.EventLog().GetStats())
}

func (h *routerHandlers) handleMatchReset(w http.ResponseWriter, r *http.Request) {
	log.Println("🔄 Match reset requested via API")
	h.engine.Reset()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// ManualInput drives a participant without a wand, for debugging and demos.
type ManualInput struct {
	Participant int         `json:"participant"`
	Action      string      `json:"action"`
	Target      *int        `json:"target,omitempty"`
	Amount      float64     `json:"amount,omitempty"`
	Accel       *[3]float64 `json:"accel,omitempty"`
}

// toInput maps an action name onto the engine input a wand would send.
func (m ManualInput) toInput(rules game.Rules) (game.Input, string) {
	in := game.Input{Kind: game.InputMotion, ID: m.Participant}
	if m.Accel != nil {
		in.Accel = game.Vec3{X: m.Accel[0], Y: m.Accel[1], Z: m.Accel[2]}
	}

	press := func(b game.Button, down bool) {
		in.Buttons = append(in.Buttons, game.ButtonEdge{Button: b, Pressed: down})
	}

	switch m.Action {
	case "charge", "release":
		if m.Target == nil {
			return in, "target is required"
		}
		b := game.TargetButton(*m.Target)
		if b == game.ButtonNone {
			return in, "invalid target"
		}
		press(b, m.Action == "charge")
	case "shield":
		press(game.ButtonShield, true)
	case "unshield":
		press(game.ButtonShield, false)
	case "counter":
		press(game.ButtonCounter, true)
		press(game.ButtonCounter, false)
	case "rotate":
		in.Rotation = m.Amount
		if in.Rotation <= 0 {
			in.Rotation = rules.ChargeCap
		}
	case "launch":
		in.PeakForce = m.Amount
		if in.PeakForce <= rules.ForceLimit {
			in.PeakForce = rules.ForceLimit * 2
		}
	case "sample":
		// accel only
	case "connect", "disconnect":
		in = game.Input{Kind: game.InputConnection, ID: m.Participant, Connected: m.Action == "connect"}
	default:
		return in, "unknown action"
	}
	return in, ""
}

func (h *routerHandlers) handleMatchInput(w http.ResponseWriter, r *http.Request) {
	var req ManualInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	snap := h.engine.Snapshot()
	if req.Participant < 0 || req.Participant >= len(snap.Participants) {
		writeError(w, "Unknown participant", http.StatusBadRequest)
		return
	}

	in, problem := req.toInput(h.engine.Rules())
	if problem != "" {
		writeError(w, problem, http.StatusBadRequest)
		return
	}
	if !h.engine.Post(in) {
		w.Header().Set("Retry-After", "1")
		writeError(w, "Engine busy", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":  true,
		"frame":    snap.Frame,
		"postedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
