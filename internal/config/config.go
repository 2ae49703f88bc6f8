// Package config provides centralized configuration management.
// Every tunable of the combat server lives here; other packages receive
// plain values and never read the environment themselves.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// COMBAT CONFIGURATION
// =============================================================================

// CombatConfig holds the gesture thresholds and timing of a match.
// Scores are not configurable; they are fixed by the game rules.
type CombatConfig struct {
	WinScore             int           // First participant to reach this wins
	ForceLimit           float64       // Squared accel magnitude of a release gesture
	ChargeCap            float64       // Rotation units needed for a full charge
	ShieldEnergy         time.Duration // Total shield time per match
	CounterWindow        time.Duration // Time a defender has to counter
	OrientationThreshold float64       // Max vertical delta for a successful counter
	StillThreshold       float64       // Squared delta under which samples count as still
	HistorySize          int           // Motion samples kept per participant
	DisconnectPolicy     string        // "pause" or "forfeit"
}

// DefaultCombat returns the default combat configuration.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		WinScore:             1000,
		ForceLimit:           2.5,
		ChargeCap:            4000,
		ShieldEnergy:         10 * time.Second,
		CounterWindow:        2 * time.Second,
		OrientationThreshold: 0.5,
		StillThreshold:       1.0,
		HistorySize:          15,
		DisconnectPolicy:     "pause",
	}
}

// CombatFromEnv returns combat configuration with environment variable overrides.
func CombatFromEnv() CombatConfig {
	cfg := DefaultCombat()

	if v := getEnvInt("WIN_SCORE", 0); v > 0 {
		cfg.WinScore = v
	}
	if v := getEnvFloat("FORCE_LIMIT", 0); v > 0 {
		cfg.ForceLimit = v
	}
	if v := getEnvFloat("CHARGE_CAP", 0); v > 0 {
		cfg.ChargeCap = v
	}
	if v := getEnvDuration("SHIELD_ENERGY", 0); v > 0 {
		cfg.ShieldEnergy = v
	}
	if v := getEnvDuration("COUNTER_WINDOW", 0); v > 0 {
		cfg.CounterWindow = v
	}
	if v := getEnvFloat("ORIENTATION_THRESHOLD", 0); v > 0 {
		cfg.OrientationThreshold = v
	}
	if v := getEnvFloat("STILL_THRESHOLD", 0); v > 0 {
		cfg.StillThreshold = v
	}
	if v := getEnvInt("HISTORY_SIZE", 0); v >= 2 {
		cfg.HistorySize = v
	}
	switch p := strings.ToLower(os.Getenv("DISCONNECT_POLICY")); p {
	case "pause", "forfeit":
		cfg.DisconnectPolicy = p
	}

	return cfg
}

// =============================================================================
// MATCH CONFIGURATION
// =============================================================================

// MatchConfig holds the engine loop settings.
type MatchConfig struct {
	Participants int  // Number of wands in a match (2-4)
	TickRate     int  // Engine ticks per second
	InboxSize    int  // Buffered inputs between ticks
	Lobby        bool // Wait for every wand before the clock starts
	AutoRestart  time.Duration
}

// DefaultMatch returns the default match configuration.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		Participants: 2,
		TickRate:     60,
		InboxSize:    256,
		Lobby:        true,
		AutoRestart:  0, // disabled
	}
}

// MatchFromEnv returns match configuration with environment variable overrides.
func MatchFromEnv() MatchConfig {
	cfg := DefaultMatch()

	if n := getEnvInt("PARTICIPANTS", 0); n >= 2 && n <= 4 {
		cfg.Participants = n
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if sz := getEnvInt("INBOX_SIZE", 0); sz > 0 {
		cfg.InboxSize = sz
	}
	cfg.Lobby = getEnvBool("LOBBY", cfg.Lobby)
	if d := getEnvDuration("AUTO_RESTART", 0); d > 0 {
		cfg.AutoRestart = d
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	DebugPort      int      // pprof + metrics, 0 disables
	AllowedOrigins []string // CORS origins
	RequestsPerSec float64  // Per-IP HTTP limit
	WandMsgPerSec  float64  // Per-wand inbound message limit
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		DebugPort:      6060,
		AllowedOrigins: []string{"*"},
		RequestsPerSec: 20,
		WandMsgPerSec:  240, // 4x a 60 Hz sensor stream
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	cfg.DebugPort = getEnvInt("DEBUG_PORT", cfg.DebugPort)
	if o := os.Getenv("ALLOWED_ORIGINS"); o != "" {
		cfg.AllowedOrigins = strings.Split(o, ",")
	}
	if r := getEnvFloat("REQUESTS_PER_SEC", 0); r > 0 {
		cfg.RequestsPerSec = r
	}
	if r := getEnvFloat("WAND_MSG_PER_SEC", 0); r > 0 {
		cfg.WandMsgPerSec = r
	}

	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the combat event journal.
type EventLogConfig struct {
	Path       string  // JSONL output, empty keeps events in memory only
	RatePerSec float64 // Global event rate limit
	Burst      int
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{
		Path:       "",
		RatePerSec: 500,
		Burst:      100,
	}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()

	cfg.Path = getEnv("EVENT_LOG_PATH", cfg.Path)
	if r := getEnvFloat("EVENT_RATE", 0); r > 0 {
		cfg.RatePerSec = r
	}
	if b := getEnvInt("EVENT_BURST", 0); b > 0 {
		cfg.Burst = b
	}

	return cfg
}

// =============================================================================
// IPC CONFIGURATION
// =============================================================================

// IPCConfig holds the scoreboard link settings.
type IPCConfig struct {
	Enabled bool
	Address string // unix socket path (named TCP address on windows)
	Rate    int    // Frames published per second
}

// DefaultIPC returns the default IPC configuration.
func DefaultIPC() IPCConfig {
	return IPCConfig{
		Enabled: true,
		Address: "/tmp/wizardry.sock",
		Rate:    20,
	}
}

// IPCFromEnv returns IPC configuration with environment variable overrides.
func IPCFromEnv() IPCConfig {
	cfg := DefaultIPC()

	cfg.Enabled = getEnvBool("IPC_ENABLED", cfg.Enabled)
	cfg.Address = getEnv("IPC_ADDRESS", cfg.Address)
	if r := getEnvInt("IPC_RATE", 0); r > 0 {
		cfg.Rate = r
	}

	return cfg
}

// =============================================================================
// RECORDER CONFIGURATION
// =============================================================================

// RecorderConfig controls the feedback timeline recorder.
type RecorderConfig struct {
	Dir        string // Output directory, empty disables recording
	SampleRate int    // WAV sample rate in Hz
	RumbleHz   float64
	PixelsPerS int // Timeline width per second of match
}

// DefaultRecorder returns the default recorder configuration.
func DefaultRecorder() RecorderConfig {
	return RecorderConfig{
		Dir:        "",
		SampleRate: 22050,
		RumbleHz:   90,
		PixelsPerS: 40,
	}
}

// RecorderFromEnv returns recorder configuration with environment variable overrides.
func RecorderFromEnv() RecorderConfig {
	cfg := DefaultRecorder()

	cfg.Dir = getEnv("RECORDER_DIR", cfg.Dir)
	if sr := getEnvInt("RECORDER_SAMPLE_RATE", 0); sr > 0 {
		cfg.SampleRate = sr
	}
	if hz := getEnvFloat("RECORDER_RUMBLE_HZ", 0); hz > 0 {
		cfg.RumbleHz = hz
	}
	if px := getEnvInt("RECORDER_PX_PER_SEC", 0); px > 0 {
		cfg.PixelsPerS = px
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Combat   CombatConfig
	Match    MatchConfig
	Server   ServerConfig
	EventLog EventLogConfig
	IPC      IPCConfig
	Recorder RecorderConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Combat:   CombatFromEnv(),
		Match:    MatchFromEnv(),
		Server:   ServerFromEnv(),
		EventLog: EventLogFromEnv(),
		IPC:      IPCFromEnv(),
		Recorder: RecorderFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("1500ms") or bare seconds ("2.5").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return defaultVal
}
