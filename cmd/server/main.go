package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wizardry/internal/api"
	"wizardry/internal/config"
	"wizardry/internal/game"
	"wizardry/internal/ipc"
	"wizardry/internal/recorder"
	"wizardry/internal/wand"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🪄 ================================")
	log.Println("🪄  WIZARDRY - MOTION WAND ARENA")
	log.Println("🪄 ================================")

	appConfig := config.Load()
	matchCfg := appConfig.Match
	serverCfg := appConfig.Server
	rules := combatRules(appConfig.Combat)

	log.Printf("⚔️ Rules: win at %d, force %.2f, charge %.0f, shield %s, counter %s, %s on disconnect",
		rules.WinScore, rules.ForceLimit, rules.ChargeCap, rules.ShieldEnergy, rules.CounterWindow, rules.Disconnect)

	engine := game.NewEngine(game.EngineConfig{
		Rules:          rules,
		Participants:   matchCfg.Participants,
		TickRate:       matchCfg.TickRate,
		InboxSize:      matchCfg.InboxSize,
		Lobby:          matchCfg.Lobby,
		AutoRestart:    matchCfg.AutoRestart,
		EventLogPath:   appConfig.EventLog.Path,
		EventRatePerS:  appConfig.EventLog.RatePerSec,
		EventRateBurst: appConfig.EventLog.Burst,
	})
	if appConfig.EventLog.Path != "" {
		log.Printf("📝 Event log: %s", appConfig.EventLog.Path)
	}

	// Debug server
	if serverCfg.DebugPort > 0 {
		debugCfg := api.DefaultObservabilityConfig()
		debugCfg.ListenAddr = net.JoinHostPort("127.0.0.1", strconv.Itoa(serverCfg.DebugPort))
		debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
		debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	gateway := wand.NewGateway(engine, wand.Config{
		MsgPerSec: serverCfg.WandMsgPerSec,
		OnChange:  api.UpdateWandCount,
	})

	server := api.NewServer(engine, api.ServerOptions{
		Wands:     gateway,
		WandStats: gateway.Sessions,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: serverCfg.RequestsPerSec,
		},
		Origins: serverCfg.AllowedOrigins,
	})

	// Scoreboard link
	var publisher *ipc.Publisher
	if appConfig.IPC.Enabled {
		publisher = ipc.NewPublisher(appConfig.IPC.Address, appConfig.IPC.Rate)
		publisher.SetHello(engine.Participants(), rules.WinScore, matchCfg.TickRate)
		if err := publisher.Start(); err != nil {
			log.Printf("⚠️ IPC publisher disabled: %v", err)
			publisher = nil
		}
	}

	var rec *recorder.Recorder
	if dir := appConfig.Recorder.Dir; dir != "" {
		rec = recorder.New(recorder.Config{
			Dir:        dir,
			SampleRate: appConfig.Recorder.SampleRate,
			RumbleHz:   appConfig.Recorder.RumbleHz,
			PixelsPerS: appConfig.Recorder.PixelsPerS,
		}, engine.TickInterval())
		log.Printf("🎞️ Recording matches to %s", dir)
	}

	hub := server.Hub()
	counters := &api.EngineCounters{}
	engine.SetCallbacks(
		func(e game.Event) {
			hub.PublishEvent(e)
			api.RecordEvent(e)
			if e.Type == game.EventTypeMatchOver {
				if p, err := game.DecodePayload[game.MatchPayload](e); err == nil {
					log.Printf("🏆 Wand %d wins (scores %v)", p.WinnerID, p.Scores)
				}
			}
		},
		func(snap *game.Snapshot) {
			api.RecordTick(engine.LastTickDuration())
			api.UpdateScores(snap)
			el := engine.EventLog()
			counters.Update(engine.DroppedInputs(), el.GetTotalCount(), el.GetDroppedCount())
			if publisher != nil {
				publisher.Publish(snap)
			}
			if rec != nil {
				rec.Record(snap)
			}
		},
	)

	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		log.Printf("🪄 Wands connect to ws://localhost%s/ws/wand/{0..%d}", addr, engine.Participants()-1)
		log.Printf("📱 Spectators: ws://localhost%s/ws", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gateway.Close()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ %v", err)
	}
	engine.Stop()
	if publisher != nil {
		publisher.Stop()
	}
	if rec != nil {
		if err := rec.Close(); err != nil {
			log.Printf("⚠️ Recording not written: %v", err)
		}
	}
	log.Println("👋 Goodbye!")
}

// combatRules converts the environment tunables into match rules. Scores
// are fixed by the game and always come from the defaults.
func combatRules(c config.CombatConfig) game.Rules {
	rules := game.DefaultRules()
	rules.WinScore = c.WinScore
	rules.ForceLimit = c.ForceLimit
	rules.ChargeCap = c.ChargeCap
	rules.ShieldEnergy = c.ShieldEnergy
	rules.CounterWindow = c.CounterWindow
	rules.OrientationThreshold = c.OrientationThreshold
	rules.StillThreshold = c.StillThreshold
	rules.HistorySize = c.HistorySize
	rules.Disconnect = game.ParseDisconnectPolicy(c.DisconnectPolicy)
	return rules
}
