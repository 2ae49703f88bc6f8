// Command scoreboard shows the running match in a terminal. It follows the
// combat server over the local IPC socket and survives server restarts.
package main

import (
	"log"
	"os"

	"wizardry/internal/config"
	"wizardry/internal/ipc"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load(".env")
	}

	// The terminal belongs to the scoreboard; keep log output out of it
	if f, err := os.OpenFile("scoreboard.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	ipcCfg := config.IPCFromEnv()

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Failed to init screen: %v", err)
	}
	defer screen.Fini()

	redraw := func() { _ = screen.PostEvent(tcell.NewEventInterrupt(nil)) }

	sub := ipc.NewSubscriber(ipcCfg.Address)
	sub.OnFrame(func(*ipc.ScoreboardFrame) { redraw() })
	sub.OnConnect(func(*ipc.Hello) { redraw() })
	sub.OnDisconnect(redraw)
	sub.Start()
	defer sub.Stop()

	drawFrame(screen, nil, false)
	screen.Show()

	for {
		switch ev := screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				return
			}
		case *tcell.EventResize:
			screen.Sync()
		}
		drawFrame(screen, sub.Latest(), sub.IsConnected())
		screen.Show()
	}
}
