package ipc

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"wizardry/internal/game"
)

// Publisher streams scoreboard frames to connected display processes.
// Publish only records the newest snapshot; a ticker sends it at the
// configured rate, so snapshots published in between are superseded.
type Publisher struct {
	socketPath string
	ownsSocket bool
	rate       int
	listener   net.Listener

	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	latest atomic.Pointer[game.Snapshot]
	sent   atomic.Pointer[game.Snapshot]
	hello  atomic.Pointer[Hello]

	// Stats
	clientCount   atomic.Int32
	framesSent    atomic.Int64
	droppedFrames atomic.Int64
	sequence      uint64 // broadcast goroutine only

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a publisher sending rate frames per second.
func NewPublisher(socketPath string, rate int) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if rate <= 0 {
		rate = 20
	}

	p := &Publisher{
		socketPath: socketPath,
		rate:       rate,
		clients:    make(map[net.Conn]struct{}),
		stopCh:     make(chan struct{}),
	}
	p.hello.Store(&Hello{})
	return p
}

// SetHello sets the match description sent to new subscribers.
func (p *Publisher) SetHello(participants, winScore, tickRate int) {
	p.hello.Store(&Hello{
		Participants: participants,
		WinScore:     winScore,
		TickRate:     tickRate,
	})
}

// Start listens on the platform address and begins broadcasting.
func (p *Publisher) Start() error {
	listener, err := CreatePlatformListener(p.socketPath)
	if err != nil {
		return err
	}
	p.ownsSocket = true
	p.Serve(listener)
	log.Printf("📡 IPC publisher started on %s", GetPlatformAddress(p.socketPath))
	return nil
}

// Serve starts the accept and broadcast loops on an existing listener.
func (p *Publisher) Serve(listener net.Listener) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()
}

// Stop closes the listener and every client.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.stopCh)
	p.listener.Close()

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clientsMu.Unlock()

	p.wg.Wait()

	if p.ownsSocket {
		removePlatformAddress(p.socketPath)
	}
	log.Println("📡 IPC publisher stopped")
}

// Publish records the newest snapshot. It never blocks.
func (p *Publisher) Publish(snap *game.Snapshot) {
	if snap == nil || !p.running.Load() {
		return
	}
	prev := p.latest.Swap(snap)
	if prev != nil && prev != snap && prev != p.sent.Load() {
		p.droppedFrames.Add(1)
	}
}

// GetStats returns publisher statistics
func (p *Publisher) GetStats() (clients int, sent int64, dropped int64) {
	return int(p.clientCount.Load()), p.framesSent.Load(), p.droppedFrames.Load()
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if !p.running.Load() {
				return
			}
			log.Printf("⚠️ IPC accept error: %v", err)
			select {
			case <-p.stopCh:
				return
			case <-time.After(ReconnectDelay):
			}
			continue
		}
		p.addClient(conn)
	}
}

// addClient greets conn under the lock so no frame can overtake the hello.
func (p *Publisher) addClient(conn net.Conn) {
	p.clientsMu.Lock()
	if !p.running.Load() {
		p.clientsMu.Unlock()
		conn.Close()
		return
	}
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeHello, p.hello.Load()); err != nil {
		p.clientsMu.Unlock()
		log.Printf("⚠️ Failed to greet scoreboard: %v", err)
		conn.Close()
		return
	}
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	count := p.clientCount.Add(1)
	log.Printf("✅ Scoreboard connected (total: %d)", count)

	p.wg.Add(1)
	go p.readLoop(conn)
}

// readLoop drains pongs and notices when the subscriber goes away.
func (p *Publisher) readLoop(conn net.Conn) {
	defer p.wg.Done()
	defer p.removeClient(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(ReadTimeout))
		if _, _, err := ReadMessage(conn); err != nil {
			return
		}
	}
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	_, ok := p.clients[conn]
	delete(p.clients, conn)
	p.clientsMu.Unlock()
	conn.Close()

	if ok {
		count := p.clientCount.Add(-1)
		log.Printf("🔌 Scoreboard disconnected (remaining: %d)", count)
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(p.rate))
	defer ticker.Stop()
	ping := time.NewTicker(PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ping.C:
			p.broadcast(MsgTypePing, nil)
		case <-ticker.C:
			snap := p.latest.Load()
			if snap == nil || snap == p.sent.Load() {
				continue
			}
			p.sent.Store(snap)
			p.sequence++
			frame := FrameFromSnapshot(snap)
			frame.Sequence = p.sequence
			if p.broadcast(MsgTypeFrame, frame) {
				p.framesSent.Add(1)
			}
		}
	}
}

// broadcast writes one message to every client and drops the ones that fail.
func (p *Publisher) broadcast(msgType byte, data interface{}) bool {
	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	delivered := false
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, msgType, data); err != nil {
			p.removeClient(conn)
			continue
		}
		delivered = true
	}
	return delivered
}
