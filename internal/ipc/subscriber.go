package ipc

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber receives scoreboard frames and reconnects when the server
// goes away.
type Subscriber struct {
	socketPath string
	dial       func(string) (net.Conn, error)
	conn       net.Conn
	connMu     sync.Mutex

	latest atomic.Pointer[ScoreboardFrame]
	hello  atomic.Pointer[Hello]

	// Stats
	framesReceived atomic.Int64
	reconnects     atomic.Int64
	errors         atomic.Int64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Callbacks, set before Start
	onFrame      func(*ScoreboardFrame)
	onConnect    func(*Hello)
	onDisconnect func()
}

// NewSubscriber creates a subscriber for the platform address.
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &Subscriber{
		socketPath: socketPath,
		dial:       ConnectPlatform,
		stopCh:     make(chan struct{}),
	}
}

// OnFrame sets a callback for every received frame
func (s *Subscriber) OnFrame(fn func(*ScoreboardFrame)) {
	s.onFrame = fn
}

// OnConnect sets a callback for when the server greets us
func (s *Subscriber) OnConnect(fn func(*Hello)) {
	s.onConnect = fn
}

// OnDisconnect sets a callback for when connection is lost
func (s *Subscriber) OnDisconnect(fn func()) {
	s.onDisconnect = fn
}

// Start begins the connection loop.
func (s *Subscriber) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.connectionLoop()
	log.Printf("📡 IPC subscriber started, connecting to %s", GetPlatformAddress(s.socketPath))
}

// Stop closes the connection and waits for the loop to exit.
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	log.Println("📡 IPC subscriber stopped")
}

// Latest returns the most recent frame, or nil before the first one.
func (s *Subscriber) Latest() *ScoreboardFrame {
	return s.latest.Load()
}

// Hello returns the last greeting, or nil while never connected.
func (s *Subscriber) Hello() *Hello {
	return s.hello.Load()
}

// GetStats returns subscriber statistics
func (s *Subscriber) GetStats() (received int64, reconnects int64, failures int64) {
	return s.framesReceived.Load(), s.reconnects.Load(), s.errors.Load()
}

// IsConnected reports whether a connection is open
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.dial(s.socketPath)
		if err == nil {
			s.connMu.Lock()
			if !s.running.Load() {
				s.connMu.Unlock()
				conn.Close()
				return
			}
			s.conn = conn
			s.connMu.Unlock()

			s.readLoop(conn)

			s.connMu.Lock()
			s.conn = nil
			s.connMu.Unlock()
			conn.Close()

			if s.onDisconnect != nil {
				s.onDisconnect()
			}
			s.reconnects.Add(1)
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (s *Subscriber) readLoop(conn net.Conn) {
	for s.running.Load() {
		conn.SetReadDeadline(time.Now().Add(ReadTimeout))

		msgType, data, err := ReadMessage(conn)
		if err != nil {
			if !s.running.Load() || errors.Is(err, io.EOF) {
				return
			}
			log.Printf("⚠️ IPC read error: %v", err)
			s.errors.Add(1)
			return
		}

		switch msgType {
		case MsgTypeFrame:
			s.handleFrame(data)

		case MsgTypeHello:
			hello, err := DecodeHello(data)
			if err != nil {
				s.errors.Add(1)
				return
			}
			s.hello.Store(hello)
			log.Printf("✅ Connected to match server (%d wands, win at %d)", hello.Participants, hello.WinScore)
			if s.onConnect != nil {
				s.onConnect(hello)
			}

		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := WriteMessage(conn, MsgTypePong, nil); err != nil {
				return
			}
		}
	}
}

func (s *Subscriber) handleFrame(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode frame: %v", err)
		s.errors.Add(1)
		return
	}

	// Ignore frames older than the one already shown
	if prev := s.latest.Load(); prev != nil && prev.MatchID == frame.MatchID && prev.Frame > frame.Frame {
		return
	}
	s.latest.Store(frame)
	s.framesReceived.Add(1)

	if s.onFrame != nil {
		s.onFrame(frame)
	}
}
