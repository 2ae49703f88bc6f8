package wand

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"wizardry/internal/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	sendQueue    = 16
)

// Session is one device bridge connection driving one participant.
// It is also the participant's Actuator: feedback is queued and written
// by the session's own writer goroutine.
type Session struct {
	id        string
	wand      int
	conn      *websocket.Conn
	engine    Engine
	limiter   *rate.Limiter
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	device string

	pending []game.ButtonEdge // owned by the read loop

	received atomic.Uint64
	limited  atomic.Uint64
	rejected atomic.Uint64
	dropped  atomic.Uint64
}

func newSession(conn *websocket.Conn, wand int, engine Engine, perSec float64) *Session {
	burst := int(perSec / 4)
	if burst < 1 {
		burst = 1
	}
	return &Session{
		id:      uuid.NewString(),
		wand:    wand,
		conn:    conn,
		engine:  engine,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		send:    make(chan []byte, sendQueue),
		done:    make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Wand returns the participant this session drives.
func (s *Session) Wand() int { return s.wand }

// Apply queues a feedback frame. Never blocks; when the queue is full the
// oldest frame is dropped since only the latest output matters.
func (s *Session) Apply(out game.Output) {
	msg, err := Encode(MsgFeedback, FeedbackFrom(out))
	if err != nil {
		return
	}
	s.enqueue(msg)
}

func (s *Session) enqueue(msg []byte) {
	for i := 0; i < sendQueue; i++ {
		select {
		case s.send <- msg:
			return
		default:
		}
		select {
		case <-s.send:
		default:
		}
	}
}

func (s *Session) sendError(err error) {
	if msg, e := Encode(MsgError, ErrorMessage{Message: err.Error()}); e == nil {
		s.enqueue(msg)
	}
}

// run serves the connection until it closes.
func (s *Session) run() {
	go s.writeLoop()
	s.readLoop()
	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ Wand %d read error: %v", s.wand, err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.received.Add(1)

		if err := s.handle(data); err != nil {
			s.rejected.Add(1)
			s.sendError(err)
		}
	}
}

func (s *Session) handle(data []byte) error {
	env, err := Decode(data)
	if err != nil {
		return err
	}

	switch env.T {
	case MsgMotion:
		m, err := DecodePayload[Motion](env)
		if err != nil {
			return err
		}
		in, err := m.Input(s.wand)
		if err != nil {
			return err
		}
		if !s.limiter.Allow() {
			s.limited.Add(1)
			if len(in.Buttons) == 0 && len(s.pending) == 0 {
				return nil
			}
			// Button edges are never rate limited, only the rotation they ride with
			in.Rotation = 0
		}
		s.post(in)
		return nil

	case MsgHello:
		h, err := DecodePayload[Hello](env)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.device = h.Device
		s.mu.Unlock()
		log.Printf("🪄 Wand %d identified as %q", s.wand, h.Device)
		return nil

	default:
		return ErrUnknownMessage
	}
}

// post hands an input to the engine. Edges the engine could not take are
// carried over to the next message so a release is never lost.
func (s *Session) post(in game.Input) {
	if len(s.pending) > 0 {
		in.Buttons = append(s.pending, in.Buttons...)
		s.pending = nil
	}
	if s.engine.Post(in) {
		return
	}
	s.dropped.Add(1)
	if len(in.Buttons) > 0 {
		s.pending = in.Buttons
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Printf("⚠️ Wand %d write error: %v", s.wand, err)
				}
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// Stats returns message counters for this session.
func (s *Session) Stats() map[string]interface{} {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()

	return map[string]interface{}{
		"session":  s.id,
		"wand":     s.wand,
		"device":   device,
		"received": s.received.Load(),
		"limited":  s.limited.Load(),
		"rejected": s.rejected.Load(),
		"dropped":  s.dropped.Load(),
	}
}
