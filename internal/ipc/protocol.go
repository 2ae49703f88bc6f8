// Package ipc streams scoreboard frames from the combat server to local
// display processes over a unix socket (TCP on loopback for windows).
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	// DefaultSocketPath is the unix socket path for IPC
	DefaultSocketPath = "/tmp/wizardry.sock"

	// DefaultTCPPort is used instead of a socket on windows
	DefaultTCPPort = "127.0.0.1:7345"

	// Message types
	MsgTypeFrame byte = 0x01
	MsgTypePing  byte = 0x02
	MsgTypePong  byte = 0x03
	MsgTypeHello byte = 0x04

	// Protocol version for compatibility checking
	ProtocolVersion uint16 = 1

	// Connection settings
	MaxMessageSize = 64 * 1024
	WriteTimeout   = 50 * time.Millisecond
	PingInterval   = time.Second
	ReadTimeout    = 3 * PingInterval
	ReconnectDelay = 500 * time.Millisecond
)

var (
	ErrVersionMismatch = errors.New("ipc: protocol version mismatch")
	ErrMessageTooLarge = errors.New("ipc: message too large")
)

// ScoreboardFrame is the display view of one published match state.
type ScoreboardFrame struct {
	Sequence  uint64
	Timestamp int64 // Unix nano

	MatchID  string
	Frame    uint64
	ClockNs  int64
	Status   string
	WinnerID int
	WinScore int

	Participants []ParticipantData
}

// ParticipantData is one scoreboard column.
type ParticipantData struct {
	ID         int
	Color      [3]uint8
	State      string
	Score      int
	TargetID   int
	AttackerID int
	Charge     float64 // 0..1
	Shield     float64 // 0..1
	Connected  bool
	Forfeited  bool
	LED        [3]uint8
	Rumble     float64
}

// Hello is sent once to every new subscriber.
type Hello struct {
	Participants int
	WinScore     int
	TickRate     int
}

// Header is the message header for framing
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

const HeaderSize = 8 // 2 + 1 + 1 + 4

var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// WriteMessage writes a framed, gob encoded message. A nil payload sends
// only the header.
func WriteMessage(w io.Writer, msgType byte, data interface{}) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	buf.Write(make([]byte, HeaderSize))
	if data != nil {
		if err := gob.NewEncoder(buf).Encode(data); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
	}

	frame := buf.Bytes()
	length := len(frame) - HeaderSize
	if length > MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, MaxMessageSize)
	}

	binary.LittleEndian.PutUint16(frame[0:2], ProtocolVersion)
	frame[2] = msgType
	frame[3] = 0
	binary.LittleEndian.PutUint32(frame[4:8], uint32(length))

	// Header and body go out in one write so concurrent writers never interleave
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message and returns its type and body.
func ReadMessage(r io.Reader) (byte, []byte, error) {
	var headerBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return 0, nil, err
	}

	header := Header{
		Version:  binary.LittleEndian.Uint16(headerBuf[0:2]),
		Type:     headerBuf[2],
		Reserved: headerBuf[3],
		Length:   binary.LittleEndian.Uint32(headerBuf[4:8]),
	}

	if header.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, header.Version, ProtocolVersion)
	}
	if header.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, header.Length, MaxMessageSize)
	}

	var body []byte
	if header.Length > 0 {
		body = make([]byte, header.Length)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, fmt.Errorf("read body: %w", err)
		}
	}
	return header.Type, body, nil
}

// DecodeFrame decodes a scoreboard frame body.
func DecodeFrame(data []byte) (*ScoreboardFrame, error) {
	var msg ScoreboardFrame
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode frame: %w", err)
	}
	return &msg, nil
}

// DecodeHello decodes a hello body.
func DecodeHello(data []byte) (*Hello, error) {
	var msg Hello
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
		return nil, fmt.Errorf("gob decode hello: %w", err)
	}
	return &msg, nil
}

// CleanupSocket removes the socket file if it exists
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}
