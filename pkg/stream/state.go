package stream

import (
	"net"
	"time"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

// State is the session lifecycle state.
type State int

const (
	StateListening State = iota
	StateConnected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// state is the tagged session state. Each variant carries only the fields
// valid while the session is in it.
type state interface {
	kind() State
}

type listening struct {
	ln net.Listener
}

type connected struct {
	conn net.Conn
}

type streaming struct {
	conn net.Conn
	prev *frame.Frame
	seq  uint64
}

type closed struct {
	err error
}

func (*listening) kind() State { return StateListening }
func (*connected) kind() State { return StateConnected }
func (*streaming) kind() State { return StateStreaming }
func (*closed) kind() State    { return StateClosed }

// StateChange describes one lifecycle transition.
type StateChange struct {
	SessionID string
	From      State
	To        State
	Err       error // set when the session closed on error
	At        time.Time
}

// FrameStats describes one sent frame.
type FrameStats struct {
	SessionID    string
	Seq          uint64 // delta index; the baseline has Baseline set and Seq 0
	Baseline     bool
	RawBytes     int
	PayloadBytes int
	Encode       time.Duration
}

// Stats is a snapshot of session counters.
type Stats struct {
	SessionID        string      `json:"session_id"`
	State            State       `json:"state"`
	Addr             string      `json:"addr"`
	Peer             string      `json:"peer,omitempty"`
	Shape            frame.Shape `json:"shape"`
	FramesSent       uint64      `json:"frames_sent"`
	BytesSent        uint64      `json:"bytes_sent"`
	RawBytes         uint64      `json:"raw_bytes"`
	LastPayloadBytes int         `json:"last_payload_bytes"`
	StartedAt        time.Time   `json:"started_at"`
	ConnectedAt      time.Time   `json:"connected_at"`
	Error            string      `json:"error,omitempty"`
}

// CompressionRatio returns raw bytes per wire byte, or 0 before any frame.
func (s Stats) CompressionRatio() float64 {
	if s.BytesSent == 0 {
		return 0
	}
	return float64(s.RawBytes) / float64(s.BytesSent)
}
