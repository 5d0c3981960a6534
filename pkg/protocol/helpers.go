package protocol

import (
	"time"

	"github.com/teslashibe/go-framestream/pkg/stream"
)

// =============================================================================
// Helper functions for creating messages from session events
// =============================================================================

// NewStateMessage creates a state message from a lifecycle transition
func NewStateMessage(c stream.StateChange) (*Message, error) {
	data := StateData{
		SessionID: c.SessionID,
		From:      c.From.String(),
		To:        c.To.String(),
	}
	if c.Err != nil {
		data.Error = c.Err.Error()
	}
	return NewMessage(TypeState, data)
}

// NewFrameMessage creates a frame message
func NewFrameMessage(fs stream.FrameStats) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		SessionID:    fs.SessionID,
		Seq:          fs.Seq,
		Baseline:     fs.Baseline,
		RawBytes:     fs.RawBytes,
		PayloadBytes: fs.PayloadBytes,
		EncodeMs:     float64(fs.Encode.Microseconds()) / 1000,
	})
}

// NewStatsMessage creates a stats message from a session snapshot
func NewStatsMessage(s stream.Stats) (*Message, error) {
	return NewMessage(TypeStats, StatsDataFrom(s))
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID string, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		SessionID: sessionID,
		Kind:      stream.ErrorKind(err),
		Message:   err.Error(),
	})
}

// StatsDataFrom converts a session snapshot
func StatsDataFrom(s stream.Stats) StatsData {
	data := StatsData{
		SessionID:        s.SessionID,
		State:            s.State.String(),
		Addr:             s.Addr,
		Peer:             s.Peer,
		FramesSent:       s.FramesSent,
		BytesSent:        s.BytesSent,
		RawBytes:         s.RawBytes,
		CompressionRatio: s.CompressionRatio(),
		Error:            s.Error,
	}
	if s.Shape.Valid() {
		data.Shape = s.Shape.String()
	}
	if !s.StartedAt.IsZero() {
		data.UptimeSec = time.Since(s.StartedAt).Seconds()
	}
	return data
}
