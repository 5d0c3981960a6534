// Package protocol defines the JSON status events the dashboard pushes to
// browsers over websocket. Frames never travel this way; the events only
// describe the streaming session.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of status event
type MessageType string

const (
	TypeState MessageType = "state" // Session lifecycle transition
	TypeFrame MessageType = "frame" // One frame sent
	TypeStats MessageType = "stats" // Periodic counters snapshot
	TypeError MessageType = "error" // Session closed on error
)

// Message is the envelope for all status events
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// StateData describes a lifecycle transition
type StateData struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Error     string `json:"error,omitempty"`
}

// FrameData describes one sent frame
type FrameData struct {
	SessionID    string  `json:"session_id"`
	Seq          uint64  `json:"seq"`
	Baseline     bool    `json:"baseline,omitempty"`
	RawBytes     int     `json:"raw_bytes"`
	PayloadBytes int     `json:"payload_bytes"`
	EncodeMs     float64 `json:"encode_ms"`
}

// StatsData is a snapshot of the session counters
type StatsData struct {
	SessionID        string  `json:"session_id"`
	State            string  `json:"state"`
	Addr             string  `json:"addr"`
	Peer             string  `json:"peer,omitempty"`
	Shape            string  `json:"shape,omitempty"`
	FramesSent       uint64  `json:"frames_sent"`
	BytesSent        uint64  `json:"bytes_sent"`
	RawBytes         uint64  `json:"raw_bytes"`
	CompressionRatio float64 `json:"compression_ratio"`
	UptimeSec        float64 `json:"uptime_sec"`
	Error            string  `json:"error,omitempty"`
}

// ErrorData reports the error that closed a session
type ErrorData struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}
