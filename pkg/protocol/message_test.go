package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-framestream/pkg/frame"
	"github.com/teslashibe/go-framestream/pkg/stream"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "state message",
			msgType: TypeState,
			data:    StateData{From: "listening", To: "connected"},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypeStats,
			data:    nil,
			wantErr: false,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeError,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestStateMessage(t *testing.T) {
	msg, err := NewStateMessage(stream.StateChange{
		SessionID: "s1",
		From:      stream.StateStreaming,
		To:        stream.StateClosed,
		Err:       stream.ErrSourceExhausted,
	})
	if err != nil {
		t.Fatalf("NewStateMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeState {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeState)
	}

	var data StateData
	if err := parsed.ParseData(&data); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if data.From != "streaming" || data.To != "closed" {
		t.Errorf("transition = %s -> %s, want streaming -> closed", data.From, data.To)
	}
	if data.Error != "frame source exhausted" {
		t.Errorf("Error = %q", data.Error)
	}
}

func TestStatsDataFrom(t *testing.T) {
	s := stream.Stats{
		SessionID:  "s2",
		State:      stream.StateStreaming,
		Shape:      frame.Shape{Height: 480, Width: 640, Channels: 3},
		FramesSent: 10,
		BytesSent:  1000,
		RawBytes:   4000,
		StartedAt:  time.Now().Add(-2 * time.Second),
	}

	data := StatsDataFrom(s)
	if data.State != "streaming" {
		t.Errorf("State = %q, want streaming", data.State)
	}
	if data.Shape != "480x640x3" {
		t.Errorf("Shape = %q, want 480x640x3", data.Shape)
	}
	if data.CompressionRatio != 4 {
		t.Errorf("CompressionRatio = %v, want 4", data.CompressionRatio)
	}
	if data.UptimeSec < 2 {
		t.Errorf("UptimeSec = %v, want >= 2", data.UptimeSec)
	}

	empty := StatsDataFrom(stream.Stats{})
	if empty.Shape != "" || empty.UptimeSec != 0 {
		t.Errorf("zero stats should have no shape or uptime, got %+v", empty)
	}
}

func TestFrameAndErrorMessages(t *testing.T) {
	msg, err := NewFrameMessage(stream.FrameStats{Seq: 7, PayloadBytes: 512, Encode: 1500 * time.Microsecond})
	if err != nil {
		t.Fatalf("NewFrameMessage() error = %v", err)
	}
	var fd FrameData
	if err := msg.ParseData(&fd); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if fd.Seq != 7 || fd.EncodeMs != 1.5 {
		t.Errorf("frame data = %+v", fd)
	}

	msg, err = NewErrorMessage("s3", &stream.SinkError{Op: "write", Err: errors.New("disk full")})
	if err != nil {
		t.Fatalf("NewErrorMessage() error = %v", err)
	}
	var ed ErrorData
	if err := msg.ParseData(&ed); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if ed.Kind != "sink" {
		t.Errorf("Kind = %q, want sink", ed.Kind)
	}
}

func TestParseMessageInvalid(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("ParseMessage() should fail on invalid JSON")
	}
}
