package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teslashibe/go-framestream/pkg/metrics"
	"github.com/teslashibe/go-framestream/pkg/protocol"
	"github.com/teslashibe/go-framestream/pkg/stream"
)

func testStatus() stream.Stats {
	return stream.Stats{
		SessionID:  "sess-1",
		State:      stream.StateStreaming,
		Addr:       "127.0.0.1:8080",
		FramesSent: 5,
		BytesSent:  100,
		RawBytes:   1000,
		StartedAt:  time.Now(),
	}
}

func TestAPIStatus(t *testing.T) {
	s := NewServer(DefaultConfig(), testStatus, prometheus.NewRegistry(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	var data protocol.StatsData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if data.SessionID != "sess-1" || data.State != "streaming" || data.FramesSent != 5 {
		t.Errorf("unexpected status %+v", data)
	}
	if data.CompressionRatio != 10 {
		t.Errorf("CompressionRatio = %v, want 10", data.CompressionRatio)
	}
}

func TestAPIStatusWithoutSession(t *testing.T) {
	s := NewServer(DefaultConfig(), nil, prometheus.NewRegistry(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 503 {
		t.Errorf("Status = %d, want 503", resp.StatusCode)
	}

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/health", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("health Status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	m.FrameSent(1000, 100, time.Millisecond)

	s := NewServer(DefaultConfig(), testStatus, reg, nil)
	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "framestream_frames_sent_total 1") {
		t.Errorf("metrics output missing frames counter:\n%s", body)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(DefaultConfig(), testStatus, prometheus.NewRegistry(), nil)

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/status", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 426 {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
}

func TestStatusWebSocket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatsInterval = time.Hour
	s := NewServer(cfg, testStatus, prometheus.NewRegistry(), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		<-done
	}()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Greeting snapshot
	msg := readMessage(t, ws)
	if msg.Type != protocol.TypeStats {
		t.Fatalf("first message type = %s, want stats", msg.Type)
	}

	s.PublishState(stream.StateChange{
		SessionID: "sess-1",
		From:      stream.StateStreaming,
		To:        stream.StateClosed,
		Err:       stream.ErrSourceExhausted,
	})

	msg = readMessage(t, ws)
	if msg.Type != protocol.TypeState {
		t.Fatalf("message type = %s, want state", msg.Type)
	}
	var state protocol.StateData
	if err := msg.ParseData(&state); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if state.To != "closed" {
		t.Errorf("To = %q, want closed", state.To)
	}

	msg = readMessage(t, ws)
	if msg.Type != protocol.TypeError {
		t.Fatalf("message type = %s, want error", msg.Type)
	}
}

func readMessage(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	return msg
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.StatsInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero stats_interval should be invalid")
	}
}
