package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"net"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkWriter accepts at most n bytes per Write call.
type chunkWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		p = p[:w.n]
	}
	return w.buf.Write(p)
}

// stuckWriter never makes progress.
type stuckWriter struct{}

func (stuckWriter) Write(p []byte) (int, error) { return 0, nil }

func payloadOf(n int) []byte {
	p := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(p)
	return p
}

func TestSendReceiveRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 3, 4, 5, 255, 4096, 1 << 20} {
		payload := payloadOf(size)

		var buf bytes.Buffer
		require.NoError(t, Send(&buf, payload))
		assert.Equal(t, HeaderSize+size, buf.Len())
		assert.Equal(t, uint32(size), binary.BigEndian.Uint32(buf.Bytes()[:HeaderSize]))

		got, err := Receive(&buf, 0)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, payload, got, "size %d", size)
	}
}

func TestPartialReadsAndWrites(t *testing.T) {
	for _, size := range []int{0, 7, 1000} {
		payload := payloadOf(size)

		w := &chunkWriter{n: 3}
		require.NoError(t, Send(w, payload))

		// One byte per Read call exercises every partial-read path.
		got, err := Receive(iotest.OneByteReader(&w.buf), 0)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestSendStuckWriter(t *testing.T) {
	err := Send(stuckWriter{}, []byte("hello"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestReceiveCleanEOF(t *testing.T) {
	_, err := Receive(bytes.NewReader(nil), 0)
	assert.Equal(t, io.EOF, err)
}

func TestReceiveTruncated(t *testing.T) {
	var full bytes.Buffer
	require.NoError(t, Send(&full, []byte("0123456789")))
	wire := full.Bytes()

	tests := []struct {
		name     string
		cut      int
		op       string
		received uint64
	}{
		{"mid header", 2, "read header", 2},
		{"header only", HeaderSize, "read payload", 0},
		{"mid payload", HeaderSize + 6, "read payload", 6},
		{"one byte short", len(wire) - 1, "read payload", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Receive(bytes.NewReader(wire[:tt.cut]), 0)
			assert.Nil(t, got, "truncated payload must never be returned")
			require.ErrorIs(t, err, ErrTruncated)

			var ferr *Error
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, tt.op, ferr.Op)
			assert.Equal(t, tt.received, ferr.Received)
			if tt.op == "read payload" {
				assert.Equal(t, uint64(10), ferr.Declared)
			}
		})
	}
}

func TestReceiveTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, payloadOf(100)))

	got, err := Receive(&buf, 99)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "declared 100 bytes")

	// Exactly at the cap is fine.
	buf.Reset()
	require.NoError(t, Send(&buf, payloadOf(100)))
	got, err = Receive(&buf, 100)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestReceiveTransportError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Receive(iotest.ErrReader(boom), 0)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTruncated)
}

func TestReaderWriterOverPipe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	messages := [][]byte{[]byte("baseline"), {}, payloadOf(64 * 1024)}

	w := NewWriter(client)
	done := make(chan error, 1)
	go func() {
		for _, m := range messages {
			if err := w.Send(m); err != nil {
				done <- err
				return
			}
		}
		done <- client.Close()
	}()

	r := NewReader(server, DefaultMaxPayload)
	for i, want := range messages {
		got, err := r.Receive()
		require.NoError(t, err, "message %d", i)
		assert.Equal(t, want, got, "message %d", i)
	}

	_, err := r.Receive()
	assert.Equal(t, io.EOF, err)
	require.NoError(t, <-done)

	assert.Equal(t, uint64(3), w.Messages())
	assert.Equal(t, uint64(3), r.Messages())
	assert.Equal(t, w.Bytes(), r.Bytes())
	assert.Equal(t, uint32(DefaultMaxPayload), r.MaxPayload())
}

func TestPeerClosesMidMessage(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		var header [HeaderSize]byte
		binary.BigEndian.PutUint32(header[:], 1000)
		client.Write(header[:])
		client.Write([]byte("only a little"))
		client.Close()
	}()

	_, err := Receive(server, 0)
	require.ErrorIs(t, err, ErrTruncated)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, uint64(1000), ferr.Declared)
	assert.Equal(t, uint64(len("only a little")), ferr.Received)
}
