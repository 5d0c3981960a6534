package framing

import (
	"io"
	"sync/atomic"
)

// Writer sends framed messages to an underlying stream.
type Writer struct {
	w io.Writer

	messages atomic.Uint64
	bytes    atomic.Uint64
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes one message.
func (w *Writer) Send(payload []byte) error {
	if err := Send(w.w, payload); err != nil {
		return err
	}
	w.messages.Add(1)
	w.bytes.Add(uint64(HeaderSize + len(payload)))
	return nil
}

// Messages returns the number of messages written.
func (w *Writer) Messages() uint64 { return w.messages.Load() }

// Bytes returns the number of bytes written, prefixes included.
func (w *Writer) Bytes() uint64 { return w.bytes.Load() }

// Reader receives framed messages from an underlying stream.
type Reader struct {
	r   io.Reader
	max uint32

	messages atomic.Uint64
	bytes    atomic.Uint64
}

// NewReader creates a Reader over r that rejects payloads above max bytes.
// A max of zero disables the cap.
func NewReader(r io.Reader, max uint32) *Reader {
	return &Reader{r: r, max: max}
}

// Receive reads one message.
func (r *Reader) Receive() ([]byte, error) {
	payload, err := Receive(r.r, r.max)
	if err != nil {
		return nil, err
	}
	r.messages.Add(1)
	r.bytes.Add(uint64(HeaderSize + len(payload)))
	return payload, nil
}

// MaxPayload returns the configured payload cap.
func (r *Reader) MaxPayload() uint32 { return r.max }

// Messages returns the number of messages read.
func (r *Reader) Messages() uint64 { return r.messages.Load() }

// Bytes returns the number of bytes read, prefixes included.
func (r *Reader) Bytes() uint64 { return r.bytes.Load() }
