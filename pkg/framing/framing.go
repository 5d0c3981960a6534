// Package framing implements length-prefixed messages over a byte stream.
//
// Every message is a 4-byte big-endian unsigned length followed by exactly
// that many payload bytes. The framer never inspects the payload.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the width of the length prefix in bytes.
const HeaderSize = 4

// DefaultMaxPayload bounds receiver memory against a misbehaving peer.
const DefaultMaxPayload = 64 << 20

var (
	// ErrTruncated means the stream ended inside a header or payload.
	ErrTruncated = errors.New("truncated message")

	// ErrTooLarge means a payload exceeds the configured cap or the prefix range.
	ErrTooLarge = errors.New("message too large")
)

// Error describes a malformed or truncated wire message.
type Error struct {
	Op       string // "read header", "read payload", "write"
	Declared uint64 // length from the prefix, when known
	Received uint64 // bytes actually read for the failing part
	Reason   error  // ErrTruncated or ErrTooLarge
	Err      error  // underlying transport error, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("framing: %s: %v", e.Op, e.Reason)
	switch {
	case errors.Is(e.Reason, ErrTooLarge):
		msg += fmt.Sprintf(" (declared %d bytes)", e.Declared)
	case e.Op == "read payload":
		msg += fmt.Sprintf(" (got %d of %d bytes)", e.Received, e.Declared)
	case e.Op == "read header":
		msg += fmt.Sprintf(" (got %d of %d header bytes)", e.Received, HeaderSize)
	}
	if e.Err != nil && !errors.Is(e.Err, io.ErrUnexpectedEOF) && !errors.Is(e.Err, io.EOF) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason and the transport error to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Send writes one length-prefixed message, looping until every byte of the
// header and payload has been written.
func Send(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return &Error{Op: "write", Declared: uint64(len(payload)), Reason: ErrTooLarge}
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	if err := writeFull(w, header[:]); err != nil {
		return fmt.Errorf("framing: write header: %w", err)
	}
	if err := writeFull(w, payload); err != nil {
		return fmt.Errorf("framing: write payload: %w", err)
	}
	return nil
}

// Receive reads one length-prefixed message. A max of zero disables the cap.
//
// A stream that ends before the first header byte returns io.EOF: the peer
// closed cleanly between messages. A stream that ends anywhere later returns
// an *Error matching ErrTruncated; partial payloads are never returned.
func Receive(r io.Reader, max uint32) ([]byte, error) {
	var header [HeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &Error{Op: "read header", Received: uint64(n), Reason: ErrTruncated, Err: err}
		}
		return nil, fmt.Errorf("framing: read header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if max > 0 && length > max {
		return nil, &Error{Op: "read header", Declared: uint64(length), Reason: ErrTooLarge}
	}

	payload := make([]byte, length)
	n, err = io.ReadFull(r, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &Error{Op: "read payload", Declared: uint64(length), Received: uint64(n), Reason: ErrTruncated, Err: err}
		}
		return nil, fmt.Errorf("framing: read payload: %w", err)
	}
	return payload, nil
}

// writeFull writes p in as many Write calls as needed. A writer that makes no
// progress without reporting an error yields io.ErrShortWrite.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
