package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-framestream/pkg/codec"
	"github.com/teslashibe/go-framestream/pkg/framing"
)

var (
	// ErrSourceExhausted means the frame source returned no frame.
	ErrSourceExhausted = errors.New("frame source exhausted")

	// ErrSink matches every *SinkError.
	ErrSink = errors.New("recording sink error")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrNoPeer is returned by TryAccept when no peer is waiting.
	ErrNoPeer = errors.New("no peer waiting")

	// ErrInvalidState is returned when an operation does not apply to the
	// current session state.
	ErrInvalidState = errors.New("invalid session state")
)

// SinkError reports a recording sink write or finalize failure.
type SinkError struct {
	Op  string // "write" or "finalize"
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSink) true for any *SinkError.
func (e *SinkError) Is(target error) bool { return target == ErrSink }

// ErrorKind classifies a session error for logs and metric labels.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, framing.ErrTruncated), errors.Is(err, framing.ErrTooLarge):
		return "framing"
	case errors.Is(err, codec.ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, codec.ErrCodec):
		return "codec"
	case errors.Is(err, ErrSink):
		return "sink"
	case errors.Is(err, ErrSourceExhausted):
		return "source_exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport"
	}
}
