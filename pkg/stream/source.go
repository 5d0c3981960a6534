package stream

import (
	"context"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

// Source supplies frames on demand.
type Source interface {
	// Fetch returns the next frame. A nil frame with a nil error means the
	// source is exhausted; the session closes with ErrSourceExhausted.
	Fetch(ctx context.Context) (*frame.Frame, error)
}

// SourceFunc adapts a function to the Source interface. Arguments the
// function needs are captured by the closure.
type SourceFunc func(ctx context.Context) (*frame.Frame, error)

// Fetch calls fn(ctx).
func (fn SourceFunc) Fetch(ctx context.Context) (*frame.Frame, error) {
	return fn(ctx)
}

// Sink receives every raw frame the session handles, before it is sent.
type Sink interface {
	// Write appends one frame.
	Write(f *frame.Frame) error

	// Finalize flushes and releases the sink. The session calls it exactly
	// once, when it closes.
	Finalize() error
}
