package recording

import (
	"errors"

	"github.com/teslashibe/go-framestream/pkg/frame"
	"github.com/teslashibe/go-framestream/pkg/stream"
)

// Multi writes every frame to each sink in order. Write stops at the first
// failing sink; Finalize finalizes all of them and joins their errors.
type Multi []stream.Sink

// Tee returns a sink over the non-nil sinks, or nil when there are none.
func Tee(sinks ...stream.Sink) stream.Sink {
	var m Multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) Write(f *frame.Frame) error {
	for _, s := range m {
		if err := s.Write(f); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Finalize() error {
	var errs []error
	for _, s := range m {
		if err := s.Finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
