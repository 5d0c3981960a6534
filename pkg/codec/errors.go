package codec

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

var (
	// ErrCodec matches every *Error.
	ErrCodec = errors.New("codec error")

	// ErrShapeMismatch matches every *ShapeMismatchError.
	ErrShapeMismatch = errors.New("frame shape mismatch")
)

// Error reports a decompression failure or a malformed array blob.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCodec) true for any *Error.
func (e *Error) Is(target error) bool { return target == ErrCodec }

// ShapeMismatchError reports a frame whose dimensions differ from the
// session baseline. It is a programming error on the producer side.
type ShapeMismatchError struct {
	Want frame.Shape
	Got  frame.Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("codec: frame shape %s does not match baseline %s", e.Got, e.Want)
}

// Is makes errors.Is(err, ErrShapeMismatch) true for any *ShapeMismatchError.
func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

func codecErr(op string, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...)}
}
