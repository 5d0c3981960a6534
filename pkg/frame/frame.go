// Package frame defines the image frame type shared by sources, the codec,
// the streaming session and recording sinks.
package frame

import (
	"bytes"
	"fmt"
	"math"
)

// Shape is the dimensions of a frame.
type Shape struct {
	Height   int `json:"height" yaml:"height"`
	Width    int `json:"width" yaml:"width"`
	Channels int `json:"channels" yaml:"channels"`
}

// Len returns the number of samples a frame of this shape holds.
func (s Shape) Len() int {
	return s.Height * s.Width * s.Channels
}

// Valid reports whether every dimension is positive and Len does not
// overflow.
func (s Shape) Valid() bool {
	if s.Height <= 0 || s.Width <= 0 || s.Channels <= 0 {
		return false
	}
	return s.Height <= math.MaxInt/s.Width && s.Height*s.Width <= math.MaxInt/s.Channels
}

// String formats the shape as HxWxC.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Frame is an array of unsigned 8-bit samples laid out row-major with
// interleaved channels, the layout of a C-ordered NumPy array and of an
// 8-bit OpenCV Mat.
//
// Frames are immutable at rest: once a frame is handed to a session, codec
// or sink, neither the producer nor the consumer may modify the slice
// returned by Data.
type Frame struct {
	shape Shape
	data  []byte
}

// New wraps data as a frame of the given shape without copying it.
func New(shape Shape, data []byte) (*Frame, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("invalid frame shape %s", shape)
	}
	if len(data) != shape.Len() {
		return nil, fmt.Errorf("frame data has %d samples, shape %s needs %d", len(data), shape, shape.Len())
	}
	return &Frame{shape: shape, data: data}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed
// fixtures.
func MustNew(shape Shape, data []byte) *Frame {
	f, err := New(shape, data)
	if err != nil {
		panic(err)
	}
	return f
}

// Zeros returns an all-zero frame of the given shape.
func Zeros(shape Shape) (*Frame, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("invalid frame shape %s", shape)
	}
	return &Frame{shape: shape, data: make([]byte, shape.Len())}, nil
}

// Shape returns the frame dimensions.
func (f *Frame) Shape() Shape {
	return f.shape
}

// Data returns the raw samples. The slice must not be modified.
func (f *Frame) Data() []byte {
	return f.data
}

// Size returns the number of bytes in the frame.
func (f *Frame) Size() int {
	return len(f.data)
}

// At returns the sample at row y, column x, channel c.
func (f *Frame) At(y, x, c int) uint8 {
	return f.data[(y*f.shape.Width+x)*f.shape.Channels+c]
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.data))
	copy(data, f.data)
	return &Frame{shape: f.shape, data: data}
}

// Equal reports whether both frames have the same shape and samples.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.shape == other.shape && bytes.Equal(f.data, other.data)
}

// IsZero reports whether every sample is zero.
func (f *Frame) IsZero() bool {
	for _, v := range f.data {
		if v != 0 {
			return false
		}
	}
	return true
}
