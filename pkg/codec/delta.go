package codec

import "github.com/teslashibe/go-framestream/pkg/frame"

// Delta returns (f - prev) mod 256 elementwise. Near-static regions produce
// near-zero deltas, which is what makes them compress well.
func Delta(f, prev *frame.Frame) (*frame.Frame, error) {
	if f.Shape() != prev.Shape() {
		return nil, &ShapeMismatchError{Want: prev.Shape(), Got: f.Shape()}
	}
	a, b := f.Data(), prev.Data()
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return frame.New(f.Shape(), out)
}

// Apply returns (delta + prev) mod 256 elementwise, reversing Delta.
func Apply(delta, prev *frame.Frame) (*frame.Frame, error) {
	if delta.Shape() != prev.Shape() {
		return nil, &ShapeMismatchError{Want: prev.Shape(), Got: delta.Shape()}
	}
	d, b := delta.Data(), prev.Data()
	out := make([]byte, len(d))
	for i := range d {
		out[i] = d[i] + b[i]
	}
	return frame.New(delta.Shape(), out)
}
