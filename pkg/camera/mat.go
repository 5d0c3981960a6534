package camera

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

// FromMat copies an 8-bit Mat with 1, 3 or 4 channels into a Frame.
func FromMat(m gocv.Mat) (*frame.Frame, error) {
	if m.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
	default:
		return nil, fmt.Errorf("unsupported mat type %v", m.Type())
	}
	shape := frame.Shape{Height: m.Rows(), Width: m.Cols(), Channels: m.Channels()}
	return frame.New(shape, m.ToBytes())
}

// ToMat builds a Mat over a copy of the frame samples. The caller must
// Close it.
func ToMat(f *frame.Frame) (gocv.Mat, error) {
	var mt gocv.MatType
	switch f.Shape().Channels {
	case 1:
		mt = gocv.MatTypeCV8UC1
	case 3:
		mt = gocv.MatTypeCV8UC3
	case 4:
		mt = gocv.MatTypeCV8UC4
	default:
		return gocv.NewMat(), fmt.Errorf("unsupported channel count %d", f.Shape().Channels)
	}
	buf := make([]byte, f.Size())
	copy(buf, f.Data())
	m, err := gocv.NewMatFromBytes(f.Shape().Height, f.Shape().Width, mt, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("create mat: %w", err)
	}
	return m, nil
}
