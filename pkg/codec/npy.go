package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

// The array blob is the NumPy .npy format, so a Python peer can np.load it.
const (
	npyMagic     = "\x93NUMPY"
	npyAlignment = 64
	npyPrelude   = len(npyMagic) + 2 // magic + major + minor
)

var (
	npyDescrRe   = regexp.MustCompile(`['"]descr['"]\s*:\s*['"]([^'"]*)['"]`)
	npyFortranRe = regexp.MustCompile(`['"]fortran_order['"]\s*:\s*(True|False)`)
	npyShapeRe   = regexp.MustCompile(`['"]shape['"]\s*:\s*\(([^)]*)\)`)
)

// MarshalArray serializes f as a version 1.0 .npy blob with a uint8 element
// type and an (H, W, C) shape.
func MarshalArray(f *frame.Frame) []byte {
	s := f.Shape()
	dict := fmt.Sprintf("{'descr': '|u1', 'fortran_order': False, 'shape': (%d, %d, %d), }", s.Height, s.Width, s.Channels)

	// Header is padded with spaces and terminated by a newline so the data
	// starts on a 64-byte boundary.
	unpadded := npyPrelude + 2 + len(dict) + 1
	pad := (npyAlignment - unpadded%npyAlignment) % npyAlignment
	headerLen := len(dict) + pad + 1

	buf := bytes.NewBuffer(make([]byte, 0, npyPrelude+2+headerLen+f.Size()))
	buf.WriteString(npyMagic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	binary.Write(buf, binary.LittleEndian, uint16(headerLen))
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", pad))
	buf.WriteByte('\n')
	buf.Write(f.Data())
	return buf.Bytes()
}

// UnmarshalArray parses a .npy blob into a frame. Versions 1.0 to 3.0 are
// accepted; the element type must be uint8 in C order, and the shape must be
// (H, W) or (H, W, C). The returned frame aliases blob.
func UnmarshalArray(blob []byte) (*frame.Frame, error) {
	if len(blob) < npyPrelude+2 || string(blob[:len(npyMagic)]) != npyMagic {
		return nil, codecErr("unmarshal", "missing .npy magic")
	}

	major := blob[len(npyMagic)]
	var headerLen, offset int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(blob[npyPrelude:]))
		offset = npyPrelude + 2
	case 2, 3:
		if len(blob) < npyPrelude+4 {
			return nil, codecErr("unmarshal", "short .npy v%d preamble", major)
		}
		headerLen = int(binary.LittleEndian.Uint32(blob[npyPrelude:]))
		offset = npyPrelude + 4
	default:
		return nil, codecErr("unmarshal", "unsupported .npy version %d.%d", major, blob[len(npyMagic)+1])
	}

	if headerLen < 0 || offset+headerLen > len(blob) {
		return nil, codecErr("unmarshal", "header length %d exceeds blob of %d bytes", headerLen, len(blob))
	}
	header := string(blob[offset : offset+headerLen])
	data := blob[offset+headerLen:]

	shape, err := parseNpyHeader(header, len(data))
	if err != nil {
		return nil, err
	}
	if len(data) != shape.Len() {
		return nil, codecErr("unmarshal", "array data has %d bytes, shape %s needs %d", len(data), shape, shape.Len())
	}

	f, err := frame.New(shape, data)
	if err != nil {
		return nil, &Error{Op: "unmarshal", Err: err}
	}
	return f, nil
}

// parseNpyHeader extracts the shape from a header dict. The element count
// may not exceed limit, the number of data bytes that follow the header.
func parseNpyHeader(header string, limit int) (frame.Shape, error) {
	m := npyDescrRe.FindStringSubmatch(header)
	if m == nil {
		return frame.Shape{}, codecErr("unmarshal", "header has no descr")
	}
	switch m[1] {
	case "|u1", "u1", "<u1", ">u1", "=u1", "|B", "B":
	default:
		return frame.Shape{}, codecErr("unmarshal", "unsupported element type %q", m[1])
	}

	m = npyFortranRe.FindStringSubmatch(header)
	if m == nil {
		return frame.Shape{}, codecErr("unmarshal", "header has no fortran_order")
	}
	if m[1] == "True" {
		return frame.Shape{}, codecErr("unmarshal", "fortran-ordered arrays are not supported")
	}

	m = npyShapeRe.FindStringSubmatch(header)
	if m == nil {
		return frame.Shape{}, codecErr("unmarshal", "header has no shape")
	}
	var dims []int
	n := 1
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || d <= 0 {
			return frame.Shape{}, codecErr("unmarshal", "bad shape dimension %q", part)
		}
		if d > limit/n {
			return frame.Shape{}, codecErr("unmarshal", "shape (%s) exceeds %d data bytes", m[1], limit)
		}
		n *= d
		dims = append(dims, d)
	}

	switch len(dims) {
	case 2:
		return frame.Shape{Height: dims[0], Width: dims[1], Channels: 1}, nil
	case 3:
		return frame.Shape{Height: dims[0], Width: dims[1], Channels: dims[2]}, nil
	default:
		return frame.Shape{}, codecErr("unmarshal", "expected a 2-D or 3-D array, got %d dimensions", len(dims))
	}
}
