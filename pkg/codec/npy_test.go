package codec

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-framestream/pkg/frame"
)

func TestMarshalArrayLayout(t *testing.T) {
	f := frame.MustNew(frame.Shape{Height: 2, Width: 2, Channels: 1}, []byte{10, 20, 30, 40})
	blob := MarshalArray(f)

	require.True(t, strings.HasPrefix(string(blob), "\x93NUMPY\x01\x00"))
	headerLen := int(binary.LittleEndian.Uint16(blob[8:10]))
	assert.Zero(t, (10+headerLen)%64, "data must start on a 64-byte boundary")

	header := string(blob[10 : 10+headerLen])
	assert.True(t, strings.HasPrefix(header, "{'descr': '|u1', 'fortran_order': False, 'shape': (2, 2, 1), }"))
	assert.True(t, strings.HasSuffix(header, "\n"))
	assert.Equal(t, []byte{10, 20, 30, 40}, blob[10+headerLen:])
}

func TestUnmarshalArrayRoundTrip(t *testing.T) {
	for _, shape := range []frame.Shape{{Height: 1, Width: 1, Channels: 1}, {Height: 480, Width: 640, Channels: 3}, {Height: 3, Width: 1000, Channels: 4}} {
		f, err := frame.Zeros(shape)
		require.NoError(t, err)

		got, err := UnmarshalArray(MarshalArray(f))
		require.NoError(t, err)
		assert.Equal(t, shape, got.Shape())
	}
}

// npyBlob builds a v1.0 blob with an arbitrary header dict.
func npyBlob(dict string, data []byte) []byte {
	header := dict + "\n"
	blob := []byte("\x93NUMPY\x01\x00")
	blob = binary.LittleEndian.AppendUint16(blob, uint16(len(header)))
	blob = append(blob, header...)
	return append(blob, data...)
}

func TestUnmarshalArrayVariants(t *testing.T) {
	t.Run("2-D shape maps to one channel", func(t *testing.T) {
		f, err := UnmarshalArray(npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (2, 3), }", make([]byte, 6)))
		require.NoError(t, err)
		assert.Equal(t, frame.Shape{Height: 2, Width: 3, Channels: 1}, f.Shape())
	})

	t.Run("version 2 header", func(t *testing.T) {
		header := "{'descr': '<u1', 'fortran_order': False, 'shape': (1, 2, 1), }\n"
		blob := []byte("\x93NUMPY\x02\x00")
		blob = binary.LittleEndian.AppendUint32(blob, uint32(len(header)))
		blob = append(blob, header...)
		blob = append(blob, 7, 8)

		f, err := UnmarshalArray(blob)
		require.NoError(t, err)
		assert.Equal(t, []byte{7, 8}, f.Data())
	})
}

func TestUnmarshalArrayErrors(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("NOTNUMPY\x00\x00")},
		{"unsupported version", []byte("\x93NUMPY\x09\x00\x00\x00")},
		{"header overruns blob", []byte("\x93NUMPY\x01\x00\xff\x00{}")},
		{"float array", npyBlob("{'descr': '<f4', 'fortran_order': False, 'shape': (1, 1, 1), }", make([]byte, 4))},
		{"fortran order", npyBlob("{'descr': '|u1', 'fortran_order': True, 'shape': (1, 1, 1), }", make([]byte, 1))},
		{"missing shape", npyBlob("{'descr': '|u1', 'fortran_order': False, }", nil)},
		{"1-D shape", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (4,), }", make([]byte, 4))},
		{"4-D shape", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (1, 1, 1, 1), }", make([]byte, 1))},
		{"zero dimension", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (0, 1, 1), }", nil)},
		{"short data", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (2, 2, 1), }", make([]byte, 3))},
		{"extra data", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (2, 2, 1), }", make([]byte, 5))},
		{"overflowing shape", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (4294967296, 4294967296, 1), }", nil)},
		{"overflowing shape with data", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (4294967296, 4294967296, 4294967296), }", make([]byte, 8))},
		{"shape beyond data", npyBlob("{'descr': '|u1', 'fortran_order': False, 'shape': (1000000, 1000000, 3), }", make([]byte, 3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := UnmarshalArray(tt.blob)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrCodec)
		})
	}
}
