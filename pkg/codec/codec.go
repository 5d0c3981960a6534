// Package codec turns frames into compressed wire payloads and back.
//
// A payload is a zstd frame wrapping a .npy array blob. The first payload of
// a stream carries the baseline frame itself; every later payload carries the
// mod-256 difference against the previous frame. Each payload is compressed
// independently, so decoding one needs nothing but the previous frame.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/teslashibe/go-framestream/pkg/frame"
)

// Config holds codec settings.
type Config struct {
	// Level is the zstd compression level (1-22). Default: 3, the zstd default.
	Level int `yaml:"level" json:"level"`

	// MaxDecodedSize bounds the memory a single decoded payload may use.
	// Default: 256 MiB.
	MaxDecodedSize uint64 `yaml:"max_decoded_size" json:"max_decoded_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:          3,
		MaxDecodedSize: 256 << 20,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Level < 1 || c.Level > 22 {
		return fmt.Errorf("level must be between 1 and 22, got %d", c.Level)
	}
	if c.MaxDecodedSize == 0 {
		return fmt.Errorf("max_decoded_size must be positive")
	}
	return nil
}

// Codec compresses and decompresses frame payloads. It is safe for
// concurrent use.
type Codec struct {
	cfg Config
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a Codec.
func New(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid codec config: %w", err)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(cfg.MaxDecodedSize),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Codec{cfg: cfg, enc: enc, dec: dec}, nil
}

// Config returns the codec configuration.
func (c *Codec) Config() Config {
	return c.cfg
}

// EncodeBaseline serializes and compresses f without a delta.
func (c *Codec) EncodeBaseline(f *frame.Frame) ([]byte, error) {
	return c.compress(MarshalArray(f)), nil
}

// EncodeDelta compresses the difference between f and prev. A shape
// mismatch returns *ShapeMismatchError.
func (c *Codec) EncodeDelta(f, prev *frame.Frame) ([]byte, error) {
	delta, err := Delta(f, prev)
	if err != nil {
		return nil, err
	}
	return c.compress(MarshalArray(delta)), nil
}

// DecodeBaseline reverses EncodeBaseline.
func (c *Codec) DecodeBaseline(blob []byte) (*frame.Frame, error) {
	raw, err := c.decompress(blob)
	if err != nil {
		return nil, err
	}
	return UnmarshalArray(raw)
}

// DecodeDelta reverses EncodeDelta given the receiver's previous frame.
func (c *Codec) DecodeDelta(blob []byte, prev *frame.Frame) (*frame.Frame, error) {
	raw, err := c.decompress(blob)
	if err != nil {
		return nil, err
	}
	delta, err := UnmarshalArray(raw)
	if err != nil {
		return nil, err
	}
	return Apply(delta, prev)
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *Codec) compress(raw []byte) []byte {
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
}

func (c *Codec) decompress(blob []byte) ([]byte, error) {
	raw, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, &Error{Op: "decompress", Err: err}
	}
	return raw, nil
}
