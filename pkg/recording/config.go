// Package recording provides session sinks that keep a local copy of the
// streamed frames: an MJPG video file and a live preview window.
package recording

import (
	"fmt"
	"path/filepath"
)

// Config holds video file recording configuration.
type Config struct {
	// Enabled turns recording on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the output directory. Created if missing.
	Path string `yaml:"path" json:"path"`

	// FileName is the output file name inside Path.
	FileName string `yaml:"file_name" json:"file_name"`

	// FPS is the frame rate written into the container.
	FPS float64 `yaml:"fps" json:"fps"`

	// Width and Height are the recorded resolution. Frames of another size
	// are resized.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// FourCC is the four character codec code.
	FourCC string `yaml:"fourcc" json:"fourcc"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		Path:     ".",
		FileName: "outpy.avi",
		FPS:      10,
		Width:    640,
		Height:   480,
		FourCC:   "MJPG",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.FileName == "" {
		return fmt.Errorf("file_name is required")
	}
	if filepath.Base(c.FileName) != c.FileName {
		return fmt.Errorf("file_name must not contain a directory, got %q", c.FileName)
	}
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("fps must be between 0 and 240, got %v", c.FPS)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if len(c.FourCC) != 4 {
		return fmt.Errorf("fourcc must be 4 characters, got %q", c.FourCC)
	}
	return nil
}

// File returns the full output path.
func (c *Config) File() string {
	return filepath.Join(c.Path, c.FileName)
}
