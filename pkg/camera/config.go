// Package camera provides frame sources: an OpenCV capture device and a
// synthetic test pattern. Both satisfy the streaming session's Source
// contract and return a nil frame once exhausted.
package camera

import "strings"

// Config holds camera source configuration.
type Config struct {
	// Device is a capture device index ("0") or a video file or stream URL.
	Device string `yaml:"device" json:"device"`

	// === Resolution ===
	Width     int `yaml:"width" json:"width"`         // Requested frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Requested frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Target FPS

	// Scale resizes every captured frame by this factor in both dimensions.
	// 1.0 leaves frames at the capture resolution.
	Scale float64 `yaml:"scale" json:"scale"`

	// Mirror flips frames horizontally, as a selfie view.
	Mirror bool `yaml:"mirror" json:"mirror"`

	// Pattern replaces the device with a generated test pattern.
	Pattern bool `yaml:"pattern" json:"pattern"`

	// Frames stops the source after this many frames. 0 = unlimited.
	Frames int `yaml:"frames" json:"frames"`
}

// Capture limits.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxScale     = 4.0
)

// DefaultConfig returns a mirrored 640x480 capture from the first device.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Scale:     1.0,
		Mirror:    true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 16 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 16 and 4096")
	}
	if c.Height < 16 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 16 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Scale <= 0 || c.Scale > MaxScale {
		errors = append(errors, "scale must be greater than 0 and at most 4.0")
	}
	if c.Frames < 0 {
		errors = append(errors, "frames must not be negative")
	}
	if !c.Pattern && strings.TrimSpace(c.Device) == "" {
		errors = append(errors, "device is required unless pattern is set")
	}

	return errors
}
