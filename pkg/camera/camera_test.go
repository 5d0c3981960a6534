package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"pattern without device", func(c *Config) { c.Pattern = true; c.Device = "" }, false},
		{"missing device", func(c *Config) { c.Device = " " }, true},
		{"tiny width", func(c *Config) { c.Width = 8 }, true},
		{"huge height", func(c *Config) { c.Height = 5000 }, true},
		{"zero framerate", func(c *Config) { c.Framerate = 0 }, true},
		{"zero scale", func(c *Config) { c.Scale = 0 }, true},
		{"negative frames", func(c *Config) { c.Frames = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			errs := cfg.Validate()
			if tt.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestPresetsValid(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.Empty(t, cfg.Validate(), name)
	}
	assert.Nil(t, GetPreset("8k"))
	assert.Len(t, Presets(), len(PresetNames()))

	p := GetPreset(Preset960p)
	assert.Equal(t, 1280, p.Width)
	assert.Equal(t, 960, p.Height)
}

func TestPatternLimitAndShape(t *testing.T) {
	cfg := PatternConfig()
	cfg.Width, cfg.Height = 32, 24
	cfg.Framerate = 120
	cfg.Frames = 3

	src, err := Open(cfg, nil)
	require.NoError(t, err)
	defer src.Close()

	var frames []*frame.Frame
	for {
		f, err := src.Fetch(context.Background())
		require.NoError(t, err)
		if f == nil {
			break
		}
		frames = append(frames, f)
	}

	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.Equal(t, frame.Shape{Height: 24, Width: 32, Channels: 3}, f.Shape())
	}
	assert.False(t, frames[0].Equal(frames[1]), "pattern should move")

	// Exhaustion is sticky.
	f, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestPatternPacing(t *testing.T) {
	cfg := PatternConfig()
	cfg.Width, cfg.Height = 16, 16
	cfg.Framerate = 20
	p := NewPattern(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPatternCanceled(t *testing.T) {
	cfg := PatternConfig()
	cfg.Framerate = 1
	p := NewPattern(cfg)

	_, err := p.Fetch(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scale = -1
	_, err := Open(cfg, nil)
	assert.ErrorContains(t, err, "scale")
}
