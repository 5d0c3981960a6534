package main

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-framestream/internal/config"
	"github.com/teslashibe/go-framestream/pkg/archive"
	"github.com/teslashibe/go-framestream/pkg/camera"
	"github.com/teslashibe/go-framestream/pkg/recording"
	"github.com/teslashibe/go-framestream/pkg/stream"
	"github.com/teslashibe/go-framestream/pkg/web"
)

// Config is the complete framestream configuration as read from a YAML file.
type Config struct {
	LogLevel  string              `yaml:"log_level"`
	Stream    stream.Config       `yaml:"stream"`
	Client    stream.ClientConfig `yaml:"client"`
	Camera    camera.Config       `yaml:"camera"`
	Recording recording.Config    `yaml:"recording"`
	Archive   archive.Config      `yaml:"archive"`
	Dashboard web.Config          `yaml:"dashboard"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		Stream:    stream.DefaultConfig(),
		Client:    stream.DefaultClientConfig(),
		Camera:    camera.DefaultConfig(),
		Recording: recording.DefaultConfig(),
		Archive:   archive.DefaultConfig(),
		Dashboard: web.DefaultConfig(),
	}
}

// LoadConfig layers the optional YAML file at path and then the
// environment over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := config.LoadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Stream.Bind = config.String("BIND", c.Stream.Bind)
	c.LogLevel = config.String("LOG_LEVEL", c.LogLevel)

	port, err := config.Int("PORT", c.Stream.Port)
	if err != nil {
		return err
	}
	c.Stream.Port = port

	c.Stream.WriteTimeout, err = config.Duration("WRITE_TIMEOUT", c.Stream.WriteTimeout)
	if err != nil {
		return err
	}
	c.Client.ReadTimeout, err = config.Duration("READ_TIMEOUT", c.Client.ReadTimeout)
	if err != nil {
		return err
	}

	// One variable drives both sides, so it only applies when present.
	if config.IsSet("VERBOSE") {
		verbose, err := config.Bool("VERBOSE", false)
		if err != nil {
			return err
		}
		c.Stream.Verbose = verbose
		c.Client.Verbose = verbose
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera: %s", strings.Join(errs, "; "))
	}
	if c.Recording.Enabled {
		if err := c.Recording.Validate(); err != nil {
			return fmt.Errorf("recording: %w", err)
		}
	}
	if c.Archive.Enabled() {
		if !c.Recording.Enabled {
			return fmt.Errorf("archive: requires recording to be enabled")
		}
		if err := c.Archive.Validate(); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	if c.Dashboard.Addr != "" {
		if err := c.Dashboard.Validate(); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
	}
	return nil
}
