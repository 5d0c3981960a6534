// Package stream implements the frame streaming session: a server that
// accepts a single peer, sends it a baseline frame and then a delta for every
// further frame, and the matching receiver.
package stream

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/teslashibe/go-framestream/pkg/codec"
	"github.com/teslashibe/go-framestream/pkg/framing"
)

// Default session configuration.
const (
	DefaultPort    = 8080
	DefaultBacklog = 10
)

// Config holds sender session configuration.
type Config struct {
	// Bind is the address to listen on. Empty means all interfaces.
	Bind string `yaml:"bind" json:"bind"`

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int `yaml:"port" json:"port"`

	// Backlog is the requested accept queue length. The Go runtime sizes
	// the queue from the kernel limit, so this is validated and reported
	// but not applied.
	Backlog int `yaml:"backlog" json:"backlog"`

	// WriteTimeout bounds each message write. 0 disables the deadline.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Codec configures compression.
	Codec codec.Config `yaml:"codec" json:"codec"`

	// Verbose logs lifecycle and per-frame messages at info level.
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Bind:         "",
		Port:         DefaultPort,
		Backlog:      DefaultBacklog,
		WriteTimeout: 0, // Block like a plain socket send
		Codec:        codec.DefaultConfig(),
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.Backlog < 1 {
		return fmt.Errorf("backlog must be positive, got %d", c.Backlog)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must not be negative, got %v", c.WriteTimeout)
	}
	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// ClientConfig holds receiver configuration.
type ClientConfig struct {
	// ReadTimeout bounds the wait for each message. 0 disables the deadline.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// DialTimeout bounds connection establishment. 0 disables the timeout.
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`

	// MaxPayload rejects messages above this many bytes. 0 disables the cap.
	MaxPayload uint32 `yaml:"max_payload" json:"max_payload"`

	// Codec configures decompression.
	Codec codec.Config `yaml:"codec" json:"codec"`

	// Verbose logs per-frame messages at info level.
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout: 10 * time.Second,
		MaxPayload:  framing.DefaultMaxPayload,
		Codec:       codec.DefaultConfig(),
	}
}

// Validate checks that the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative, got %v", c.ReadTimeout)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial_timeout must not be negative, got %v", c.DialTimeout)
	}
	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	return nil
}
