package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/teslashibe/go-framestream/pkg/codec"
	"github.com/teslashibe/go-framestream/pkg/frame"
	"github.com/teslashibe/go-framestream/pkg/framing"
	"github.com/teslashibe/go-framestream/pkg/metrics"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientSink records every decoded frame to sink.
func WithClientSink(sink Sink) ClientOption {
	return func(c *Client) { c.sink = sink }
}

// WithClientLogger sets the logger. Default: slog.Default().
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientMetrics reports received frames to m.
func WithClientMetrics(m *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// Client receives a stream: it reads messages, decodes the baseline and
// applies every delta to reconstruct the sender's frames. A Client is not
// safe for concurrent use, except for Close.
type Client struct {
	cfg     ClientConfig
	conn    net.Conn
	reader  *framing.Reader
	codec   *codec.Codec
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Collector

	prev *frame.Frame
	seq  uint64

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to a streaming server at addr.
func Dial(ctx context.Context, addr string, cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, err := NewClient(conn, cfg, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	cd, err := codec.New(cfg.Codec)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		conn:   conn,
		reader: framing.NewReader(conn, cfg.MaxPayload),
		codec:  cd,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "stream-client", "peer", conn.RemoteAddr().String())
	return c, nil
}

// Seq returns the number of frames received so far.
func (c *Client) Seq() uint64 { return c.seq }

// Next blocks for the next frame. It returns io.EOF when the server closes
// the connection between messages.
func (c *Client) Next(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.cfg.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}

	// A deadline in the past unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	payload, err := c.reader.Receive()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("receive frame %d: %w", c.seq, err)
	}

	var f *frame.Frame
	if c.prev == nil {
		f, err = c.codec.DecodeBaseline(payload)
	} else {
		f, err = c.codec.DecodeDelta(payload, c.prev)
	}
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", c.seq, err)
	}

	if c.sink != nil {
		if err := c.sink.Write(f); err != nil {
			return nil, &SinkError{Op: "write", Err: err}
		}
	}

	c.prev = f
	c.seq++
	c.metrics.FrameReceived()
	if c.cfg.Verbose {
		c.logger.Info("received frame", "seq", c.seq-1, "kb", float64(len(payload))/1000)
	} else {
		c.logger.Debug("received frame", "seq", c.seq-1, "kb", float64(len(payload))/1000)
	}
	return f, nil
}

// Run calls fn for every frame until the server ends the stream, fn returns
// an error, or ctx is canceled. A clean end of stream returns nil.
func (c *Client) Run(ctx context.Context, fn func(*frame.Frame) error) error {
	for {
		f, err := c.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(f); err != nil {
				return err
			}
		}
	}
}

// Close finalizes the sink and closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.sink != nil {
			if err := c.sink.Finalize(); err != nil {
				errs = append(errs, &SinkError{Op: "finalize", Err: err})
			}
		}
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
