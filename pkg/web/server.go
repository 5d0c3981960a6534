// Package web provides the status dashboard for a streaming session
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-framestream/pkg/hub"
	"github.com/teslashibe/go-framestream/pkg/protocol"
	"github.com/teslashibe/go-framestream/pkg/stream"
)

// Config holds dashboard configuration.
type Config struct {
	// Addr is the listen address. Empty disables the dashboard.
	Addr string `yaml:"addr" json:"addr"`

	// StatsInterval is how often a stats event is pushed to browsers.
	StatsInterval time.Duration `yaml:"stats_interval" json:"stats_interval"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "",
		StatsInterval:   time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats_interval must be positive, got %v", c.StatsInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}
	return nil
}

// StatusFunc returns the current session snapshot.
type StatusFunc func() stream.Stats

// Server is the web dashboard server
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger

	status StatusFunc

	// Hub for websocket broadcast (thread-safe!)
	statusHub *hub.Hub
}

// NewServer creates a new dashboard. A nil gatherer serves the default
// Prometheus registry.
func NewServer(cfg Config, status StatusFunc, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.With("component", "web"),
		status:    status,
		statusHub: hub.New("status", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "framestream",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/health", s.handleHealth)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dashboard listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("dashboard ready", "url", "http://"+ln.Addr().String())

	go s.statusHub.Run(ctx)
	go s.pushStats(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout); err != nil {
			return fmt.Errorf("dashboard shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

// PublishState broadcasts a lifecycle transition, and the error when the
// session closed on one.
func (s *Server) PublishState(c stream.StateChange) {
	s.publish(protocol.NewStateMessage(c))
	if c.Err != nil {
		s.publish(protocol.NewErrorMessage(c.SessionID, c.Err))
	}
}

// PublishFrame broadcasts one sent frame. Skipped while nobody watches.
func (s *Server) PublishFrame(fs stream.FrameStats) {
	if s.statusHub.ClientCount() == 0 {
		return
	}
	s.publish(protocol.NewFrameMessage(fs))
}

func (s *Server) publish(msg *protocol.Message, err error) {
	if err != nil {
		s.logger.Warn("encode status event", "error", err)
		return
	}
	if err := s.statusHub.BroadcastJSON(msg); err != nil {
		s.logger.Warn("broadcast status event", "error", err)
	}
}

func (s *Server) pushStats(ctx context.Context) {
	if s.status == nil {
		return
	}
	ticker := time.NewTicker(s.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() > 0 {
				s.publish(protocol.NewStatsMessage(s.status()))
			}
		}
	}
}
