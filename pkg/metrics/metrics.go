// Package metrics exposes Prometheus collectors for frame streaming sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "framestream").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "framestream",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records session activity. A nil *Collector is valid and records
// nothing.
type Collector struct {
	framesSent       prometheus.Counter
	bytesSent        prometheus.Counter
	rawBytes         prometheus.Counter
	encodeDuration   prometheus.Histogram
	compressionRatio prometheus.Histogram
	sessionState     prometheus.Gauge
	sessionErrors    *prometheus.CounterVec
	framesReceived   prometheus.Counter
}

// New registers the collectors and returns a Collector.
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Frames sent to the peer, baseline included",
			ConstLabels: cfg.ConstLabels,
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "bytes_sent_total",
			Help:        "Compressed payload bytes sent, length prefixes included",
			ConstLabels: cfg.ConstLabels,
		}),
		rawBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "raw_bytes_total",
			Help:        "Uncompressed frame bytes handed to the encoder",
			ConstLabels: cfg.ConstLabels,
		}),
		encodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "encode_seconds",
			Help:        "Time spent computing and compressing one payload",
			ConstLabels: cfg.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		compressionRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "compression_ratio",
			Help:        "Raw frame bytes divided by payload bytes",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		}),
		sessionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "session_state",
			Help:        "Current session state (0 listening, 1 connected, 2 streaming, 3 closed)",
			ConstLabels: cfg.ConstLabels,
		}),
		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "session_errors_total",
			Help:        "Sessions closed on error, by error kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "frames_received_total",
			Help:        "Frames reconstructed by a receiver",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// FrameSent records one sent payload.
func (c *Collector) FrameSent(rawBytes, wireBytes int, encode time.Duration) {
	if c == nil {
		return
	}
	c.framesSent.Inc()
	c.bytesSent.Add(float64(wireBytes))
	c.rawBytes.Add(float64(rawBytes))
	c.encodeDuration.Observe(encode.Seconds())
	if wireBytes > 0 {
		c.compressionRatio.Observe(float64(rawBytes) / float64(wireBytes))
	}
}

// FrameReceived records one reconstructed frame on the receiving side.
func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.framesReceived.Inc()
}

// SetState records the session state as its ordinal.
func (c *Collector) SetState(ordinal int) {
	if c == nil {
		return
	}
	c.sessionState.Set(float64(ordinal))
}

// SessionError counts a session closed on an error of the given kind.
func (c *Collector) SessionError(kind string) {
	if c == nil {
		return
	}
	c.sessionErrors.WithLabelValues(kind).Inc()
}
