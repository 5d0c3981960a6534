package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-framestream/internal/log"
	"github.com/teslashibe/go-framestream/pkg/archive"
	"github.com/teslashibe/go-framestream/pkg/camera"
	"github.com/teslashibe/go-framestream/pkg/metrics"
	"github.com/teslashibe/go-framestream/pkg/recording"
	"github.com/teslashibe/go-framestream/pkg/stream"
	"github.com/teslashibe/go-framestream/pkg/web"
)

// serveFlags mirror Config fields. Only flags the user set are applied.
var serveFlags struct {
	bind         string
	port         int
	backlog      int
	writeTimeout time.Duration
	level        int

	preset  string
	device  string
	fps     int
	scale   float64
	mirror  bool
	pattern bool
	frames  int

	archiveBucket   string
	archivePrefix   string
	archiveEndpoint string

	dashboard string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Wait for one peer and stream camera frames to it",
	Long: `serve listens for a single TCP peer, sends it the first camera frame as a
baseline, then keeps sending compressed frame differences until the camera
runs out of frames, the peer goes away, or the process is interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.bind, "bind", "", "address to listen on (default all interfaces)")
	f.IntVarP(&serveFlags.port, "port", "p", stream.DefaultPort, "TCP port to listen on")
	f.IntVar(&serveFlags.backlog, "backlog", stream.DefaultBacklog, "requested accept queue length")
	f.DurationVar(&serveFlags.writeTimeout, "write-timeout", 0, "bound on each frame write (0 = none)")
	f.IntVar(&serveFlags.level, "level", 3, "zstd compression level (1-22)")

	f.StringVar(&serveFlags.preset, "preset", "", fmt.Sprintf("camera preset: %v", camera.PresetNames()))
	f.StringVarP(&serveFlags.device, "device", "d", "0", "capture device index, file or URL")
	f.IntVar(&serveFlags.fps, "fps", 30, "target capture frame rate")
	f.Float64Var(&serveFlags.scale, "scale", 1.0, "resize factor applied to each frame")
	f.BoolVar(&serveFlags.mirror, "mirror", true, "flip frames horizontally")
	f.BoolVar(&serveFlags.pattern, "pattern", false, "stream a generated test pattern instead of a camera")
	f.IntVarP(&serveFlags.frames, "frames", "n", 0, "stop after this many frames (0 = unlimited)")

	addRecordFlags(serveCmd)

	f.StringVar(&serveFlags.archiveBucket, "archive-bucket", "", "upload the recording to this S3 bucket when the session ends")
	f.StringVar(&serveFlags.archivePrefix, "archive-prefix", "recordings", "key prefix for archived recordings")
	f.StringVar(&serveFlags.archiveEndpoint, "archive-endpoint", "", "S3 compatible endpoint URL")

	f.StringVar(&serveFlags.dashboard, "dashboard", "", "serve the status dashboard and metrics on this address")

	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *Config) error {
	f := cmd.Flags()

	if f.Changed("preset") {
		p := camera.GetPreset(serveFlags.preset)
		if p == nil {
			return fmt.Errorf("unknown preset %q, want one of %v", serveFlags.preset, camera.PresetNames())
		}
		cfg.Camera = *p
	}

	if f.Changed("bind") {
		cfg.Stream.Bind = serveFlags.bind
	}
	if f.Changed("port") {
		cfg.Stream.Port = serveFlags.port
	}
	if f.Changed("backlog") {
		cfg.Stream.Backlog = serveFlags.backlog
	}
	if f.Changed("write-timeout") {
		cfg.Stream.WriteTimeout = serveFlags.writeTimeout
	}
	if f.Changed("level") {
		cfg.Stream.Codec.Level = serveFlags.level
	}
	if f.Changed("device") {
		cfg.Camera.Device = serveFlags.device
	}
	if f.Changed("fps") {
		cfg.Camera.Framerate = serveFlags.fps
	}
	if f.Changed("scale") {
		cfg.Camera.Scale = serveFlags.scale
	}
	if f.Changed("mirror") {
		cfg.Camera.Mirror = serveFlags.mirror
	}
	if f.Changed("pattern") {
		cfg.Camera.Pattern = serveFlags.pattern
	}
	if f.Changed("frames") {
		cfg.Camera.Frames = serveFlags.frames
	}
	applyRecordFlags(cmd, cfg)
	if f.Changed("archive-bucket") {
		cfg.Archive.Bucket = serveFlags.archiveBucket
	}
	if f.Changed("archive-prefix") {
		cfg.Archive.Prefix = serveFlags.archivePrefix
	}
	if f.Changed("archive-endpoint") {
		cfg.Archive.Endpoint = serveFlags.archiveEndpoint
		cfg.Archive.UsePathStyle = true
	}
	if f.Changed("dashboard") {
		cfg.Dashboard.Addr = serveFlags.dashboard
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := applyServeFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.L()
	sessionID := uuid.NewString()

	src, err := camera.Open(cfg.Camera, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(metrics.WithRegistry(registry))

	opts := []stream.Option{
		stream.WithSessionID(sessionID),
		stream.WithLogger(logger),
		stream.WithMetrics(collector),
	}

	sink, err := openServeSink(ctx, cfg, sessionID, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		opts = append(opts, stream.WithSink(sink))
	}

	var srv *stream.Server
	var dash *web.Server
	if cfg.Dashboard.Addr != "" {
		dash = web.NewServer(cfg.Dashboard, func() stream.Stats { return srv.Stats() }, registry, logger)
		opts = append(opts, stream.WithStateHook(dash.PublishState), stream.WithFrameHook(dash.PublishFrame))
	}

	srv, err = stream.Listen(cfg.Stream, opts...)
	if err != nil {
		if sink != nil {
			sink.Finalize()
		}
		return err
	}
	defer srv.Close()

	g, gctx := errgroup.WithContext(ctx)
	dashCtx, stopDash := context.WithCancel(gctx)
	defer stopDash()

	g.Go(func() error {
		defer stopDash()
		return sessionResult(srv.Serve(gctx, src))
	})
	if dash != nil {
		g.Go(func() error { return dash.Run(dashCtx) })
	}

	err = g.Wait()
	st := srv.Stats()
	logger.Info("session ended",
		"session", st.SessionID,
		"frames", st.FramesSent,
		"bytes", st.BytesSent,
		"ratio", fmt.Sprintf("%.1f", st.CompressionRatio()))
	return err
}

// openServeSink builds the recording sink, wrapped for upload when an
// archive bucket is configured. It returns nil when recording is off.
func openServeSink(ctx context.Context, cfg Config, sessionID string, logger *slog.Logger) (stream.Sink, error) {
	if !cfg.Recording.Enabled {
		return nil, nil
	}
	w, err := recording.NewVideoWriter(cfg.Recording, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled() {
		return w, nil
	}
	client, err := archive.NewS3Client(ctx, cfg.Archive)
	if err != nil {
		w.Finalize()
		return nil, err
	}
	return archive.New(w, client, cfg.Archive, sessionID, logger), nil
}

// sessionResult maps the ways a session normally ends to nil.
func sessionResult(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stream.ErrSourceExhausted):
		log.Info("frame source exhausted")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
