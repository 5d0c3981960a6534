package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-framestream/internal/log"
	"github.com/teslashibe/go-framestream/pkg/metrics"
	"github.com/teslashibe/go-framestream/pkg/recording"
	"github.com/teslashibe/go-framestream/pkg/stream"
	"github.com/teslashibe/go-framestream/pkg/web"
)

const defaultViewAddr = "localhost:8080"

var viewFlags struct {
	display     bool
	readTimeout time.Duration
	maxPayload  uint32
	dashboard   string
}

var viewCmd = &cobra.Command{
	Use:   "view [host:port]",
	Short: "Connect to a serve session and decode its frames",
	Long: `view connects to a framestream server, reconstructs every frame from the
baseline and the following differences, and shows and records them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	f := viewCmd.Flags()
	f.BoolVar(&viewFlags.display, "display", false, "show frames in a preview window (q or Esc to quit)")
	f.DurationVar(&viewFlags.readTimeout, "read-timeout", 0, "bound on the wait for each frame (0 = none)")
	f.Uint32Var(&viewFlags.maxPayload, "max-payload", 64<<20, "reject messages larger than this many bytes")
	f.StringVar(&viewFlags.dashboard, "dashboard", "", "serve metrics on this address")

	addRecordFlags(viewCmd)

	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	f := cmd.Flags()
	if f.Changed("read-timeout") {
		cfg.Client.ReadTimeout = viewFlags.readTimeout
	}
	if f.Changed("max-payload") {
		cfg.Client.MaxPayload = viewFlags.maxPayload
	}
	if f.Changed("dashboard") {
		cfg.Dashboard.Addr = viewFlags.dashboard
	}
	applyRecordFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	addr := defaultViewAddr
	if len(args) == 1 {
		addr = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.L()
	registry := prometheus.NewRegistry()
	opts := []stream.ClientOption{
		stream.WithClientLogger(logger),
		stream.WithClientMetrics(metrics.New(metrics.WithRegistry(registry))),
	}

	var openers []sinkOpener
	if viewFlags.display {
		openers = append(openers, func() (stream.Sink, error) {
			return recording.NewWindow("framestream " + addr), nil
		})
	}
	if cfg.Recording.Enabled {
		openers = append(openers, func() (stream.Sink, error) {
			w, err := recording.NewVideoWriter(cfg.Recording, logger)
			if err != nil {
				return nil, err
			}
			return w, nil
		})
	}
	sink, err := openSinks(openers...)
	if err != nil {
		return err
	}
	if sink != nil {
		opts = append(opts, stream.WithClientSink(sink))
	}

	client, err := stream.Dial(ctx, addr, cfg.Client, opts...)
	if err != nil {
		if sink != nil {
			sink.Finalize()
		}
		return err
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	dashCtx, stopDash := context.WithCancel(gctx)
	defer stopDash()

	g.Go(func() error {
		defer stopDash()
		err := client.Run(gctx, nil)
		if errors.Is(err, recording.ErrWindowClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.Dashboard.Addr != "" {
		dash := web.NewServer(cfg.Dashboard, nil, registry, logger)
		g.Go(func() error { return dash.Run(dashCtx) })
	}

	err = g.Wait()
	if cerr := client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	logger.Info("stream ended", "server", addr, "frames", client.Seq())
	if err != nil {
		return fmt.Errorf("view %s: %w", addr, err)
	}
	return nil
}

type sinkOpener func() (stream.Sink, error)

// openSinks opens every sink in order and tees them. When one fails, the
// sinks already open are finalized before the error is returned.
func openSinks(openers ...sinkOpener) (stream.Sink, error) {
	var sinks []stream.Sink
	for _, open := range openers {
		sink, err := open()
		if err != nil {
			if opened := recording.Tee(sinks...); opened != nil {
				if ferr := opened.Finalize(); ferr != nil {
					log.Warn("finalize sink", "error", ferr)
				}
			}
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	return recording.Tee(sinks...), nil
}
