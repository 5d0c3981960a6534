package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

// Source is a closable frame source.
type Source interface {
	Fetch(ctx context.Context) (*frame.Frame, error)
	Close() error
}

// Open creates the source cfg describes: a test pattern when cfg.Pattern
// is set, otherwise an OpenCV capture.
func Open(cfg Config, logger *slog.Logger) (Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating frame source",
		"device", cfg.Device,
		"pattern", cfg.Pattern,
		"width", cfg.Width,
		"height", cfg.Height,
		"framerate", cfg.Framerate,
		"scale", cfg.Scale,
		"mirror", cfg.Mirror,
	)

	if cfg.Pattern {
		return NewPattern(cfg), nil
	}
	return OpenCapture(cfg, logger)
}

// Capture reads frames from an OpenCV video device, file or stream.
type Capture struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	img    gocv.Mat
	scaled gocv.Mat
	n      int
	closed bool
}

// OpenCapture opens cfg.Device. A numeric device is treated as a camera
// index; anything else is passed to OpenCV as a file name or URL.
func OpenCapture(cfg Config, logger *slog.Logger) (*Capture, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var device interface{} = cfg.Device
	if idx, err := strconv.Atoi(cfg.Device); err == nil {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture device %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture device %s not available", cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	logger.Debug("capture opened",
		"device", cfg.Device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)

	return &Capture{
		cfg:    cfg,
		logger: logger,
		vc:     vc,
		img:    gocv.NewMat(),
		scaled: gocv.NewMat(),
	}, nil
}

// Fetch reads, resizes and mirrors the next frame. It returns a nil frame
// when the device stops producing frames or the frame limit is reached.
func (c *Capture) Fetch(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || (c.cfg.Frames > 0 && c.n >= c.cfg.Frames) {
		return nil, nil
	}
	if ok := c.vc.Read(&c.img); !ok || c.img.Empty() {
		c.logger.Debug("capture returned no frame", "device", c.cfg.Device, "frames", c.n)
		return nil, nil
	}

	out := c.img
	if c.cfg.Scale != 1 {
		gocv.Resize(c.img, &c.scaled, image.Point{}, c.cfg.Scale, c.cfg.Scale, gocv.InterpolationLinear)
		out = c.scaled
	}
	if c.cfg.Mirror {
		gocv.Flip(out, &out, 1)
	}

	f, err := FromMat(out)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	c.n++
	return f, nil
}

// Close releases the device. Fetch returns nil frames afterwards.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.img.Close()
	c.scaled.Close()
	return c.vc.Close()
}
