package recording

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-framestream/pkg/camera"
	"github.com/teslashibe/go-framestream/pkg/frame"
)

// ErrFinalized is returned by Write after Finalize.
var ErrFinalized = errors.New("recording finalized")

// VideoWriter records frames to a video file.
type VideoWriter struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	vw     *gocv.VideoWriter
	frames int
	done   bool
}

// NewVideoWriter opens cfg.File() for writing.
func NewVideoWriter(cfg Config, logger *slog.Logger) (*VideoWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recording config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}

	vw, err := gocv.VideoWriterFile(cfg.File(), cfg.FourCC, cfg.FPS, cfg.Width, cfg.Height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer %s: %w", cfg.File(), err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer %s did not open (codec %s)", cfg.File(), cfg.FourCC)
	}

	logger.Info("recording started",
		"file", cfg.File(),
		"fourcc", cfg.FourCC,
		"fps", cfg.FPS,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
	)

	return &VideoWriter{cfg: cfg, logger: logger, vw: vw}, nil
}

// Path returns the file being written.
func (w *VideoWriter) Path() string { return w.cfg.File() }

// Frames returns the number of frames written.
func (w *VideoWriter) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Write converts f to a BGR image of the recorded size and appends it.
func (w *VideoWriter) Write(f *frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return ErrFinalized
	}

	img, err := camera.ToMat(f)
	if err != nil {
		return err
	}
	defer img.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	switch f.Shape().Channels {
	case 1:
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(img, &bgr, gocv.ColorBGRAToBGR)
	default:
		img.CopyTo(&bgr)
	}

	if bgr.Cols() != w.cfg.Width || bgr.Rows() != w.cfg.Height {
		gocv.Resize(bgr, &bgr, image.Pt(w.cfg.Width, w.cfg.Height), 0, 0, gocv.InterpolationLinear)
	}

	if err := w.vw.Write(bgr); err != nil {
		return fmt.Errorf("write video frame: %w", err)
	}
	w.frames++
	return nil
}

// Finalize closes the file. Calling it again is a no-op.
func (w *VideoWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return nil
	}
	w.done = true
	w.logger.Info("recording finished", "file", w.cfg.File(), "frames", w.frames)
	return w.vw.Close()
}
