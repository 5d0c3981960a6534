package recording

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-framestream/pkg/camera"
	"github.com/teslashibe/go-framestream/pkg/frame"
)

// ErrWindowClosed is returned by Window.Write after the user presses q or
// Esc in the preview window.
var ErrWindowClosed = errors.New("preview window closed")

// Window shows every frame in an OpenCV preview window.
type Window struct {
	mu     sync.Mutex
	win    *gocv.Window
	closed bool
}

// NewWindow opens a preview window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Write displays f and pumps the window event loop.
func (w *Window) Write(f *frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWindowClosed
	}

	img, err := camera.ToMat(f)
	if err != nil {
		return err
	}
	defer img.Close()

	w.win.IMShow(img)
	switch w.win.WaitKey(1) {
	case 'q', 27:
		return ErrWindowClosed
	}
	return nil
}

// Finalize closes the window.
func (w *Window) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.win.Close()
}
