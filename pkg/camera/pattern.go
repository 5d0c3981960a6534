package camera

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-framestream/pkg/frame"
)

// Pattern generates a moving BGR test pattern: a diagonal gradient that
// drifts every frame with a bright square sweeping across it. Consecutive
// frames differ only slightly, the way a real scene does.
type Pattern struct {
	shape    frame.Shape
	limit    int
	interval time.Duration

	mu   sync.Mutex
	n    int
	last time.Time
}

// NewPattern creates a pattern source of cfg.Width x cfg.Height, paced at
// cfg.Framerate and stopping after cfg.Frames frames when positive.
func NewPattern(cfg Config) *Pattern {
	p := &Pattern{
		shape: frame.Shape{Height: cfg.Height, Width: cfg.Width, Channels: 3},
		limit: cfg.Frames,
	}
	if cfg.Framerate > 0 {
		p.interval = time.Second / time.Duration(cfg.Framerate)
	}
	return p
}

// Shape returns the shape of every generated frame.
func (p *Pattern) Shape() frame.Shape { return p.shape }

// Fetch returns the next pattern frame, or nil once the limit is reached.
func (p *Pattern) Fetch(ctx context.Context) (*frame.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.n >= p.limit {
		return nil, nil
	}

	if !p.last.IsZero() && p.interval > 0 {
		if wait := time.Until(p.last.Add(p.interval)); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	p.last = time.Now()

	f, err := frame.New(p.shape, p.render(p.n))
	if err != nil {
		return nil, err
	}
	p.n++
	return f, nil
}

// Close is a no-op.
func (p *Pattern) Close() error { return nil }

func (p *Pattern) render(n int) []byte {
	h, w := p.shape.Height, p.shape.Width
	data := make([]byte, p.shape.Len())

	side := max(h/4, 1)
	sx := (n * 4) % max(w-side, 1)
	sy := (h - side) / 2

	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= sx && x < sx+side && y >= sy && y < sy+side {
				data[i], data[i+1], data[i+2] = 255, 255, 255
			} else {
				data[i] = byte(x + n)     // B
				data[i+1] = byte(y)       // G
				data[i+2] = byte(x + y/2) // R
			}
			i += 3
		}
	}
	return data
}
