package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/go-framestream/pkg/codec"
	"github.com/teslashibe/go-framestream/pkg/frame"
	"github.com/teslashibe/go-framestream/pkg/framing"
	"github.com/teslashibe/go-framestream/pkg/metrics"
)

const tracerName = "github.com/teslashibe/go-framestream/pkg/stream"

// acceptPoll is how long TryAccept waits for a queued peer. An already
// expired deadline fails before the kernel queue is checked, so the wait
// cannot be zero.
const acceptPoll = 5 * time.Millisecond

// Option configures a Server.
type Option func(*Server)

// WithSink records every frame to sink before it is sent.
func WithSink(sink Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics reports session metrics to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithCodec shares an existing codec instead of creating one from Config.
func WithCodec(c *codec.Codec) Option {
	return func(s *Server) { s.codec = c }
}

// WithSessionID sets the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Server) {
		if id != "" {
			s.id = id
		}
	}
}

// WithTracerProvider sets the tracer provider. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp.Tracer(tracerName) }
}

// WithStateHook calls fn after every lifecycle transition.
func WithStateHook(fn func(StateChange)) Option {
	return func(s *Server) { s.onState = fn }
}

// WithFrameHook calls fn after every frame is sent.
func WithFrameHook(fn func(FrameStats)) Option {
	return func(s *Server) { s.onFrame = fn }
}

// Server is a single-peer streaming session. It listens, accepts exactly
// one peer, sends a baseline frame and then one delta per frame until a
// failure or Close. Every failure is terminal.
//
// Close may be called from any goroutine. The other operations are meant to
// be driven from one goroutine at a time.
type Server struct {
	cfg     Config
	id      string
	logger  *slog.Logger
	codec   *codec.Codec
	sink    Sink
	metrics *metrics.Collector
	tracer  trace.Tracer
	onState func(StateChange)
	onFrame func(FrameStats)

	mu    sync.Mutex
	st    state
	stats Stats

	sinkMu   sync.Mutex
	sinkDone bool
}

// Listen binds the configured address and returns a session in the
// Listening state.
func Listen(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		id:     uuid.NewString(),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "stream", "session", s.id)

	if s.codec == nil {
		c, err := codec.New(cfg.Codec)
		if err != nil {
			return nil, err
		}
		s.codec = c
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	s.st = &listening{ln: ln}
	s.stats = Stats{
		SessionID: s.id,
		State:     StateListening,
		Addr:      ln.Addr().String(),
		StartedAt: time.Now(),
	}
	s.metrics.SetState(int(StateListening))
	s.logInfo("server ready", "addr", ln.Addr().String(), "backlog", cfg.Backlog)
	return s, nil
}

// SessionID returns the unique id of this session.
func (s *Server) SessionID() string { return s.id }

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Addr
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.kind()
}

// Err returns the error that closed the session, or nil if the session is
// open or was closed cleanly.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.st.(*closed); ok {
		return c.err
	}
	return nil
}

// Stats returns a snapshot of the session counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Accept blocks until a peer connects, then stops listening. Canceling ctx
// closes the session and returns ctx.Err().
func (s *Server) Accept(ctx context.Context) error {
	l, err := current[*listening](s, "accept")
	if err != nil {
		return err
	}
	s.logInfo("searching for client")

	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	conn, err := l.ln.Accept()
	stop()
	if err != nil {
		if ctx.Err() != nil {
			s.Close()
			return ctx.Err()
		}
		return s.fail(fmt.Errorf("accept: %w", err))
	}
	return s.connect(l, conn)
}

// TryAccept accepts a peer that is already queued and returns ErrNoPeer,
// leaving the session Listening, when none is.
func (s *Server) TryAccept() error {
	l, err := current[*listening](s, "accept")
	if err != nil {
		return err
	}

	dl, ok := l.ln.(interface{ SetDeadline(time.Time) error })
	if !ok {
		return fmt.Errorf("listener %T does not support deadlines", l.ln)
	}
	if err := dl.SetDeadline(time.Now().Add(acceptPoll)); err != nil {
		return s.fail(fmt.Errorf("set accept deadline: %w", err))
	}
	conn, err := l.ln.Accept()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			if err := dl.SetDeadline(time.Time{}); err != nil {
				return s.fail(fmt.Errorf("clear accept deadline: %w", err))
			}
			return ErrNoPeer
		}
		return s.fail(fmt.Errorf("accept: %w", err))
	}
	return s.connect(l, conn)
}

// connect moves the session from l to Connected and closes the listener:
// the session serves exactly one peer.
func (s *Server) connect(l *listening, conn net.Conn) error {
	peer := conn.RemoteAddr().String()
	if !s.transition(l, &connected{conn: conn}, func(st *Stats) {
		st.Peer = peer
		st.ConnectedAt = time.Now()
	}) {
		conn.Close()
		return ErrClosed
	}
	if err := l.ln.Close(); err != nil {
		s.logger.Debug("close listener", "error", err)
	}
	s.logInfo("connected", "peer", peer)
	return nil
}

// InitializeStream sends f as the baseline frame and moves the session to
// Streaming. A nil frame closes the session with ErrSourceExhausted.
func (s *Server) InitializeStream(ctx context.Context, f *frame.Frame) error {
	c, err := current[*connected](s, "initialize stream")
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "stream.InitializeStream")
	defer span.End()

	if f == nil {
		return s.failSpan(span, ErrSourceExhausted)
	}

	start := time.Now()
	payload, err := s.codec.EncodeBaseline(f)
	if err != nil {
		return s.failSpan(span, fmt.Errorf("encode baseline: %w", err))
	}
	encode := time.Since(start)

	if err := s.record(f); err != nil {
		return s.failSpan(span, err)
	}
	if err := s.send(c.conn, payload); err != nil {
		return s.failSpan(span, err)
	}

	next := &streaming{conn: c.conn, prev: f}
	if !s.transition(c, next, func(st *Stats) {
		st.Shape = f.Shape()
		st.countFrame(f.Size(), len(payload))
	}) {
		return ErrClosed
	}

	span.SetAttributes(
		attribute.String("framestream.shape", f.Shape().String()),
		attribute.Int("framestream.payload_bytes", len(payload)),
	)
	s.frameSent(FrameStats{
		SessionID:    s.id,
		Baseline:     true,
		RawBytes:     f.Size(),
		PayloadBytes: len(payload),
		Encode:       encode,
	})
	s.logInfo("sent baseline", "shape", f.Shape().String(), "kb", float64(len(payload))/1000)
	return nil
}

// SendFrame sends the delta between f and the previous frame. The previous
// frame advances only after the payload is fully written. Any failure closes
// the session.
func (s *Server) SendFrame(ctx context.Context, f *frame.Frame) error {
	s.mu.Lock()
	st, ok := s.st.(*streaming)
	var (
		conn net.Conn
		prev *frame.Frame
		seq  uint64
	)
	if ok {
		conn, prev, seq = st.conn, st.prev, st.seq
	}
	err := s.stateErrLocked("send frame", ok)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	_, span := s.tracer.Start(ctx, "stream.SendFrame",
		trace.WithAttributes(attribute.Int64("framestream.seq", int64(seq))))
	defer span.End()

	if f == nil {
		return s.failSpan(span, ErrSourceExhausted)
	}

	start := time.Now()
	payload, err := s.codec.EncodeDelta(f, prev)
	if err != nil {
		return s.failSpan(span, fmt.Errorf("encode frame %d: %w", seq, err))
	}
	encode := time.Since(start)

	if err := s.record(f); err != nil {
		return s.failSpan(span, err)
	}
	if err := s.send(conn, payload); err != nil {
		return s.failSpan(span, err)
	}

	s.mu.Lock()
	if s.st != state(st) {
		s.mu.Unlock()
		return ErrClosed
	}
	st.prev = f
	st.seq++
	s.stats.countFrame(f.Size(), len(payload))
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("framestream.payload_bytes", len(payload)))
	s.frameSent(FrameStats{
		SessionID:    s.id,
		Seq:          seq,
		RawBytes:     f.Size(),
		PayloadBytes: len(payload),
		Encode:       encode,
	})
	s.logInfo("sent frame", "seq", seq, "kb", float64(len(payload))/1000)
	return nil
}

// Stream sends frames from src until src is exhausted, an operation fails,
// or ctx is canceled. The session must be Connected. Stream always leaves
// the session Closed and returns the error that closed it, or ctx.Err()
// after cancellation.
func (s *Server) Stream(ctx context.Context, src Source) error {
	if _, err := current[*connected](s, "stream"); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	f, err := s.fetch(ctx, src)
	if err != nil {
		return s.interrupted(ctx, err)
	}
	if err := s.InitializeStream(ctx, f); err != nil {
		return s.interrupted(ctx, err)
	}
	for {
		f, err := s.fetch(ctx, src)
		if err != nil {
			return s.interrupted(ctx, err)
		}
		if err := s.SendFrame(ctx, f); err != nil {
			return s.interrupted(ctx, err)
		}
	}
}

// Serve accepts a peer and streams src to it.
func (s *Server) Serve(ctx context.Context, src Source) error {
	if err := s.Accept(ctx); err != nil {
		return err
	}
	return s.Stream(ctx, src)
}

// Close finalizes the sink, closes the connection and the listener, and
// moves the session to Closed. It is idempotent.
func (s *Server) Close() error {
	return s.closeWith(nil)
}

func (s *Server) fetch(ctx context.Context, src Source) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch frame: %w", err)
	}
	if f == nil {
		return nil, ErrSourceExhausted
	}
	return f, nil
}

// interrupted finishes a Stream step that returned err. Cancellation wins
// over the error it provoked.
func (s *Server) interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.Close()
		return ctx.Err()
	}
	if s.State() != StateClosed {
		return s.fail(err)
	}
	return err
}

func (s *Server) record(f *frame.Frame) error {
	if s.sink == nil {
		return nil
	}
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if s.sinkDone {
		return ErrClosed
	}
	if err := s.sink.Write(f); err != nil {
		return &SinkError{Op: "write", Err: err}
	}
	return nil
}

func (s *Server) finalizeSink() error {
	if s.sink == nil {
		return nil
	}
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if s.sinkDone {
		return nil
	}
	s.sinkDone = true
	if err := s.sink.Finalize(); err != nil {
		return &SinkError{Op: "finalize", Err: err}
	}
	return nil
}

func (s *Server) send(conn net.Conn, payload []byte) error {
	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := framing.Send(conn, payload); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

func (s *Server) frameSent(fs FrameStats) {
	s.metrics.FrameSent(fs.RawBytes, fs.PayloadBytes+framing.HeaderSize, fs.Encode)
	if s.onFrame != nil {
		s.onFrame(fs)
	}
}

// fail closes the session with err and returns err.
func (s *Server) fail(err error) error {
	if cerr := s.closeWith(err); cerr != nil {
		s.logger.Warn("close after failure", "error", cerr)
	}
	return err
}

func (s *Server) failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return s.fail(err)
}

func (s *Server) closeWith(cause error) error {
	s.mu.Lock()
	prev := s.st
	if _, done := prev.(*closed); done {
		s.mu.Unlock()
		return nil
	}
	s.st = &closed{err: cause}
	s.stats.State = StateClosed
	if cause != nil {
		s.stats.Error = cause.Error()
	}
	stats := s.stats
	s.mu.Unlock()

	var errs []error
	if err := s.finalizeSink(); err != nil {
		errs = append(errs, err)
	}

	switch st := prev.(type) {
	case *listening:
		if err := st.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close listener: %w", err))
		}
	case *connected:
		if err := st.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	case *streaming:
		if err := st.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	s.metrics.SetState(int(StateClosed))
	if cause != nil {
		s.metrics.SessionError(ErrorKind(cause))
		s.logger.Error("stream closed", "error", cause, "kind", ErrorKind(cause),
			"frames", stats.FramesSent)
	} else {
		s.logInfo("stream closed", "frames", stats.FramesSent)
	}
	s.notify(prev.kind(), StateClosed, cause)
	return errors.Join(errs...)
}

// transition replaces from with next if from is still current, applying
// update to the stats under the same lock.
func (s *Server) transition(from, next state, update func(*Stats)) bool {
	s.mu.Lock()
	if s.st != from {
		s.mu.Unlock()
		return false
	}
	s.st = next
	s.stats.State = next.kind()
	if update != nil {
		update(&s.stats)
	}
	s.mu.Unlock()

	s.metrics.SetState(int(next.kind()))
	s.notify(from.kind(), next.kind(), nil)
	return true
}

func (s *Server) notify(from, to State, err error) {
	if s.onState == nil {
		return
	}
	s.onState(StateChange{SessionID: s.id, From: from, To: to, Err: err, At: time.Now()})
}

func (s *Server) stateErrLocked(op string, ok bool) error {
	if ok {
		return nil
	}
	if _, done := s.st.(*closed); done {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s in state %s: %w", op, s.st.kind(), ErrInvalidState)
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.cfg.Verbose {
		s.logger.Info(msg, args...)
		return
	}
	s.logger.Debug(msg, args...)
}

// current returns the session state if it is a T.
func current[T state](s *Server, op string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.(T)
	return st, s.stateErrLocked(op, ok)
}

func (st *Stats) countFrame(raw, payload int) {
	st.FramesSent++
	st.RawBytes += uint64(raw)
	st.BytesSent += uint64(payload + framing.HeaderSize)
	st.LastPayloadBytes = payload
}
