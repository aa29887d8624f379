package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var ErrServerClosed = errors.New("http: server closed")

const (
	rejectTimeout  = time.Second
	maxLingerBytes = 256 * 1024 // 256kB
)

type closeWriter interface {
	CloseWrite() error
}

type Server struct {
	Name       string
	Handler    Handler
	Middleware []Middleware
	Logger     *slog.Logger

	// Workers is the number of connections served at the same time. Further
	// connections wait in a FIFO queue holding at most QueueSize entries, or any
	// number of them when QueueSize is zero.
	Workers   int
	QueueSize int

	// Zero disables the corresponding limit.
	MaxRequestLineSize int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LingerTimeout      time.Duration

	Meter  metric.Meter
	Tracer trace.Tracer

	ShutdownFunc   func(context.Context) error
	RequestCtxPool sync.Pool

	initOnce sync.Once
	initErr  error
	handler  Handler
	inst     instruments
	pool     *WorkerPool[net.Conn]

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   atomic.Bool
}

func NewServer(name string, handler Handler) *Server {
	return &Server{
		Name:               name,
		Handler:            handler,
		Logger:             slog.Default(),
		Workers:            DefaultWorkerPoolSize,
		MaxRequestLineSize: DefaultMaxRequestLineSize,
		LingerTimeout:      DefaultLingerTimeout,

		RequestCtxPool: sync.Pool{
			New: func() any { return NewRequestCtx() },
		},
	}
}

func (s *Server) init() error {
	s.initOnce.Do(func() {
		if s.Logger == nil {
			s.Logger = slog.Default()
		}
		if s.Meter == nil {
			s.Meter = otel.Meter(instrumentationName)
		}
		if s.Tracer == nil {
			s.Tracer = otel.Tracer(instrumentationName)
		}
		if s.RequestCtxPool.New == nil {
			s.RequestCtxPool.New = func() any { return NewRequestCtx() }
		}

		handler := s.Handler
		if handler == nil {
			handler = NotFoundHandler
		}
		s.handler = Chain(handler, append([]Middleware{RecoverMiddleware()}, s.Middleware...)...)

		if s.inst, s.initErr = newInstruments(s.Meter); s.initErr != nil {
			return
		}

		if s.pool, s.initErr = NewWorkerPool(s.Workers, s.QueueSize, s.serveSlot); s.initErr != nil {
			return
		}
		s.pool.OnPanic = func(recovered any) {
			s.Logger.Error("worker recovered from panic", "panic", fmt.Sprint(recovered))
		}
	})
	return s.initErr
}

// ListenAndServe binds a TCP listener on addr and serves it. Failing to bind
// is returned right away.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http: listen on %s: %w", addr, err)
	}

	return s.Serve(listener)
}

// Serve accepts connections on listener and hands them to the worker pool. It
// returns ErrServerClosed after Shutdown. Other accept errors are logged and
// retried with an increasing delay.
func (s *Server) Serve(listener net.Listener) error {
	if err := s.init(); err != nil {
		listener.Close()
		return err
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()

	s.pool.Start()
	s.Logger.Info("server started",
		"name", s.Name,
		"addr", listener.Addr().String(),
		"workers", s.pool.Cap(),
		"queue_size", s.QueueSize)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0
	retry.Reset()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			delay := retry.NextBackOff()
			s.Logger.Error("failed to accept connection", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}

		retry.Reset()
		s.dispatch(conn)
	}
}

func (s *Server) dispatch(conn net.Conn) {
	ctx := context.Background()

	s.inst.accepted.Add(ctx, 1)
	s.Logger.Info("new connection accepted", "remote", remoteAddr(conn))
	s.trackConn(conn, true)

	s.inst.queued.Add(ctx, 1)
	err := s.pool.Submit(conn)
	if err == nil {
		return
	}
	s.inst.queued.Add(ctx, -1)

	s.inst.rejected.Add(ctx, 1)
	s.Logger.Warn("connection rejected", "remote", remoteAddr(conn), "error", err)
	go s.reject(conn)
}

// reject answers 503 and closes conn. It runs off the accept goroutine.
func (s *Server) reject(conn net.Conn) {
	logger := s.Logger.With("remote", remoteAddr(conn))
	defer s.closeConn(conn, logger)

	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = rejectTimeout
	}
	conn.SetWriteDeadline(time.Now().Add(timeout))

	var res Response
	res.WithError(StatusServiceUnavailable)
	if err := res.WriteTo(bufio.NewWriterSize(conn, 256)); err != nil {
		logger.Warn("writing rejection failed", "error", err)
	}
	s.inst.responses.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Int("http.response.status_code", int(res.Status))))
}

func (s *Server) serveSlot(slot *RequestCtx, conn net.Conn) {
	ctx := context.Background()
	s.inst.queued.Add(ctx, -1)
	s.inst.busy.Add(ctx, 1)
	defer s.inst.busy.Add(ctx, -1)

	slot.Reset(conn, s.Logger)
	defer slot.Release()

	s.serve(slot)
}

// ServeConn serves a single connection on the calling goroutine and closes it.
func (s *Server) ServeConn(conn net.Conn) {
	if err := s.init(); err != nil {
		s.Logger.Error("server setup failed", "error", err)
		conn.Close()
		return
	}
	s.trackConn(conn, true)

	reqCtx := s.RequestCtxPool.Get().(*RequestCtx)
	reqCtx.Reset(conn, s.Logger)
	defer func() {
		reqCtx.Release()
		s.RequestCtxPool.Put(reqCtx)
	}()

	s.serve(reqCtx)
}

func (s *Server) serve(reqCtx *RequestCtx) {
	conn := reqCtx.Conn
	ctx, span := s.Tracer.Start(context.Background(), "ServeConn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("conn.id", reqCtx.ID)))
	defer span.End()

	defer s.closeConn(conn, reqCtx.Logger)
	defer func() {
		if recovered := recover(); recovered != nil {
			reqCtx.Logger.Error("connection handler panicked", "panic", fmt.Sprint(recovered))
			span.SetStatus(codes.Error, "panic")
		}
	}()

	if s.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	line, err := ReadRequestLine(reqCtx.ConnReader, s.MaxRequestLineSize)
	switch {
	case errors.Is(err, io.EOF):
		reqCtx.Logger.Debug("connection closed before request")
		return
	case errors.Is(err, ErrRequestLineTooLong):
		reqCtx.Logger.Warn("request line too long", "limit", s.MaxRequestLineSize)
		reqCtx.Response.WithError(StatusRequestURITooLong)
	case err != nil:
		reqCtx.Logger.Warn("reading request failed", "error", err)
		span.RecordError(err)
		return
	default:
		reqCtx.Logger.Info("request", "line", line)

		req, err := ParseRequestLine(line)
		if err != nil {
			reqCtx.Logger.Warn("malformed request", "error", err)
			reqCtx.Response.WithError(StatusBadRequest)
			break
		}

		reqCtx.Request = req
		span.SetAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Target))
		s.handler(reqCtx)
	}

	s.writeResponse(ctx, span, reqCtx)
}

func (s *Server) writeResponse(ctx context.Context, span trace.Span, reqCtx *RequestCtx) {
	if s.WriteTimeout > 0 {
		reqCtx.Conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}

	res := &reqCtx.Response
	err := res.WriteTo(reqCtx.ConnWriter)
	elapsed := time.Since(reqCtx.StartedAt)

	status := attribute.Int("http.response.status_code", int(res.Status))
	span.SetAttributes(status)
	s.inst.responses.Add(ctx, 1, metric.WithAttributes(status))
	s.inst.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(status))

	if err != nil {
		reqCtx.Logger.Warn("writing response failed", "status", res.Status, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	reqCtx.Logger.Info("response sent",
		"status", res.Status,
		"bytes", len(res.Body),
		"duration", elapsed)
}

// closeConn half-closes TCP connections and discards unread input for up to
// LingerTimeout before closing, so the peer reads the response instead of a
// reset.
func (s *Server) closeConn(conn net.Conn, logger *slog.Logger) {
	defer s.trackConn(conn, false)

	if cw, ok := conn.(closeWriter); ok && s.LingerTimeout > 0 {
		if err := cw.CloseWrite(); err == nil {
			conn.SetReadDeadline(time.Now().Add(s.LingerTimeout))
			io.Copy(io.Discard, io.LimitReader(conn, maxLingerBytes))
		}
	}

	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Error("closing connection failed", "error", err)
	}
}

func (s *Server) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Pool exposes the worker pool, for inspection.
func (s *Server) Pool() *WorkerPool[net.Conn] {
	if err := s.init(); err != nil {
		return nil
	}
	return s.pool
}

// Shutdown stops accepting, lets the workers finish queued and in-flight
// connections and waits for them. If ctx ends first, queued connections are
// dropped, every open connection is closed and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	var errs []error
	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}

	if err := s.init(); err == nil {
		select {
		case <-s.pool.Stop():
		case <-ctx.Done():
			s.dropQueued()
			s.closeAll()
			errs = append(errs, ctx.Err())
		}
	}

	if s.ShutdownFunc != nil {
		if err := s.ShutdownFunc(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.Logger.Info("server stopped", "name", s.Name)
	return errors.Join(errs...)
}

// dropQueued closes connections that never reached a worker.
func (s *Server) dropQueued() {
	queued := s.pool.Ready.Drain()
	if len(queued) == 0 {
		return
	}

	s.inst.queued.Add(context.Background(), -int64(len(queued)))
	for _, conn := range queued {
		s.trackConn(conn, false)
		conn.Close()
	}
	s.Logger.Warn("dropped queued connections", "count", len(queued))
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}
