package redisserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/respkv-go/internal/telemetry/logger"
	"github.com/yndnr/respkv-go/internal/telemetry/metric"
	"github.com/yndnr/respkv-go/pkg/resp"
)

// Config holds the RESP server configuration.
type Config struct {
	// Address is the listen address.
	Address string
	// ReadTimeout bounds reading one command once its first byte arrived.
	// Helps prevent slowloris attacks.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one reply.
	WriteTimeout time.Duration
	// IdleTimeout closes connections idle between commands. 0 disables it.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per connection.
	// Set to 0 to disable rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server accepts RESP connections and serves each on its own goroutine.
type Server struct {
	cfg     *Config
	handler *CommandHandler
	logger  *slog.Logger
	metrics *metric.Registry

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates a Server. metrics may be nil.
func New(cfg *Config, handler *CommandHandler, metrics *metric.Registry, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		metrics: metrics,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and serves connections in the background.
// A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.Serve(ctx)
	return nil
}

// Listen binds the listener without accepting connections. Clients that
// connect before Serve wait in the accept backlog.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.running.Store(true)
	s.logger.Info("resp server listening", "address", ln.Addr().String())
	return nil
}

// Serve starts the accept loop in the background. It must follow a
// successful Listen.
func (s *Server) Serve(ctx context.Context) {
	ln := s.listener()
	if ln == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("accept loop stopped", "error", err)
		}
	}()
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	ln := s.listener()
	if ln == nil {
		return nil
	}
	return ln.Addr()
}

func (s *Server) listener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln
}

// Shutdown closes the listener and every live connection, then waits for
// connection goroutines to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var firstErr error
	if ln := s.listener(); ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		if !s.track(c) {
			_ = c.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			s.serveConn(ctx, c)
		}()
	}
}

// track registers c unless the server is shutting down.
func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	defer c.Close()

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	connID := ulid.Make().String()
	log := logger.FromSlog(s.logger.With("remote", c.RemoteAddr().String()))
	ctx = logger.WithConnID(logger.WithLogger(ctx, log), connID)
	clog := logger.L(ctx)
	clog.Debug("connection opened")
	defer clog.Debug("connection closed")

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit)
	}

	codec := resp.NewCodec(c, c)
	for {
		// Idle between commands: only the idle timeout applies.
		var idleDeadline time.Time
		if s.cfg.IdleTimeout > 0 {
			idleDeadline = time.Now().Add(s.cfg.IdleTimeout)
		}
		if err := c.SetReadDeadline(idleDeadline); err != nil {
			return
		}
		if err := codec.Await(); err != nil {
			s.logReadError(clog, err)
			return
		}

		// After first byte: tighten to per-command read timeout.
		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		req, err := codec.ReadFrame()
		if err != nil {
			if errors.Is(err, resp.ErrProtocol) {
				s.rejectProtocol(clog, c, codec, writeTimeout, err)
				return
			}
			s.logReadError(clog, err)
			return
		}

		var reply resp.Frame
		if limiter != nil && !limiter.Allow() {
			reply = resp.Error("ERR rate limit exceeded")
		} else {
			reply, err = s.handler.Handle(ctx, req)
			switch {
			case errors.Is(err, ErrCloseConnection):
				return
			case err != nil:
				s.rejectProtocol(clog, c, codec, writeTimeout, err)
				return
			}
		}

		if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := codec.Send(reply); err != nil {
			clog.Debug("write reply failed", "error", err)
			return
		}
	}
}

// rejectProtocol reports a protocol violation to the client before the
// connection is closed.
func (s *Server) rejectProtocol(clog logger.Logger, c net.Conn, codec *resp.Codec, writeTimeout time.Duration, err error) {
	s.metrics.ProtocolError()
	clog.Warn("protocol error, closing connection", "error", err)
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = codec.Send(resp.Error("ERR Protocol error: " + err.Error()))
}

func (s *Server) logReadError(clog logger.Logger, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		clog.Debug("connection timed out")
		return
	}
	clog.Debug("connection read error", "error", err)
}
