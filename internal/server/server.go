// Package server owns the TCP listener and http.Server for the greeter.
// Binding is separate from serving so callers (and tests) can learn the
// OS-assigned port before any request is issued.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options holds http.Server timeouts. Zero values fall back to defaults.
type Options struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// Server binds addr and serves handler on it.
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	errCh    chan error
}

// New returns a Server for addr (host:port; port 0 asks the OS for an ephemeral port).
func New(addr string, handler http.Handler, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       orDefault(opts.ReadTimeout, 10*time.Second),
			ReadHeaderTimeout: orDefault(opts.ReadHeaderTimeout, 2*time.Second),
			WriteTimeout:      orDefault(opts.WriteTimeout, 10*time.Second),
			IdleTimeout:       orDefault(opts.IdleTimeout, 60*time.Second),
			MaxHeaderBytes:    64 << 10,
			ErrorLog:          zap.NewStdLog(logger.Named("http")),
		},
		errCh: make(chan error, 1),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Listen binds the TCP listener. It fails if the port is taken or already bound by this Server.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("listen %s: already listening on %s", s.addr, s.listener.Addr())
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv.Addr = ln.Addr().String()
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound TCP port, or 0 before Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// URL returns http://localhost:<port>, or "" before Listen.
func (s *Server) URL() string {
	port := s.Port()
	if port == 0 {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

// Serve accepts connections on the bound listener until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve: Listen has not been called")
	}
	s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Start binds (if not yet bound) and serves in a background goroutine.
// A serve failure is delivered on Err.
func (s *Server) Start() error {
	if s.Addr() == "" {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	go func() {
		if err := s.Serve(); err != nil {
			s.errCh <- err
		}
	}()
	return nil
}

// Err delivers at most one error from a Start-ed server.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Shutdown stops accepting connections and waits for active ones until ctx is done.
// The listening socket is released either way, including when Serve was never called.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.closeListener()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the listener and closes active connections immediately.
func (s *Server) Close() error {
	err := s.srv.Close()
	s.closeListener()
	return err
}

func (s *Server) closeListener() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close() // already closed if Serve ran
	}
}
