// Package server owns HTTP listener setup: port probing, the middleware
// chain, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// maxPortAttempts bounds the port probe; dev machines rarely have more
	// than a couple of stale listeners on neighboring ports.
	maxPortAttempts = 10

	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	BindAddr string
	Port     int
	// PortFile, when set, receives the actually-bound port after Listen so
	// sibling processes can find the server.
	PortFile string
}

// Server wraps http.Server with port probing and a written-out bound port.
type Server struct {
	opts     Options
	handler  http.Handler
	logger   *zap.Logger
	listener net.Listener
	httpSrv  *http.Server
}

// New creates a Server for the given handler.
func New(opts Options, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{opts: opts, handler: handler, logger: logger}
}

// Listen binds the first free port starting from the configured one. When a
// port is taken it moves to the next, giving up after maxPortAttempts. The
// bound port is persisted to the port file when one is configured.
func (s *Server) Listen() error {
	var lastErr error
	for i := 0; i < maxPortAttempts; i++ {
		port := s.opts.Port + i
		addr := net.JoinHostPort(s.opts.BindAddr, strconv.Itoa(port))

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			if !isAddrInUse(err) {
				return fmt.Errorf("failed to bind %s: %w", addr, err)
			}
			s.logger.Warn("Port in use, trying next",
				zap.Int("port", port), zap.Int("attempt", i+1))
			lastErr = err
			continue
		}

		s.listener = listener
		if port != s.opts.Port {
			s.logger.Info("Bound alternate port",
				zap.Int("configured", s.opts.Port), zap.Int("bound", port))
		}
		s.writePortFile(port)
		return nil
	}
	return fmt.Errorf("no free port in %d-%d: %w",
		s.opts.Port, s.opts.Port+maxPortAttempts-1, lastErr)
}

// Port returns the bound port. Valid after Listen.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests. Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	s.httpSrv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) writePortFile(port int) {
	if s.opts.PortFile == "" {
		return
	}
	if err := os.WriteFile(s.opts.PortFile, []byte(strconv.Itoa(port)), 0o644); err != nil {
		s.logger.Warn("Failed to write port file",
			zap.String("path", s.opts.PortFile), zap.Error(err))
	}
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return false
}
