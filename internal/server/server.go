package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
)

// Config holds connection handling limits
type Config struct {
	// Timeout bounds each connection from accept to the end of the write
	Timeout time.Duration
	// MaxBodyBytes is the largest request body accepted. Larger requests
	// are dropped like any other read error.
	MaxBodyBytes int64
}

// DefaultConfig returns the default connection limits
func DefaultConfig() Config {
	return Config{
		Timeout:      60 * time.Second,
		MaxBodyBytes: 1 << 20,
	}
}

// Server runs the accept loop and owns the per-connection lifecycles
type Server struct {
	handler Handler
	cfg     Config
	clock   quartz.Clock
	metrics *Metrics
	logger  *zap.Logger

	wg sync.WaitGroup
}

// New creates a Server. metrics may be nil.
func New(handler Handler, cfg Config, clock quartz.Clock, metrics *Metrics, logger *zap.Logger) *Server {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	return &Server{
		handler: handler,
		cfg:     cfg,
		clock:   clock,
		metrics: metrics,
		logger:  logger.Named("server"),
	}
}

// ListenAndServe listens on the TCP address and calls Serve
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln
// and waits for in-flight connections. Failed accepts are logged and
// retried with backoff. Serve returns nil once the listener is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.logger.Info("Listening", zap.String("address", ln.Addr().String()))

	// Connections outlive a shutdown request until their deadline, so their
	// contexts are detached from ctx.
	connCtx := context.WithoutCancel(ctx)

	var delay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				s.logger.Info("Listener closed, connections drained")
				return nil
			}
			delay = nextAcceptDelay(delay)
			s.logger.Warn("Accept failed, retrying",
				zap.Error(err),
				zap.Duration("delay", delay))
			s.waitAccept(ctx, delay)
			continue
		}
		delay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(connCtx, nc)
		}()
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// nextAcceptDelay doubles the accept backoff, starting at minAcceptDelay
// and capped at maxAcceptDelay
func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptDelay
	}
	return min(delay*2, maxAcceptDelay)
}

// waitAccept sleeps on the server clock, returning early on shutdown
func (s *Server) waitAccept(ctx context.Context, delay time.Duration) {
	t := s.clock.NewTimer(delay, "server", "accept_backoff")
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
