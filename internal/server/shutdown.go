package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const (
	// drainTimeout bounds how long a signalled server waits for open
	// requests and running checks.
	drainTimeout = 30 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// ListenAndServeWithShutdown serves until SIGINT or SIGTERM, then drains.
func (s *Server) ListenAndServeWithShutdown() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run listens on the configured address and serves until ctx is done or
// Shutdown is called. When ctx ends the server stops accepting deliveries
// and waits up to drainTimeout for running checks.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Server.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.mu.Lock()
	s.hs = hs
	s.listener = listener
	s.mu.Unlock()

	served := make(chan error, 1)
	go func() {
		served <- hs.Serve(listener)
	}()

	s.log.Info("Server started", "addr", listener.Addr().String())
	close(s.ready)

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down", "running_checks", s.running.Load())
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	err = s.Shutdown(drainCtx)
	<-served
	if err != nil {
		s.log.Error("Shutdown incomplete", "error", err)
		return err
	}
	s.log.Info("Server shutdown complete")
	return nil
}

// Shutdown stops accepting deliveries, lets open requests finish and then
// waits for the checks they started. It is a no-op before Run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.hs
	s.mu.Unlock()
	if hs == nil {
		return nil
	}

	// Every delivery handler has returned once this succeeds, so no check
	// can be added to inflight while it is waited on.
	if err := hs.Shutdown(ctx); err != nil {
		return fmt.Errorf("closing connections: %w", err)
	}
	return s.waitChecks(ctx)
}

func (s *Server) waitChecks(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d checks still running: %w", s.running.Load(), ctx.Err())
	}
}

// Addr returns the address the server listens on, or "" before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
