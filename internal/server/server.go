package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/drewdunne/prsentry/internal/config"
	"github.com/drewdunne/prsentry/internal/event"
	"github.com/drewdunne/prsentry/internal/metrics"
	"github.com/drewdunne/prsentry/internal/ratelimit"
	"github.com/drewdunne/prsentry/internal/registry"
	"github.com/drewdunne/prsentry/internal/webhook"
)

// checkTimeout bounds a single routed check, which runs after the webhook
// delivery has been acknowledged.
const checkTimeout = 5 * time.Minute

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// RateLimitSource reports the last GitHub rate-limit reading.
type RateLimitSource interface {
	RateLimit() (ratelimit.Snapshot, bool)
}

// Server is the HTTP server for prsentry.
type Server struct {
	cfg         *config.Config
	mux         *http.ServeMux
	ready       chan struct{} // closed once the listener is open
	eventRouter *event.Router
	rateLimit   RateLimitSource
	active      *registry.Registry
	log         *clog.Logger

	mu       sync.Mutex // guards hs and listener
	hs       *http.Server
	listener net.Listener

	// Checks routed in the background, drained on shutdown.
	inflight sync.WaitGroup
	running  atomic.Int64
}

// New creates a new Server with the given config. Without a router, webhook
// deliveries are verified and acknowledged but nothing is checked.
func New(cfg *config.Config) *Server {
	return NewWithRouter(cfg, nil, nil)
}

// Option configures a Server.
type Option func(*Server)

// WithActiveChecks reports the checks running in reg on /health.
func WithActiveChecks(reg *registry.Registry) Option {
	return func(s *Server) {
		s.active = reg
	}
}

// NewWithRouter creates a new Server with an injected event router and the
// rate-limit source reported by /health. Either may be nil.
func NewWithRouter(cfg *config.Config, router *event.Router, rateLimit RateLimitSource, opts ...Option) *Server {
	s := &Server{
		cfg:         cfg,
		mux:         http.NewServeMux(),
		ready:       make(chan struct{}),
		eventRouter: router,
		rateLimit:   rateLimit,
		log:         clog.Default().WithPrefix("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Ready returns a channel that is closed when the server is ready to accept connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Wait blocks until every check started by a webhook delivery has finished.
func (s *Server) Wait() {
	s.inflight.Wait()
}

// routes sets up the HTTP routes.
func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/metrics", s.handleMetrics)

	if s.cfg.GitHub.WebhookSecret == "" {
		s.log.Warn("No webhook secret configured, deliveries are not verified")
	}
	s.mux.Handle("/webhook/github", webhook.NewGitHubHandler(s.cfg.GitHub.WebhookSecret, s.handleGitHubDelivery))
}

// handleHealth responds with server health status. The server is degraded
// once GitHub reports the rate limit as exhausted.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]interface{}{
		"router": s.eventRouter != nil,
	}
	status := "ok"

	if s.active != nil {
		checks["active_checks"] = s.active.List()
	}
	if s.rateLimit != nil {
		if snap, ok := s.rateLimit.RateLimit(); ok {
			checks["rate_limit"] = snap
			if snap.Remaining == 0 {
				status = "degraded"
			}
		}
	}

	health := HealthResponse{
		Status: status,
		Checks: checks,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleGitHubDelivery normalizes a delivery and routes it in the background
// so GitHub gets its acknowledgement without waiting for the check.
func (s *Server) handleGitHubDelivery(ctx context.Context, d *webhook.Delivery) error {
	s.log.Info("Received GitHub event", "event", d.EventType, "delivery", d.ID)

	if s.eventRouter == nil {
		return nil
	}

	evt, err := event.NormalizeGitHubEvent(d)
	if errors.Is(err, event.ErrIgnored) {
		s.log.Debug("Ignoring delivery", "delivery", d.ID, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}

	s.inflight.Add(1)
	s.running.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.running.Add(-1)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkTimeout)
		defer cancel()

		if err := s.eventRouter.Route(ctx, evt); err != nil {
			s.log.Error("Failed to route event", "key", evt.Key(), "delivery", d.ID, "error", err)
		}
	}()
	return nil
}

// handleMetrics responds with current operational metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := metrics.Get()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}
