package event

import (
	"context"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/drewdunne/prsentry/internal/config"
)

// Handler processes a normalized event.
type Handler func(ctx context.Context, event *Event) error

// Router routes events to handlers after filtering and debouncing.
type Router struct {
	serverCfg *config.Config
	handler   Handler
	debouncer *Debouncer
	log       *clog.Logger
}

// NewRouter creates a new event router.
func NewRouter(serverCfg *config.Config, handler Handler) *Router {
	debounceWindow := time.Duration(serverCfg.Events.DebounceSeconds) * time.Second
	if debounceWindow == 0 {
		debounceWindow = 10 * time.Second // Default
	}
	return &Router{
		serverCfg: serverCfg,
		handler:   handler,
		debouncer: NewDebouncer(debounceWindow),
		log:       clog.Default().WithPrefix("event"),
	}
}

// Route processes an event through the routing pipeline.
func (r *Router) Route(ctx context.Context, event *Event) error {
	if !r.isEventEnabled(event.Type) {
		r.log.Debug("Event type disabled", "type", event.Type)
		return nil
	}

	if !r.debouncer.ShouldProcess(event) {
		r.log.Info("Event debounced", "key", event.Key(), "delivery", event.DeliveryID)
		return nil
	}

	return r.handler(ctx, event)
}

func (r *Router) isEventEnabled(t Type) bool {
	switch t {
	case TypePullRequestOpened:
		return r.serverCfg.Events.PullRequestOpened
	case TypePullRequestSynchronize:
		return r.serverCfg.Events.PullRequestSynchronize
	case TypePullRequestReopened:
		return r.serverCfg.Events.PullRequestReopened
	default:
		return false
	}
}
