package webhook

import (
	"context"
	"net/http"

	clog "github.com/charmbracelet/log"
	gh "github.com/google/go-github/v60/github"

	"github.com/drewdunne/prsentry/internal/metrics"
)

// Delivery is a GitHub webhook delivery whose signature has been verified.
type Delivery struct {
	// ID is the X-GitHub-Delivery GUID.
	ID string

	// EventType is the X-GitHub-Event name, e.g. "pull_request".
	EventType string

	Payload []byte
}

// DeliveryHandler is called for every verified delivery except pings.
type DeliveryHandler func(ctx context.Context, d *Delivery) error

// GitHubHandler handles GitHub webhook requests.
type GitHubHandler struct {
	secret  []byte
	handler DeliveryHandler
	log     *clog.Logger
}

// NewGitHubHandler creates a new GitHub webhook handler. An empty secret
// disables signature verification.
func NewGitHubHandler(secret string, handler DeliveryHandler) *GitHubHandler {
	return &GitHubHandler{
		secret:  []byte(secret),
		handler: handler,
		log:     clog.Default().WithPrefix("webhook"),
	}
}

// ServeHTTP implements http.Handler.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := gh.ValidatePayload(r, h.secret)
	if err != nil {
		h.log.Warn("Rejected webhook delivery", "delivery", gh.DeliveryID(r), "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	d := &Delivery{
		ID:        gh.DeliveryID(r),
		EventType: gh.WebHookType(r),
		Payload:   payload,
	}
	if d.EventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}
	metrics.WebhookReceived()

	if d.EventType == "ping" {
		h.log.Info("Received ping", "delivery", d.ID)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
		return
	}

	if err := h.handler(r.Context(), d); err != nil {
		h.log.Error("Webhook delivery failed", "delivery", d.ID, "event", d.EventType, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.WebhookProcessed()
	w.WriteHeader(http.StatusOK)
}
