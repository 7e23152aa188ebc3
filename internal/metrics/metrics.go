package metrics

import (
	"sync/atomic"
)

// Metrics tracks operational metrics.
type Metrics struct {
	APIRequests       uint64 `json:"api_requests"`
	APIRetries        uint64 `json:"api_retries"`
	APIFailures       uint64 `json:"api_failures"`
	WebhooksReceived  uint64 `json:"webhooks_received"`
	WebhooksProcessed uint64 `json:"webhooks_processed"`
	ChecksCompleted   uint64 `json:"checks_completed"`
	ChecksFailed      uint64 `json:"checks_failed"`
}

var global = &Metrics{}

// APIRequest increments the count of GitHub API requests sent, retries included.
func APIRequest() { atomic.AddUint64(&global.APIRequests, 1) }

// APIRetry increments the count of GitHub API requests retried after a 502.
func APIRetry() { atomic.AddUint64(&global.APIRetries, 1) }

// APIFailure increments the count of GitHub API calls that ended in an error.
func APIFailure() { atomic.AddUint64(&global.APIFailures, 1) }

// WebhookReceived increments the count of webhooks received.
func WebhookReceived() { atomic.AddUint64(&global.WebhooksReceived, 1) }

// WebhookProcessed increments the count of webhooks processed.
func WebhookProcessed() { atomic.AddUint64(&global.WebhooksProcessed, 1) }

// CheckCompleted increments the count of pull request checks that reported a status.
func CheckCompleted() { atomic.AddUint64(&global.ChecksCompleted, 1) }

// CheckFailed increments the count of pull request checks that errored.
func CheckFailed() { atomic.AddUint64(&global.ChecksFailed, 1) }

// Get returns a snapshot of the current metrics.
func Get() Metrics {
	return Metrics{
		APIRequests:       atomic.LoadUint64(&global.APIRequests),
		APIRetries:        atomic.LoadUint64(&global.APIRetries),
		APIFailures:       atomic.LoadUint64(&global.APIFailures),
		WebhooksReceived:  atomic.LoadUint64(&global.WebhooksReceived),
		WebhooksProcessed: atomic.LoadUint64(&global.WebhooksProcessed),
		ChecksCompleted:   atomic.LoadUint64(&global.ChecksCompleted),
		ChecksFailed:      atomic.LoadUint64(&global.ChecksFailed),
	}
}

// Reset resets all metrics to zero (useful for testing).
func Reset() {
	atomic.StoreUint64(&global.APIRequests, 0)
	atomic.StoreUint64(&global.APIRetries, 0)
	atomic.StoreUint64(&global.APIFailures, 0)
	atomic.StoreUint64(&global.WebhooksReceived, 0)
	atomic.StoreUint64(&global.WebhooksProcessed, 0)
	atomic.StoreUint64(&global.ChecksCompleted, 0)
	atomic.StoreUint64(&global.ChecksFailed, 0)
}
