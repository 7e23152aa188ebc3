package github

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	clog "github.com/charmbracelet/log"

	"github.com/drewdunne/prsentry/internal/metrics"
	"github.com/drewdunne/prsentry/internal/ratelimit"
)

const (
	// DefaultRetries is how many times a 502 response is retried.
	DefaultRetries = 3

	// retryDelay is multiplied by the attempt index to get the backoff.
	retryDelay = 2000 * time.Millisecond

	// maxLoggedBody caps how much of an error response body is logged.
	maxLoggedBody = 4096
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// retryTransport retries 502 responses with linear backoff and reports
// rate-limit headers of every response to the tracker.
type retryTransport struct {
	base    http.RoundTripper
	tracker *ratelimit.Tracker
	log     *clog.Logger
	retries int
	sleep   sleepFunc
}

// RoundTrip implements http.RoundTripper. Error statuses other than a
// retried 502 are returned to the caller untouched.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for remaining := t.retries; ; remaining-- {
		attemptReq, err := rewind(req, remaining == t.retries)
		if err != nil {
			return nil, err
		}

		metrics.APIRequest()
		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			metrics.APIFailure()
			t.log.Error("GitHub request failed", "method", req.Method, "url", req.URL.String(), "error", err)
			return nil, err
		}

		t.recordRateLimit(resp.Header)

		if resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		// A 404 is how GitHub answers lookups of optional resources, such as
		// a repository without a check config.
		logStatus := t.log.Error
		if resp.StatusCode == http.StatusNotFound {
			logStatus = t.log.Debug
		}
		body := peekBody(resp)
		logStatus("GitHub request returned an error status",
			"method", req.Method,
			"url", req.URL.String(),
			"status", resp.StatusCode,
			"body", string(body),
		)

		if resp.StatusCode != http.StatusBadGateway || remaining <= 0 || !replayable(req) {
			metrics.APIFailure()
			return resp, nil
		}
		resp.Body.Close()

		attempt := t.retries - remaining
		delay := time.Duration(attempt) * retryDelay
		t.log.Warn("Retrying after bad gateway", "url", req.URL.String(), "attempt", attempt+1, "delay", delay)
		metrics.APIRetry()
		if err := t.sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

func (t *retryTransport) recordRateLimit(h http.Header) {
	remaining, err := strconv.Atoi(h.Get("X-Ratelimit-Remaining"))
	if err != nil {
		return
	}
	limit, err := strconv.Atoi(h.Get("X-Ratelimit-Limit"))
	if err != nil {
		return
	}
	t.tracker.Record(remaining, limit)
}

// rewind returns the request to send for an attempt. Retries get a fresh
// copy of the body.
func rewind(req *http.Request, first bool) (*http.Request, error) {
	if first || req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// peekBody reads the start of the response body for logging and leaves the
// full body readable for the caller.
func peekBody(resp *http.Response) []byte {
	if resp.Body == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if len(data) > maxLoggedBody {
		return data[:maxLoggedBody]
	}
	return data
}
