// Package github is the GitHub API access layer: authenticated REST and
// GraphQL calls with 502 retries, rate-limit tracking, Link-header
// pagination and batched GraphQL pagination of pull request files.
package github

import (
	"context"
	"net/http"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	gh "github.com/google/go-github/v60/github"
	"github.com/shurcooL/graphql"

	"github.com/drewdunne/prsentry/internal/ratelimit"
)

const (
	// DefaultGraphQLURL is the GraphQL endpoint of github.com.
	DefaultGraphQLURL = "https://api.github.com/graphql"

	// UserAgent identifies this client on every request.
	UserAgent = "prsentry"
)

// Client talks to the GitHub REST and GraphQL APIs.
type Client struct {
	rest       *gh.Client
	graphql    *graphql.Client
	graphqlURL string
	tracker    *ratelimit.Tracker
	log        *clog.Logger
}

type clientOptions struct {
	baseURL    string
	graphqlURL string
	tracker    *ratelimit.Tracker
	logger     *clog.Logger
	retries    int
	sleep      sleepFunc
	base       http.RoundTripper
}

// Option configures the GitHub client.
type Option func(*clientOptions)

// WithBaseURL sets a custom REST base URL (GitHub Enterprise, tests).
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithGraphQLURL sets a custom GraphQL endpoint.
func WithGraphQLURL(url string) Option {
	return func(o *clientOptions) {
		o.graphqlURL = url
	}
}

// WithTracker sets the rate-limit tracker every response is reported to.
func WithTracker(t *ratelimit.Tracker) Option {
	return func(o *clientOptions) {
		o.tracker = t
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *clog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithRetries sets how many times a 502 response is retried.
func WithRetries(n int) Option {
	return func(o *clientOptions) {
		o.retries = n
	}
}

// withSleep replaces the retry backoff sleep (for testing).
func withSleep(s sleepFunc) Option {
	return func(o *clientOptions) {
		o.sleep = s
	}
}

// WithTransport sets the underlying transport requests are sent through.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// New creates a GitHub client authenticated with token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	o := &clientOptions{
		graphqlURL: DefaultGraphQLURL,
		logger:     clog.Default().WithPrefix("github"),
		retries:    DefaultRetries,
		sleep:      sleepContext,
		base:       http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracker == nil {
		o.tracker = ratelimit.NewTracker()
	}

	httpClient := &http.Client{
		Transport: &retryTransport{
			base:    &authTransport{token: token, base: o.base},
			tracker: o.tracker,
			log:     o.logger,
			retries: o.retries,
			sleep:   o.sleep,
		},
		Timeout: 60 * time.Second,
	}

	rest := gh.NewClient(httpClient)
	if o.baseURL != "" {
		base, err := rest.BaseURL.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, err
		}
		rest.BaseURL = base
	}

	return &Client{
		rest:       rest,
		graphql:    graphql.NewClient(o.graphqlURL, httpClient),
		graphqlURL: o.graphqlURL,
		tracker:    o.tracker,
		log:        o.logger,
	}, nil
}

// RateLimit returns the most recent rate-limit counters seen by the client.
func (c *Client) RateLimit() (ratelimit.Snapshot, bool) {
	return c.tracker.Latest()
}

// authTransport adds the authorization and client identifier headers.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
