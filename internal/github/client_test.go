package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewdunne/prsentry/internal/ratelimit"
)

func discardLogger() *clog.Logger {
	return clog.New(io.Discard)
}

// newTestClient starts a fake GitHub server and returns a client pointed at
// it with backoff sleeps disabled.
func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tracker := ratelimit.NewTracker(ratelimit.WithLogger(discardLogger()))
	t.Cleanup(tracker.Stop)

	defaults := []Option{
		WithBaseURL(srv.URL),
		WithGraphQLURL(srv.URL + "/graphql"),
		WithLogger(discardLogger()),
		WithTracker(tracker),
		withSleep(func(context.Context, time.Duration) error { return nil }),
	}
	c, err := New("test-token", append(defaults, opts...)...)
	require.NoError(t, err)
	return c, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	c, err := New("")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New("token")
	require.NoError(t, err)

	assert.Equal(t, DefaultGraphQLURL, c.graphqlURL)
	assert.Equal(t, "https://api.github.com/", c.rest.BaseURL.String())

	_, ok := c.RateLimit()
	assert.False(t, ok)
}

func TestNew_BaseURLTrailingSlash(t *testing.T) {
	c, err := New("token", WithBaseURL("https://ghe.example.com/api/v3"))
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", c.rest.BaseURL.String())
}

func TestClient_SendsAuthHeaders(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		writeJSON(t, w, map[string]any{"number": 1})
	}))

	_, err := c.GetPullRequest(context.Background(), "owner", "repo", 1)
	require.NoError(t, err)
}
