package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewdunne/prsentry/internal/config"
	"github.com/drewdunne/prsentry/internal/github"
	"github.com/drewdunne/prsentry/internal/ratelimit"
)

// unindexedAPI is a GitHub whose search index has not caught up with pull
// request 7. No response carries a Link header.
type unindexedAPI struct {
	t *testing.T

	mu        sync.Mutex
	statuses  []github.Status
	fileQuery map[string]any
}

func (a *unindexedAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/repos/owner/repo/pulls/7":
		io.WriteString(w, `{"number":7,"head":{"sha":"abc"}}`)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/repos/owner/repo/contents/"):
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
	case r.Method == http.MethodPost && r.URL.Path == "/repos/owner/repo/statuses/abc":
		var body struct {
			State       string `json:"state"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			a.t.Errorf("decoding status: %v", err)
		}
		a.mu.Lock()
		a.statuses = append(a.statuses, github.Status{State: github.StatusState(body.State), Description: body.Description})
		a.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && r.URL.Path == "/graphql":
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.t.Errorf("decoding query: %v", err)
		}
		if strings.Contains(req.Query, "search(") {
			io.WriteString(w, `{"data":{"search":{"nodes":[]}}}`)
			return
		}
		a.mu.Lock()
		a.fileQuery = req.Variables
		a.mu.Unlock()
		io.WriteString(w, `{"data":{"repository":{"req0":{"files":{
			"pageInfo": {"hasNextPage": false, "endCursor": "c1"},
			"nodes": [{"path": "cmd/main.go"}]
		}}}}}`)
	default:
		a.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestCheckHandler_UnindexedPullRequestWithRealClient(t *testing.T) {
	api := &unindexedAPI{t: t}
	srv := httptest.NewServer(api)
	defer srv.Close()

	discard := clog.New(io.Discard)
	client, err := github.New("token",
		github.WithBaseURL(srv.URL),
		github.WithGraphQLURL(srv.URL+"/graphql"),
		github.WithLogger(discard),
		github.WithTracker(ratelimit.NewTracker(ratelimit.WithLogger(discard))),
	)
	require.NoError(t, err)

	h := NewCheckHandler(client, SummaryChecker{}, config.DefaultConfig())
	require.NoError(t, h.Handle(context.Background(), testEvent()))

	require.Len(t, api.statuses, 2)
	assert.Equal(t, github.StatusPending, api.statuses[0].State)
	assert.Equal(t, github.StatusSuccess, api.statuses[1].State)
	assert.Equal(t, "1 files changed in cmd", api.statuses[1].Description)

	assert.Equal(t, float64(7), api.fileQuery["num0"])
	assert.NotContains(t, api.fileQuery, "after0", "the first page has no cursor")
}
