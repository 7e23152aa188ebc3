package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type filesPage struct {
	paths []string
	next  string // cursor of the following page, "" on the last page
}

// fakeFilesAPI answers batched pull request files queries from a table of
// pages keyed by pull request number and cursor.
type fakeFilesAPI struct {
	t     *testing.T
	pages map[int]map[string]filesPage

	mu     sync.Mutex
	rounds [][]int
	search func(w http.ResponseWriter)
}

func (f *fakeFilesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	if strings.Contains(req.Query, "search(") {
		require.NotNil(f.t, f.search, "unexpected search query")
		f.search(w)
		return
	}

	repository := map[string]any{}
	var round []int
	for i := 0; ; i++ {
		num, ok := req.Variables[fmt.Sprintf("num%d", i)].(float64)
		if !ok {
			break
		}
		cursor, _ := req.Variables[fmt.Sprintf("after%d", i)].(string)
		round = append(round, int(num))

		page, ok := f.pages[int(num)][cursor]
		require.True(f.t, ok, "no page for #%d after %q", int(num), cursor)

		nodes := []map[string]any{}
		for _, p := range page.paths {
			nodes = append(nodes, map[string]any{"path": p})
		}
		repository[alias(i)] = map[string]any{
			"files": map[string]any{
				"pageInfo": map[string]any{"hasNextPage": page.next != "", "endCursor": page.next},
				"nodes":    nodes,
			},
		}
	}

	f.mu.Lock()
	f.rounds = append(f.rounds, round)
	f.mu.Unlock()

	writeJSON(f.t, w, map[string]any{"data": map[string]any{"repository": repository}})
}

func (f *fakeFilesAPI) Rounds() [][]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rounds
}

func TestBuildFilesQuery(t *testing.T) {
	query, vars := buildFilesQuery("octo", "widgets", []FilesCursor{
		{Number: 12, EndCursor: "Y3Vyc29y", HasNextPage: true},
		{Number: 40, HasNextPage: true},
	})

	assert.Contains(t, query, "query($owner: String!, $repo: String!, $num0: Int!, $after0: String!, $num1: Int!) {")
	assert.Contains(t, query, "repository(owner: $owner, name: $repo) {")
	assert.Contains(t, query, "req0: pullRequest(number: $num0) {")
	assert.Contains(t, query, "files(first: 100, after: $after0) {")
	assert.Contains(t, query, "req1: pullRequest(number: $num1) {")
	assert.Contains(t, query, "files(first: 100) {")
	assert.NotContains(t, query, "$after1")
	assert.Equal(t, 2, strings.Count(query, "pageInfo { hasNextPage endCursor }"))

	assert.Equal(t, map[string]any{
		"owner":  "octo",
		"repo":   "widgets",
		"num0":   12,
		"after0": "Y3Vyc29y",
		"num1":   40,
	}, vars)
}

func TestPaginatePullRequestFiles_BatchesRounds(t *testing.T) {
	api := &fakeFilesAPI{t: t, pages: map[int]map[string]filesPage{
		1: {
			"a1": {paths: []string{"a/2.go"}, next: "a2"},
			"a2": {paths: []string{"a/3.go"}, next: "a3"},
			"a3": {paths: []string{"a/4.go"}},
		},
		2: {
			"b1": {paths: []string{"b/2.go", "b/3.go"}},
		},
	}}
	c, _ := newTestClient(t, api)

	files, err := c.PaginatePullRequestFiles(context.Background(), "owner", "repo", []FilesCursor{
		{Number: 1, EndCursor: "a1", HasNextPage: true, Files: []string{"a/1.go"}},
		{Number: 2, EndCursor: "b1", HasNextPage: true, Files: []string{"b/1.go"}},
	})
	require.NoError(t, err)

	assert.Equal(t, map[int][]string{
		1: {"a/1.go", "a/2.go", "a/3.go", "a/4.go"},
		2: {"b/1.go", "b/2.go", "b/3.go"},
	}, files)
	assert.Equal(t, [][]int{{1, 2}, {1}, {1}}, api.Rounds(), "rounds follow the deepest pagination")
}

func TestPaginatePullRequestFiles_NothingPending(t *testing.T) {
	api := &fakeFilesAPI{t: t}
	c, _ := newTestClient(t, api)

	seed := []FilesCursor{
		{Number: 3, Files: []string{"x.go"}},
		{Number: 4},
	}
	files, err := c.PaginatePullRequestFiles(context.Background(), "owner", "repo", seed)
	require.NoError(t, err)

	assert.Equal(t, []string{"x.go"}, files[3])
	assert.Empty(t, files[4])
	assert.Empty(t, api.Rounds())
}

func TestPaginatePullRequestFiles_FirstPageWithoutCursor(t *testing.T) {
	api := &fakeFilesAPI{t: t, pages: map[int]map[string]filesPage{
		5: {"": {paths: []string{"first.go"}}},
	}}
	c, _ := newTestClient(t, api)

	files, err := c.PaginatePullRequestFiles(context.Background(), "owner", "repo", []FilesCursor{
		{Number: 5, HasNextPage: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first.go"}, files[5])
	assert.Equal(t, [][]int{{5}}, api.Rounds())
}

func TestPaginatePullRequestFiles_GraphQLErrors(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"data": map[string]any{"repository": map[string]any{"req0": nil}},
			"errors": []map[string]any{
				{"message": "Could not resolve to a PullRequest with the number of 7."},
				{"message": "Something else"},
			},
		})
	}))

	_, err := c.PaginatePullRequestFiles(context.Background(), "owner", "repo", []FilesCursor{
		{Number: 7, EndCursor: "c", HasNextPage: true},
	})
	require.Error(t, err)

	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.Len(t, gqlErr.Messages, 2)
	assert.Contains(t, err.Error(), "round 1")
	assert.Contains(t, err.Error(), "Could not resolve")
}

func TestPaginatePullRequestFiles_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing data", body: map[string]any{"data": nil}},
		{name: "missing alias", body: map[string]any{"data": map[string]any{"repository": map[string]any{}}}},
		{
			name: "next page without cursor",
			body: map[string]any{"data": map[string]any{"repository": map[string]any{
				"req0": map[string]any{"files": map[string]any{
					"pageInfo": map[string]any{"hasNextPage": true, "endCursor": ""},
					"nodes":    []any{},
				}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.body)
			}))

			_, err := c.PaginatePullRequestFiles(context.Background(), "owner", "repo", []FilesCursor{
				{Number: 7, EndCursor: "c", HasNextPage: true},
			})
			assert.ErrorIs(t, err, ErrUnexpectedResponse)
		})
	}
}

func TestGraphQLError(t *testing.T) {
	err := &GraphQLError{Messages: []string{"one", "two"}}
	assert.Equal(t, "graphql: one; two", err.Error())
}
