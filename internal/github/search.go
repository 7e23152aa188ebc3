package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v60/github"
	"github.com/shurcooL/graphql"
)

// PullRequestFiles is a pull request found by commit search. Files is nil
// when the pull request has moved past the searched commit (stale); otherwise
// it holds every changed file path, possibly none.
type PullRequestFiles struct {
	Number       int
	LatestCommit string
	Files        []string
}

// Stale reports whether the pull request's latest commit differs from the
// commit that was searched for.
func (p PullRequestFiles) Stale() bool {
	return p.Files == nil
}

type searchPullRequestsQuery struct {
	Search struct {
		Nodes []struct {
			PullRequest struct {
				Number  graphql.Int
				Commits struct {
					Nodes []struct {
						Commit struct {
							Oid graphql.String
						}
					}
				} `graphql:"commits(last: 1)"`
				Files struct {
					PageInfo struct {
						HasNextPage graphql.Boolean
						EndCursor   graphql.String
					}
					Nodes []struct {
						Path graphql.String
					}
				} `graphql:"files(first: 100)"`
			} `graphql:"... on PullRequest"`
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 100)"`
}

// SearchPullRequestsWithFiles finds the pull requests containing sha and
// returns them in search order. Pull requests whose latest commit is sha get
// their full file list; the others are returned stale, without files, and
// their files are never paginated.
func (c *Client) SearchPullRequestsWithFiles(ctx context.Context, owner, repo, sha string) ([]PullRequestFiles, error) {
	var q searchPullRequestsQuery
	variables := map[string]any{
		"query": graphql.String(commitSearchQuery(owner, repo, sha)),
	}
	if err := c.graphql.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("searching pull requests for %s: %w", sha, err)
	}

	var results []PullRequestFiles
	var fresh []FilesCursor
	for _, node := range q.Search.Nodes {
		pr := node.PullRequest
		if pr.Number == 0 {
			continue
		}
		result := PullRequestFiles{Number: int(pr.Number)}
		if commits := pr.Commits.Nodes; len(commits) > 0 {
			result.LatestCommit = string(commits[len(commits)-1].Commit.Oid)
		}
		results = append(results, result)

		if result.LatestCommit != sha {
			c.log.Debug("Skipping stale pull request", "number", result.Number, "latest_commit", result.LatestCommit, "sha", sha)
			continue
		}

		cursor := FilesCursor{
			Number:      result.Number,
			EndCursor:   string(pr.Files.PageInfo.EndCursor),
			HasNextPage: bool(pr.Files.PageInfo.HasNextPage),
		}
		for _, f := range pr.Files.Nodes {
			cursor.Files = append(cursor.Files, string(f.Path))
		}
		fresh = append(fresh, cursor)
	}

	if len(fresh) == 0 {
		return results, nil
	}

	files, err := c.PaginatePullRequestFiles(ctx, owner, repo, fresh)
	if err != nil {
		return nil, err
	}
	for i := range results {
		paths, ok := files[results[i].Number]
		if !ok || results[i].LatestCommit != sha {
			continue
		}
		if paths == nil {
			paths = []string{}
		}
		results[i].Files = paths
	}
	return results, nil
}

// SearchPullRequestsByCommit returns the numbers of the pull requests that
// contain sha, using the REST issue search.
func (c *Client) SearchPullRequestsByCommit(ctx context.Context, owner, repo, sha string) ([]int, error) {
	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	result, _, err := c.rest.Search.Issues(ctx, commitSearchQuery(owner, repo, sha), opts)
	if err != nil {
		return nil, fmt.Errorf("searching pull requests for %s: %w", sha, err)
	}

	numbers := make([]int, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if !issue.IsPullRequest() {
			continue
		}
		numbers = append(numbers, issue.GetNumber())
	}
	return numbers, nil
}

func commitSearchQuery(owner, repo, sha string) string {
	return fmt.Sprintf("repo:%s/%s is:pr %s", owner, repo, sha)
}
