package github

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	gh "github.com/google/go-github/v60/github"
)

// StatusState is the state of a commit status.
type StatusState string

const (
	StatusError   StatusState = "error"
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
)

// IsValid reports whether GitHub accepts the state.
func (s StatusState) IsValid() bool {
	switch s {
	case StatusError, StatusPending, StatusSuccess, StatusFailure:
		return true
	default:
		return false
	}
}

// maxDescription is the longest status description GitHub accepts.
const maxDescription = 140

// Status is a commit status to report.
type Status struct {
	State       StatusState
	Context     string
	Description string
	TargetURL   string
}

// Comparison summarizes how two commits relate.
type Comparison struct {
	Status       string // ahead, behind, identical, diverged
	AheadBy      int
	BehindBy     int
	TotalCommits int
}

// CompareCommits compares base with head.
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) (*Comparison, error) {
	cmp, _, err := c.rest.Repositories.CompareCommits(ctx, owner, repo, base, head, nil)
	if err != nil {
		return nil, fmt.Errorf("comparing %s...%s: %w", base, head, err)
	}
	if cmp.Status == nil || cmp.AheadBy == nil || cmp.BehindBy == nil {
		return nil, fmt.Errorf("%w: comparison of %s...%s has no status", ErrUnexpectedResponse, base, head)
	}

	return &Comparison{
		Status:       cmp.GetStatus(),
		AheadBy:      cmp.GetAheadBy(),
		BehindBy:     cmp.GetBehindBy(),
		TotalCommits: cmp.GetTotalCommits(),
	}, nil
}

// CommitDate returns the committer date of sha.
func (c *Client) CommitDate(ctx context.Context, owner, repo, sha string) (time.Time, error) {
	commit, _, err := c.rest.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetching commit %s: %w", sha, err)
	}
	date := commit.GetCommit().GetCommitter().GetDate()
	if date.IsZero() {
		return time.Time{}, fmt.Errorf("%w: commit %s has no committer date", ErrUnexpectedResponse, sha)
	}
	return date.Time, nil
}

// GetCommitStatus returns the combined status of ref.
func (c *Client) GetCommitStatus(ctx context.Context, owner, repo, ref string) (*gh.CombinedStatus, error) {
	status, _, err := c.rest.Repositories.GetCombinedStatus(ctx, owner, repo, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching status of %s: %w", ref, err)
	}
	return status, nil
}

// FindStatus returns the status reported under statusContext, or nil.
func FindStatus(combined *gh.CombinedStatus, statusContext string) *gh.RepoStatus {
	if combined == nil {
		return nil
	}
	for _, s := range combined.Statuses {
		if s.GetContext() == statusContext {
			return s
		}
	}
	return nil
}

// SetCommitStatus reports status against ref.
func (c *Client) SetCommitStatus(ctx context.Context, owner, repo, ref string, status Status) error {
	if !status.State.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatusState, status.State)
	}

	repoStatus := &gh.RepoStatus{
		State:   gh.String(string(status.State)),
		Context: gh.String(status.Context),
	}
	if status.Description != "" {
		repoStatus.Description = gh.String(truncate(status.Description, maxDescription))
	}
	if status.TargetURL != "" {
		repoStatus.TargetURL = gh.String(status.TargetURL)
	}

	if _, _, err := c.rest.Repositories.CreateStatus(ctx, owner, repo, ref, repoStatus); err != nil {
		return fmt.Errorf("setting %s status on %s: %w", status.Context, ref, err)
	}
	return nil
}

// GetPullRequest fetches a pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*gh.PullRequest, error) {
	pr, _, err := c.rest.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request #%d: %w", number, err)
	}
	return pr, nil
}

// ReadFile returns the content of path at ref.
func (c *Client) ReadFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: ref}
	file, _, resp, err := c.rest.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s at %s", ErrFileNotFound, path, ref)
		}
		return nil, fmt.Errorf("reading %s at %s: %w", path, ref, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnexpectedResponse, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return []byte(content), nil
}

// ListOpenPullRequests iterates over the open pull requests of a repository,
// one page per request.
func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) iter.Seq2[*gh.PullRequest, error] {
	url := fmt.Sprintf("repos/%s/%s/pulls?state=open&per_page=100", owner, repo)
	return wrapErrors(paginate[*gh.PullRequest](ctx, c, url), "listing open pull requests")
}

// ListPullRequestFiles iterates over the files changed by a pull request.
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) iter.Seq2[*gh.CommitFile, error] {
	url := fmt.Sprintf("repos/%s/%s/pulls/%d/files?per_page=100", owner, repo, number)
	return wrapErrors(paginate[*gh.CommitFile](ctx, c, url), fmt.Sprintf("listing files of pull request #%d", number))
}

func wrapErrors[T any](seq iter.Seq2[T, error], msg string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range seq {
			if err != nil {
				err = fmt.Errorf("%s: %w", msg, err)
			}
			if !yield(item, err) {
				return
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
