package event

import (
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/drewdunne/prsentry/internal/webhook"
)

// ErrIgnored is returned for deliveries that never trigger a check.
var ErrIgnored = errors.New("event ignored")

var pullRequestActions = map[string]Type{
	"opened":      TypePullRequestOpened,
	"synchronize": TypePullRequestSynchronize,
	"reopened":    TypePullRequestReopened,
}

// NormalizeGitHubEvent converts a GitHub webhook delivery to a normalized Event.
func NormalizeGitHubEvent(d *webhook.Delivery) (*Event, error) {
	if d.EventType != "pull_request" {
		return nil, fmt.Errorf("%w: %s", ErrIgnored, d.EventType)
	}

	parsed, err := gh.ParseWebHook(d.EventType, d.Payload)
	if err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	payload, ok := parsed.(*gh.PullRequestEvent)
	if !ok {
		return nil, fmt.Errorf("parsing payload: unexpected %T", parsed)
	}

	typ, ok := pullRequestActions[payload.GetAction()]
	if !ok {
		return nil, fmt.Errorf("%w: pull_request action %s", ErrIgnored, payload.GetAction())
	}

	repo := payload.GetRepo()
	pr := payload.GetPullRequest()
	if repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("invalid repository: %q", repo.GetFullName())
	}
	if pr.GetHead().GetSHA() == "" {
		return nil, fmt.Errorf("pull request #%d has no head sha", payload.GetNumber())
	}

	return &Event{
		Type:       typ,
		RepoOwner:  repo.GetOwner().GetLogin(),
		RepoName:   repo.GetName(),
		PRNumber:   payload.GetNumber(),
		PRTitle:    pr.GetTitle(),
		HeadSHA:    pr.GetHead().GetSHA(),
		BaseRef:    pr.GetBase().GetRef(),
		Actor:      payload.GetSender().GetLogin(),
		DeliveryID: d.ID,
		Timestamp:  time.Now(),
	}, nil
}
