package event

import (
	"fmt"
	"time"
)

// Type represents the type of webhook event.
type Type string

const (
	TypePullRequestOpened      Type = "pull_request_opened"
	TypePullRequestSynchronize Type = "pull_request_synchronize"
	TypePullRequestReopened    Type = "pull_request_reopened"
)

// Event represents a normalized pull request event.
type Event struct {
	// Type is the event type.
	Type Type

	// Repository information.
	RepoOwner string
	RepoName  string

	// Pull request information.
	PRNumber int
	PRTitle  string
	HeadSHA  string
	BaseRef  string

	// Actor who triggered the event.
	Actor string

	// DeliveryID is the webhook delivery this event came from.
	DeliveryID string

	// Timestamp of the event.
	Timestamp time.Time
}

// Key returns a unique key for this event (used for debouncing).
func (e *Event) Key() string {
	return fmt.Sprintf("%s/%s/%d/%s", e.RepoOwner, e.RepoName, e.PRNumber, e.HeadSHA)
}
