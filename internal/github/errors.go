package github

import (
	"errors"
	"strings"
)

var (
	// ErrMissingToken is returned when a client is created without an API token.
	ErrMissingToken = errors.New("github token is required")

	// ErrMissingLinkHeader indicates a listing page arrived without a Link header.
	ErrMissingLinkHeader = errors.New("response has no Link header")

	// ErrMalformedLinkHeader indicates a Link header that could not be parsed.
	ErrMalformedLinkHeader = errors.New("malformed Link header")

	// ErrUnexpectedResponse indicates a response body without the fields the
	// operation depends on.
	ErrUnexpectedResponse = errors.New("unexpected response from GitHub")

	// ErrFileNotFound indicates a repository file that does not exist at the
	// requested ref.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidStatusState indicates a commit status state GitHub does not accept.
	ErrInvalidStatusState = errors.New("invalid commit status state")
)

// GraphQLError is returned when a GraphQL response carries an errors payload.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	if len(e.Messages) == 0 {
		return "graphql: request failed"
	}
	return "graphql: " + strings.Join(e.Messages, "; ")
}
