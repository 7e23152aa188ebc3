package github

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
)

// paginate lazily walks a REST listing endpoint, following the rel="next"
// URL of each page's Link header. A page is requested only after every item
// of the previous page has been yielded; stopping the range loop stops the
// traversal. Iteration ends after the first error.
func paginate[T any](ctx context.Context, c *Client, url string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		next := url
		for next != "" {
			req, err := c.rest.NewRequest(http.MethodGet, next, nil)
			if err != nil {
				yield(zero, err)
				return
			}

			var page []T
			resp, err := c.rest.Do(ctx, req, &page)
			if err != nil {
				yield(zero, err)
				return
			}

			link := resp.Header.Get("Link")
			if link == "" {
				yield(zero, fmt.Errorf("%w: %s", ErrMissingLinkHeader, next))
				return
			}
			next, err = nextLink(link)
			if err != nil {
				yield(zero, fmt.Errorf("%s: %w", req.URL, err))
				return
			}

			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// nextLink returns the rel="next" target of an RFC 5988 Link header, or ""
// when the header has no next relation.
func nextLink(header string) (string, error) {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "<") {
			return "", fmt.Errorf("%w: %q", ErrMalformedLinkHeader, part)
		}
		end := strings.Index(part, ">")
		if end < 0 {
			return "", fmt.Errorf("%w: %q", ErrMalformedLinkHeader, part)
		}
		target := part[1:end]

		rels, err := linkRels(part[end+1:])
		if err != nil {
			return "", fmt.Errorf("%w: %q", err, part)
		}
		for _, rel := range rels {
			if rel == "next" {
				return target, nil
			}
		}
	}
	return "", nil
}

// linkRels parses the `; key="value"` parameters of a link-value and returns
// the space separated values of rel.
func linkRels(params string) ([]string, error) {
	var rels []string
	found := false
	for _, param := range strings.Split(params, ";") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		key, value, ok := strings.Cut(param, "=")
		if !ok {
			return nil, ErrMalformedLinkHeader
		}
		if strings.ToLower(strings.TrimSpace(key)) != "rel" {
			continue
		}
		found = true
		rels = append(rels, strings.Fields(strings.Trim(strings.TrimSpace(value), `"`))...)
	}
	if !found {
		return nil, ErrMalformedLinkHeader
	}
	return rels, nil
}
