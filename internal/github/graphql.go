package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// filesPageSize is how many files one sub-query asks for.
const filesPageSize = 100

// FilesCursor is a pull request whose file list is being paginated.
// An empty EndCursor means no page has been fetched yet.
type FilesCursor struct {
	Number      int
	EndCursor   string
	HasNextPage bool
	Files       []string
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type filesConnection struct {
	PageInfo pageInfo `json:"pageInfo"`
	Nodes    []struct {
		Path string `json:"path"`
	} `json:"nodes"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLErrorEntry struct {
	Message string `json:"message"`
}

// PaginatePullRequestFiles fetches the remaining file pages of every pull
// request in prs and returns the complete file list per pull request number.
//
// Each round sends one GraphQL request holding a sub-query per pull request
// that still has pages left, so the number of round trips equals the deepest
// pagination rather than the total number of pages. Files already present on
// a cursor are kept and new pages are appended in order.
func (c *Client) PaginatePullRequestFiles(ctx context.Context, owner, repo string, prs []FilesCursor) (map[int][]string, error) {
	files := make(map[int][]string, len(prs))
	var pending []FilesCursor
	for _, pr := range prs {
		files[pr.Number] = append(files[pr.Number], pr.Files...)
		if pr.HasNextPage {
			pending = append(pending, pr)
		}
	}

	for round := 1; len(pending) > 0; round++ {
		c.log.Debug("Fetching pull request files", "repo", owner+"/"+repo, "round", round, "pull_requests", len(pending))

		pages, err := c.fetchFilesRound(ctx, owner, repo, pending)
		if err != nil {
			return nil, fmt.Errorf("fetching pull request files (round %d): %w", round, err)
		}

		var next []FilesCursor
		for i, pr := range pending {
			page := pages[i]
			for _, node := range page.Nodes {
				files[pr.Number] = append(files[pr.Number], node.Path)
			}
			if page.PageInfo.HasNextPage {
				next = append(next, FilesCursor{
					Number:      pr.Number,
					EndCursor:   page.PageInfo.EndCursor,
					HasNextPage: true,
				})
			}
		}
		pending = next
	}

	return files, nil
}

// fetchFilesRound runs one batched query and returns the files page of each
// cursor, in the order of batch.
func (c *Client) fetchFilesRound(ctx context.Context, owner, repo string, batch []FilesCursor) ([]filesConnection, error) {
	query, variables := buildFilesQuery(owner, repo, batch)

	var data struct {
		Repository map[string]*struct {
			Files *filesConnection `json:"files"`
		} `json:"repository"`
	}
	if err := c.queryGraphQL(ctx, query, variables, &data); err != nil {
		return nil, err
	}

	pages := make([]filesConnection, len(batch))
	for i, pr := range batch {
		result := data.Repository[alias(i)]
		if result == nil || result.Files == nil {
			return nil, fmt.Errorf("%w: pull request #%d missing from response", ErrUnexpectedResponse, pr.Number)
		}
		if result.Files.PageInfo.HasNextPage && result.Files.PageInfo.EndCursor == "" {
			return nil, fmt.Errorf("%w: pull request #%d has more files but no cursor", ErrUnexpectedResponse, pr.Number)
		}
		pages[i] = *result.Files
	}
	return pages, nil
}

// buildFilesQuery composes a single GraphQL document with one aliased
// sub-query (req0, req1, ...) per cursor, and the matching variables.
func buildFilesQuery(owner, repo string, batch []FilesCursor) (string, map[string]any) {
	variables := map[string]any{
		"owner": owner,
		"repo":  repo,
	}
	params := []string{"$owner: String!", "$repo: String!"}

	var fields strings.Builder
	for i, pr := range batch {
		num := fmt.Sprintf("num%d", i)
		variables[num] = pr.Number
		params = append(params, fmt.Sprintf("$%s: Int!", num))

		filesArgs := fmt.Sprintf("first: %d", filesPageSize)
		if pr.EndCursor != "" {
			after := fmt.Sprintf("after%d", i)
			variables[after] = pr.EndCursor
			params = append(params, fmt.Sprintf("$%s: String!", after))
			filesArgs += ", after: $" + after
		}

		fmt.Fprintf(&fields, "    %s: pullRequest(number: $%s) {\n", alias(i), num)
		fmt.Fprintf(&fields, "      files(%s) {\n", filesArgs)
		fields.WriteString("        pageInfo { hasNextPage endCursor }\n")
		fields.WriteString("        nodes { path }\n")
		fields.WriteString("      }\n")
		fields.WriteString("    }\n")
	}

	var doc strings.Builder
	fmt.Fprintf(&doc, "query(%s) {\n", strings.Join(params, ", "))
	doc.WriteString("  repository(owner: $owner, name: $repo) {\n")
	doc.WriteString(fields.String())
	doc.WriteString("  }\n")
	doc.WriteString("}\n")
	return doc.String(), variables
}

func alias(i int) string {
	return fmt.Sprintf("req%d", i)
}

// queryGraphQL posts a raw GraphQL document and decodes its data into v.
// A non-empty errors payload is always a failure.
func (c *Client) queryGraphQL(ctx context.Context, query string, variables map[string]any, v any) error {
	req, err := c.rest.NewRequest(http.MethodPost, c.graphqlURL, graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	var resp struct {
		Data   json.RawMessage     `json:"data"`
		Errors []graphQLErrorEntry `json:"errors"`
	}
	if _, err := c.rest.Do(ctx, req, &resp); err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range resp.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("%w: empty GraphQL data", ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		return fmt.Errorf("decoding GraphQL data: %w", err)
	}
	return nil
}
