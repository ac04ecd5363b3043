package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	linearSourceID = "linear"
	linearAPIURL   = "https://api.linear.app/graphql"
)

const linearAssignedIssuesQuery = `
query AssignedIssues($after: String) {
  viewer {
    assignedIssues(first: 50, after: $after) {
      nodes {
        id
        identifier
        title
        dueDate
        state {
          name
          type
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}
`

// LinearClient fetches the user's in-progress Linear issues over GraphQL.
// Linear items are read-only in the tray: they never implement Completer.
type LinearClient struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewLinearClient creates a Linear adapter for the given API token.
func NewLinearClient(token string) *LinearClient {
	return &LinearClient{
		client:  newHTTPClient(),
		baseURL: linearAPIURL,
		token:   token,
	}
}

// ID implements Source.
func (c *LinearClient) ID() string { return linearSourceID }

// Kind implements Source.
func (c *LinearClient) Kind() Kind { return KindIssue }

// Account implements Source.
func (c *LinearClient) Account() string { return "" }

type linearIssueState struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type linearIssueNode struct {
	ID         string           `json:"id"`
	Identifier string           `json:"identifier"`
	Title      string           `json:"title"`
	DueDate    *string          `json:"dueDate"`
	State      linearIssueState `json:"state"`
}

type linearPageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type linearResponse struct {
	Data *struct {
		Viewer struct {
			AssignedIssues struct {
				Nodes    []linearIssueNode `json:"nodes"`
				PageInfo linearPageInfo    `json:"pageInfo"`
			} `json:"assignedIssues"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch implements Source. It pages through assigned issues and keeps only
// those in a started/"In Progress" state.
func (c *LinearClient) Fetch(ctx context.Context) ([]RawItem, error) {
	var items []RawItem
	var after *string

	for {
		page, err := c.fetchPage(ctx, after)
		if err != nil {
			return nil, err
		}

		for _, node := range page.Nodes {
			if !isInProgress(node.State) {
				continue
			}
			item := RawItem{
				ID:        node.ID,
				Title:     node.Title,
				Detail:    node.Identifier,
				ActionURL: "https://linear.app/issue/" + node.Identifier,
			}
			if node.DueDate != nil {
				item.Due = parseDueDate(*node.DueDate)
			}
			items = append(items, item)
		}

		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == nil {
			return items, nil
		}
		after = page.PageInfo.EndCursor
	}
}

type linearPage struct {
	Nodes    []linearIssueNode
	PageInfo linearPageInfo
}

func (c *LinearClient) fetchPage(ctx context.Context, after *string) (*linearPage, error) {
	body, err := json.Marshal(map[string]any{
		"query":     linearAssignedIssuesQuery,
		"variables": map[string]any{"after": after},
	})
	if err != nil {
		return nil, decodeErr(linearSourceID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, netErr(linearSourceID, err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, netErr(linearSourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(linearSourceID, resp, bodyPreview(resp.Body))
	}

	var payload linearResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeErr(linearSourceID, err)
	}
	if len(payload.Errors) > 0 {
		msgs := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &Error{
			Kind:    ErrMalformed,
			Source:  linearSourceID,
			Message: fmt.Sprintf("GraphQL error: %s", strings.Join(msgs, "; ")),
		}
	}
	if payload.Data == nil {
		return nil, &Error{Kind: ErrMalformed, Source: linearSourceID, Message: "response missing data payload"}
	}

	conn := payload.Data.Viewer.AssignedIssues
	return &linearPage{Nodes: conn.Nodes, PageInfo: conn.PageInfo}, nil
}

func isInProgress(state linearIssueState) bool {
	return strings.EqualFold(state.Type, "started") ||
		strings.EqualFold(state.Name, "in progress")
}
