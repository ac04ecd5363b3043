package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	todoistSourceID = "todoist"
	todoistAPIURL   = "https://api.todoist.com/api/v1"

	// todoistFilter limits the fetch to the items the tray actually shows.
	todoistFilter = "today | overdue | tomorrow"
)

// TodoistClient fetches and completes Todoist tasks through the REST API.
type TodoistClient struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewTodoistClient creates a Todoist adapter for the given API token.
func NewTodoistClient(token string) *TodoistClient {
	return &TodoistClient{
		client:  newHTTPClient(),
		baseURL: todoistAPIURL,
		token:   token,
	}
}

// ID implements Source.
func (c *TodoistClient) ID() string { return todoistSourceID }

// Kind implements Source.
func (c *TodoistClient) Kind() Kind { return KindTask }

// Account implements Source.
func (c *TodoistClient) Account() string { return "" }

type todoistDue struct {
	// Date is either "YYYY-MM-DD" or "YYYY-MM-DDTHH:MM:SS", optionally with
	// a trailing "Z" for UTC instants.
	Date string `json:"date"`
}

type todoistTask struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Due     *todoistDue `json:"due"`
}

// Fetch implements Source. It queries the filter endpoint for today's,
// overdue, and tomorrow's tasks.
func (c *TodoistClient) Fetch(ctx context.Context) ([]RawItem, error) {
	u := fmt.Sprintf("%s/tasks/filter?query=%s", c.baseURL, url.QueryEscape(todoistFilter))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, netErr(todoistSourceID, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, netErr(todoistSourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(todoistSourceID, resp, bodyPreview(resp.Body))
	}

	// The filter endpoint paginates under a "results" field.
	var payload struct {
		Results []todoistTask `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeErr(todoistSourceID, err)
	}

	items := make([]RawItem, 0, len(payload.Results))
	for _, t := range payload.Results {
		item := RawItem{
			ID:        t.ID,
			Title:     t.Content,
			CanAct:    true,
			ActionURL: "https://app.todoist.com/app/task/" + t.ID,
		}
		if t.Due != nil {
			item.Due = parseDueDate(t.Due.Date)
		}
		items = append(items, item)
	}
	return items, nil
}

// Complete implements Completer by closing the task upstream.
func (c *TodoistClient) Complete(ctx context.Context, itemID string) error {
	u := fmt.Sprintf("%s/tasks/%s/close", c.baseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return netErr(todoistSourceID, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return netErr(todoistSourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErr(todoistSourceID, resp, bodyPreview(resp.Body))
	}
	return nil
}
