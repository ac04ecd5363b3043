package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	githubAPIURL     = "https://api.github.com"
	githubAPIVersion = "2022-11-28"
	githubUserAgent  = "todotray"

	githubPageSize = 50
	githubMaxPages = 10
)

// GithubClient fetches unread notification threads for one GitHub account.
// Multiple accounts get one client each; sections in the merged state are
// grouped by account name.
type GithubClient struct {
	client  *http.Client
	baseURL string
	account string
}

// NewGithubClient creates a notifications adapter for one account. The token
// is installed as a static OAuth2 token source on the HTTP client.
func NewGithubClient(account, token string) *GithubClient {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = defaultHTTPTimeout
	return &GithubClient{
		client:  client,
		baseURL: githubAPIURL,
		account: account,
	}
}

// ID implements Source.
func (c *GithubClient) ID() string { return "github:" + c.account }

// Kind implements Source.
func (c *GithubClient) Kind() Kind { return KindNotification }

// Account implements Source.
func (c *GithubClient) Account() string { return c.account }

type githubThread struct {
	ID        string `json:"id"`
	Unread    bool   `json:"unread"`
	Reason    string `json:"reason"`
	UpdatedAt string `json:"updated_at"`
	Subject   struct {
		Title string `json:"title"`
	} `json:"subject"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Fetch implements Source. It pages through /notifications and keeps unread
// threads in the order GitHub returns them.
func (c *GithubClient) Fetch(ctx context.Context) ([]RawItem, error) {
	var items []RawItem

	for page := 1; page <= githubMaxPages; page++ {
		threads, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, t := range threads {
			if !t.Unread {
				continue
			}
			item := RawItem{
				ID:     t.ID,
				Title:  t.Subject.Title,
				Detail: fmt.Sprintf("%s · %s", t.Repository.FullName, humanizeReason(t.Reason)),
				CanAct: true,
				// The notifications query URL avoids the 404s direct
				// thread paths produce for some subject types.
				ActionURL: "https://github.com/notifications?query=thread%3A" + t.ID,
			}
			if updated, err := time.Parse(time.RFC3339, t.UpdatedAt); err == nil {
				item.Updated = &updated
			}
			items = append(items, item)
		}

		if len(threads) < githubPageSize {
			break
		}
	}
	return items, nil
}

func (c *GithubClient) fetchPage(ctx context.Context, page int) ([]githubThread, error) {
	q := url.Values{
		"all":           {"false"},
		"participating": {"false"},
		"per_page":      {fmt.Sprint(githubPageSize)},
		"page":          {fmt.Sprint(page)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications?"+q.Encode(), nil)
	if err != nil {
		return nil, netErr(c.ID(), err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, netErr(c.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(c.ID(), resp, bodyPreview(resp.Body))
	}

	var threads []githubThread
	if err := json.NewDecoder(resp.Body).Decode(&threads); err != nil {
		return nil, decodeErr(c.ID(), err)
	}
	return threads, nil
}

// Resolve implements Resolver by marking the thread as read.
func (c *GithubClient) Resolve(ctx context.Context, threadID string) error {
	u := fmt.Sprintf("%s/notifications/threads/%s", c.baseURL, url.PathEscape(threadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, nil)
	if err != nil {
		return netErr(c.ID(), err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return netErr(c.ID(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErr(c.ID(), resp, bodyPreview(resp.Body))
	}
	return nil
}

func (c *GithubClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", githubUserAgent)
}

// humanizeReason upcases the first rune of GitHub's snake-ish reason strings.
func humanizeReason(reason string) string {
	if reason == "" {
		return "Notification"
	}
	return strings.ToUpper(reason[:1]) + reason[1:]
}
