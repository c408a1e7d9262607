// Package mastodon is a minimal client for the two capabilities the bot
// needs: fetching mention notifications and posting replies.
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Visibility values as reported by the API.
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
	VisibilityDirect   = "direct"
)

// Mention is one inbound mention notification. Content is raw HTML as the
// API delivers it.
type Mention struct {
	ID         string
	StatusID   string
	Visibility string
	Account    string
	Content    string
}

// Client talks to one Mastodon instance with one access token.
type Client struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewClient creates a Client for the given instance host, e.g.
// "mastoxiv.page".
func NewClient(instance, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     "https://" + instance,
		accessToken: accessToken,
		client:      httpClient,
	}
}

// NewClientWithBaseURL creates a Client with a full base URL (for testing).
func NewClientWithBaseURL(baseURL, accessToken string, httpClient *http.Client) *Client {
	c := NewClient("", accessToken, httpClient)
	c.baseURL = baseURL
	return c
}

type apiNotification struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account struct {
		Acct string `json:"acct"`
	} `json:"account"`
	Status *struct {
		ID         string `json:"id"`
		Visibility string `json:"visibility"`
		Content    string `json:"content"`
	} `json:"status"`
}

// Mentions fetches pending mention notifications.
func (c *Client) Mentions(ctx context.Context) ([]Mention, error) {
	apiURL := c.baseURL + "/api/v1/notifications?types[]=mention"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("mastodon: creating notifications request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mastodon: fetching notifications: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mastodon: notifications returned status %d: %s", resp.StatusCode, string(body))
	}

	var notifs []apiNotification
	if err := json.Unmarshal(body, &notifs); err != nil {
		return nil, fmt.Errorf("mastodon: parsing notifications: %w", err)
	}

	mentions := make([]Mention, 0, len(notifs))
	for _, n := range notifs {
		if n.Type != "mention" || n.Status == nil {
			continue
		}
		mentions = append(mentions, Mention{
			ID:         n.ID,
			StatusID:   n.Status.ID,
			Visibility: n.Status.Visibility,
			Account:    n.Account.Acct,
			Content:    n.Status.Content,
		})
	}
	return mentions, nil
}

// Reply posts text as a reply to the mention's status. The reply addresses
// the mention's author and carries the given visibility regardless of the
// original mention's.
func (c *Client) Reply(ctx context.Context, m Mention, text, visibility string) error {
	// The prefix is added after callers size text; their truncation margin
	// must leave room for the handle.
	status := text
	if m.Account != "" && !strings.Contains(text, "@"+m.Account) {
		status = "@" + m.Account + " " + text
	}

	params := url.Values{}
	params.Set("status", status)
	params.Set("in_reply_to_id", m.StatusID)
	params.Set("visibility", visibility)

	apiURL := c.baseURL + "/api/v1/statuses"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("mastodon: creating status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mastodon: posting reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mastodon: status post returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
