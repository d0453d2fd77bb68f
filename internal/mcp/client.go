package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is the HTTP client for the vault operator API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // broadcasts are paced
		},
	}
}

// Stats holds vault counters
type Stats struct {
	Users            int `json:"users"`
	Sessions         int `json:"sessions"`
	PendingDeletions int `json:"pending_deletions"`
}

// Session describes a stored session
type Session struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Protect      bool      `json:"protect"`
	TimerMinutes int       `json:"timer_minutes"`
	CreatedAt    time.Time `json:"created_at"`
	ItemCount    int       `json:"item_count"`
	DeepLink     string    `json:"deep_link"`
}

// Item describes one stored item
type Item struct {
	Position   int    `json:"position"`
	Kind       string `json:"kind"`
	PayloadRef string `json:"payload_ref,omitempty"`
	Caption    string `json:"caption,omitempty"`
}

// SessionDetail is a session with its items
type SessionDetail struct {
	Session Session `json:"session"`
	Items   []Item  `json:"items"`
}

// Message is a canned message
type Message struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// BroadcastReport summarizes a broadcast
type BroadcastReport struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// ============ Vault ============

// Stats gets vault counters
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListSessions lists the most recent sessions
func (c *Client) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	var result struct {
		Sessions []Session `json:"sessions"`
	}
	path := "/api/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

// GetSession gets a session and its items
func (c *Client) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	var detail SessionDetail
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ============ Messages ============

// GetMessage gets a canned message
func (c *Client) GetMessage(ctx context.Context, name string) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(name), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SetMessage replaces a canned message
func (c *Client) SetMessage(ctx context.Context, name, content string) (*Message, error) {
	var msg Message
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(name), body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ============ Broadcast ============

// Broadcast sends text to every registered user
func (c *Client) Broadcast(ctx context.Context, text string) (*BroadcastReport, error) {
	var report BroadcastReport
	if err := c.do(ctx, http.MethodPost, "/api/broadcast", map[string]string{"text": text}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ============ Helper Methods ============

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
