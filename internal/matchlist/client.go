// Package matchlist fetches scored match start times from The Blue Alliance.
package matchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEventNotFound reports an event key TBA does not know.
var ErrEventNotFound = errors.New("event not found")

// TBAMatch is the subset of the TBA v3 match object the matcher needs.
// ActualTime is nil until the match has been played.
type TBAMatch struct {
	Key         string `json:"key"`
	EventKey    string `json:"event_key"`
	CompLevel   string `json:"comp_level"`
	SetNumber   int    `json:"set_number"`
	MatchNumber int    `json:"match_number"`
	Time        *int64 `json:"time"`
	ActualTime  *int64 `json:"actual_time"`
}

// Client calls the TBA v3 read API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient creates a TBA client.
func NewClient(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tba api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tba base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// EventMatches returns every match of eventKey, played or not.
func (c *Client) EventMatches(ctx context.Context, eventKey string) ([]TBAMatch, error) {
	eventKey = strings.TrimSpace(eventKey)
	if eventKey == "" {
		return nil, errors.New("event key must not be empty")
	}
	endpoint := c.baseURL + "/event/" + url.PathEscape(eventKey) + "/matches"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-TBA-Auth-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventKey)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("tba event matches returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var matches []TBAMatch
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return nil, fmt.Errorf("decode tba response: %w", err)
	}
	return matches, nil
}
