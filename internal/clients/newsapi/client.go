package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	BaseURL = "https://newsapi.org/v2"
)

// Client is a NewsAPI client
type Client struct {
	apiKey     string
	baseURL    string
	country    string
	httpClient *http.Client
}

// NewClient creates a new NewsAPI client for Ethiopian headlines
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		country: "et",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// SetBaseURL points the client at another host, used in tests
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// TopHeadlines returns the current top headlines, optionally narrowed to a
// NewsAPI category such as "business" or "sports"
func (c *Client) TopHeadlines(ctx context.Context, category string) ([]Article, error) {
	q := url.Values{}
	q.Set("country", c.country)
	if category != "" {
		q.Set("category", category)
	}

	data, err := c.doRequest(ctx, "/top-headlines", q)
	if err != nil {
		return nil, err
	}

	var resp HeadlinesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal headlines: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: %s", resp.Code, resp.Message)
	}

	return resp.Articles, nil
}
