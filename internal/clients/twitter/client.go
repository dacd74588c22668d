package twitter

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
	BaseURL = "https://api.twitter.com/2"
	// AddisAbabaWOEID is the Yahoo where-on-earth id used for trends
	AddisAbabaWOEID = 1313479
)

// Client is an X/Twitter API v2 client
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(bearerToken string) *Client {
	return &Client{
		token:   bearerToken,
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c.token != ""
}

func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

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

// Trends returns the trending topics for a location
func (c *Client) Trends(ctx context.Context, woeid int) ([]Trend, error) {
	data, err := c.doRequest(ctx, fmt.Sprintf("/trends/by/woeid/%d", woeid))
	if err != nil {
		return nil, err
	}

	var resp TrendsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal trends: %w", err)
	}

	trends := make([]Trend, 0, len(resp.Data))
	for _, d := range resp.Data {
		trends = append(trends, Trend{
			Topic: d.TrendName,
			Count: d.TweetCount,
			URL:   "https://twitter.com/search?q=" + url.QueryEscape(d.TrendName),
		})
	}
	return trends, nil
}
