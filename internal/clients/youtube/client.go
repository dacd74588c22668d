package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	BaseURL  = "https://www.googleapis.com/youtube/v3"
	WatchURL = "https://www.youtube.com/watch?v="
)

// Client is a YouTube Data API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	query.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

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

// Search returns up to max videos matching query
func (c *Client) Search(ctx context.Context, query string, max int) ([]Video, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(max))

	data, err := c.doRequest(ctx, "/search", q)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal search: %w", err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:           it.ID.VideoID,
			Title:        it.Snippet.Title,
			Description:  it.Snippet.Description,
			URL:          WatchURL + it.ID.VideoID,
			ThumbnailURL: it.Snippet.Thumbnails.High.URL,
		})
	}
	return videos, nil
}
