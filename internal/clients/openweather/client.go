package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"
)

const (
	BaseURL = "https://api.openweathermap.org/data/2.5"
)

// Client is an OpenWeatherMap client
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
	query.Set("appid", c.apiKey)
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

// Current returns the present conditions in city, metric units.
// Wind speed is converted from m/s to km/h.
func (c *Client) Current(ctx context.Context, city string) (*Conditions, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("units", "metric")

	data, err := c.doRequest(ctx, "/weather", q)
	if err != nil {
		return nil, err
	}

	var resp WeatherResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal weather: %w", err)
	}
	if len(resp.Weather) == 0 {
		return nil, fmt.Errorf("weather for %q has no conditions", city)
	}

	return &Conditions{
		City:        resp.Name,
		Temperature: int(math.Round(resp.Main.Temp)),
		Description: resp.Weather[0].Description,
		Humidity:    resp.Main.Humidity,
		WindKmh:     int(math.Round(resp.Wind.Speed * 3.6)),
	}, nil
}
