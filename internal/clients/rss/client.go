// Package rss reads news headlines from an RSS or Atom feed.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

type Entry struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	PublishedAt time.Time
}

// Client fetches a single configured feed
type Client struct {
	feedURL    string
	httpClient *http.Client
}

func NewClient(feedURL string) *Client {
	return &Client{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c.feedURL != ""
}

// Fetch parses the feed and returns its entries in feed order
func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "PulseBot"
	fp.Client = c.httpClient

	feed, err := fp.ParseURLWithContext(c.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		desc := it.Description
		if desc == "" {
			desc = it.Content
		}

		var image string
		if it.Image != nil {
			image = it.Image.URL
		}

		entries = append(entries, Entry{
			Title:       it.Title,
			Description: desc,
			URL:         it.Link,
			ImageURL:    image,
			PublishedAt: pubAt,
		})
	}
	return entries, nil
}
