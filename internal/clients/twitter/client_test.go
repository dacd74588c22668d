package twitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trends/by/woeid/1313479", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"trend_name":"#Timket","tweet_count":8640}]}`))
	}))
	defer srv.Close()

	c := NewClient("tok")
	c.SetBaseURL(srv.URL)

	trends, err := c.Trends(context.Background(), AddisAbabaWOEID)
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, Trend{Topic: "#Timket", Count: 8640, URL: "https://twitter.com/search?q=%23Timket"}, trends[0])
}

func TestTrendsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad")
	c.SetBaseURL(srv.URL)
	assert.False(t, NewClient("").IsConfigured())

	_, err := c.Trends(context.Background(), AddisAbabaWOEID)
	assert.ErrorContains(t, err, "API error 401")
}
