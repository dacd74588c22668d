// Package content fetches categorized content from the configured upstream
// APIs. Fetch never fails: an unconfigured, failing or empty upstream yields
// the built-in mock set with Fallback set.
package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/pulsebot/internal/clients/newsapi"
	"github.com/tazhate/pulsebot/internal/clients/openweather"
	"github.com/tazhate/pulsebot/internal/clients/rss"
	"github.com/tazhate/pulsebot/internal/clients/twitter"
	"github.com/tazhate/pulsebot/internal/clients/youtube"
	"github.com/tazhate/pulsebot/internal/domain"
	"github.com/tazhate/pulsebot/internal/resilience"
	"github.com/tazhate/pulsebot/pkg/logger"
)

const maxFetchItems = 10

type Options struct {
	News    *newsapi.Client
	Feed    *rss.Client
	YouTube *youtube.Client
	Weather *openweather.Client
	Twitter *twitter.Client

	// Cache may be nil, which disables caching
	Cache       Cache
	CacheTTL    time.Duration
	DefaultCity string
}

type Provider struct {
	news    *newsapi.Client
	feed    *rss.Client
	youtube *youtube.Client
	weather *openweather.Client
	twitter *twitter.Client

	breakers map[string]*resilience.Breaker

	cache       Cache
	cacheTTL    time.Duration
	defaultCity string
	log         *zap.SugaredLogger
}

func NewProvider(opts Options) *Provider {
	city := opts.DefaultCity
	if city == "" {
		city = "Addis Ababa"
	}
	breakers := make(map[string]*resilience.Breaker)
	for _, name := range []string{"newsapi", "rss", "youtube", "openweather", "twitter"} {
		breakers[name] = resilience.New(resilience.DefaultConfig(name))
	}
	return &Provider{
		news:        opts.News,
		feed:        opts.Feed,
		youtube:     opts.YouTube,
		weather:     opts.Weather,
		twitter:     opts.Twitter,
		breakers:    breakers,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		defaultCity: city,
		log:         logger.Named("content"),
	}
}

// Fetch returns content for category. filter narrows news to a NewsAPI
// category, videos to a search topic and weather to a city.
func (p *Provider) Fetch(ctx context.Context, category domain.Category, filter string) domain.Content {
	filter = strings.TrimSpace(filter)
	key := cacheKey(category, filter)

	if p.cache != nil {
		if c, ok := p.cache.Get(ctx, key); ok {
			return c
		}
	}

	var (
		c   domain.Content
		err error
	)
	switch category {
	case domain.CategoryNews:
		c, err = p.fetchNews(ctx, filter)
	case domain.CategoryMemes:
		c = domain.Content{Items: mockItems(category)}
	case domain.CategoryVideos:
		c, err = p.fetchVideos(ctx, filter)
	case domain.CategoryWeather:
		c, err = p.fetchWeather(ctx, filter)
	case domain.CategorySports:
		c, err = p.fetchSports(ctx)
	case domain.CategorySocial:
		c, err = p.fetchSocial(ctx)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	if err != nil {
		p.log.Warnw("upstream fetch failed, serving fallback",
			"category", category,
			"filter", filter,
			"error", err,
		)
		c = p.fallback(category, filter)
	}
	c.Category = category

	if p.cache != nil && !c.Fallback && p.cacheTTL > 0 {
		p.cache.Set(ctx, key, c, p.cacheTTL)
	}
	return c
}

// UpstreamStatus is the circuit breaker state of one content API.
type UpstreamStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Open  bool   `json:"open"`
}

// Upstreams reports every upstream breaker, sorted by name.
func (p *Provider) Upstreams() []UpstreamStatus {
	out := make([]UpstreamStatus, 0, len(p.breakers))
	for _, b := range p.breakers {
		out = append(out, UpstreamStatus{
			Name:  b.Name(),
			State: b.State().String(),
			Open:  b.IsOpen(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *Provider) fallback(category domain.Category, filter string) domain.Content {
	if category == domain.CategoryWeather {
		w := MockWeather(p.city(filter))
		return domain.Content{Category: category, Weather: &w, Fallback: true}
	}
	return domain.Content{Category: category, Items: mockItems(category), Fallback: true}
}

func (p *Provider) city(filter string) string {
	if filter != "" {
		return filter
	}
	return p.defaultCity
}

func (p *Provider) fetchNews(ctx context.Context, filter string) (domain.Content, error) {
	switch {
	case p.news != nil && p.news.IsConfigured():
		return p.headlines(ctx, filter)
	case p.feed != nil && p.feed.IsConfigured():
		entries, err := resilience.Call(p.breakers["rss"], func() ([]rss.Entry, error) {
			return p.feed.Fetch(ctx)
		})
		if err != nil {
			return domain.Content{}, err
		}
		items := make([]domain.Item, 0, len(entries))
		for _, e := range entries {
			items = append(items, domain.Item{
				Title:       e.Title,
				Description: e.Description,
				URL:         e.URL,
				ImageURL:    e.ImageURL,
			})
		}
		return nonEmpty(items)
	}
	return p.fallback(domain.CategoryNews, filter), nil
}

func (p *Provider) fetchSports(ctx context.Context) (domain.Content, error) {
	if p.news != nil && p.news.IsConfigured() {
		return p.headlines(ctx, "sports")
	}
	return p.fallback(domain.CategorySports, ""), nil
}

func (p *Provider) headlines(ctx context.Context, newsCategory string) (domain.Content, error) {
	articles, err := resilience.Call(p.breakers["newsapi"], func() ([]newsapi.Article, error) {
		return p.news.TopHeadlines(ctx, newsCategory)
	})
	if err != nil {
		return domain.Content{}, err
	}
	items := make([]domain.Item, 0, len(articles))
	for _, a := range articles {
		desc := a.Description
		if desc == "" {
			desc = "No description available"
		}
		items = append(items, domain.Item{
			Title:       a.Title,
			Description: desc,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
		})
	}
	return nonEmpty(items)
}

func (p *Provider) fetchVideos(ctx context.Context, topic string) (domain.Content, error) {
	if p.youtube == nil || !p.youtube.IsConfigured() {
		return p.fallback(domain.CategoryVideos, topic), nil
	}
	query := strings.TrimSpace("Ethiopia " + topic)
	videos, err := resilience.Call(p.breakers["youtube"], func() ([]youtube.Video, error) {
		return p.youtube.Search(ctx, query, 5)
	})
	if err != nil {
		return domain.Content{}, err
	}
	items := make([]domain.Item, 0, len(videos))
	for _, v := range videos {
		items = append(items, domain.Item{
			Title:       v.Title,
			Description: v.Description,
			URL:         v.URL,
			ImageURL:    v.ThumbnailURL,
		})
	}
	return nonEmpty(items)
}

func (p *Provider) fetchWeather(ctx context.Context, filter string) (domain.Content, error) {
	city := p.city(filter)
	if p.weather == nil || !p.weather.IsConfigured() {
		return p.fallback(domain.CategoryWeather, city), nil
	}
	cond, err := resilience.Call(p.breakers["openweather"], func() (*openweather.Conditions, error) {
		return p.weather.Current(ctx, city)
	})
	if err != nil {
		return domain.Content{}, err
	}
	return domain.Content{Weather: &domain.Weather{
		City:        city,
		Temperature: cond.Temperature,
		Condition:   cond.Description,
		Humidity:    cond.Humidity,
		WindSpeed:   cond.WindKmh,
	}}, nil
}

func (p *Provider) fetchSocial(ctx context.Context) (domain.Content, error) {
	if p.twitter == nil || !p.twitter.IsConfigured() {
		return p.fallback(domain.CategorySocial, ""), nil
	}
	trends, err := resilience.Call(p.breakers["twitter"], func() ([]twitter.Trend, error) {
		return p.twitter.Trends(ctx, twitter.AddisAbabaWOEID)
	})
	if err != nil {
		return domain.Content{}, err
	}
	items := make([]domain.Item, 0, len(trends))
	for _, t := range trends {
		items = append(items, domain.Item{Title: t.Topic, Count: t.Count, URL: t.URL})
	}
	return nonEmpty(items)
}

var errEmptyUpstream = errors.New("upstream returned no items")

func nonEmpty(items []domain.Item) (domain.Content, error) {
	if len(items) == 0 {
		return domain.Content{}, errEmptyUpstream
	}
	if len(items) > maxFetchItems {
		items = items[:maxFetchItems]
	}
	return domain.Content{Items: items}, nil
}

func cacheKey(category domain.Category, filter string) string {
	return string(category) + ":" + strings.ToLower(filter)
}
