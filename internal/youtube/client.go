// Package youtube fetches video metrics from the YouTube Data API and video
// listings from public channel feeds.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"video_tracker/internal/metrics"
	"video_tracker/internal/model"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3/videos"
	DefaultFeedURL = "https://www.youtube.com/feeds/videos.xml"

	maxBodySize = 2 * 1024 * 1024
)

var (
	// ErrNotFound means the provider has no video with the requested ID.
	ErrNotFound = errors.New("video not found")
	// ErrUnavailable means the provider could not be reached or answered with an error.
	// Callers retry on the next cycle.
	ErrUnavailable = errors.New("metrics provider unavailable")
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	APIKey        string
	BaseURL       string
	FeedURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client fetches video metrics from the YouTube Data API.
type Client struct {
	client  HTTPClient
	apiKey  string
	baseURL string
	feedURL string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[model.Metrics]
	log     *slog.Logger
}

// New creates a Client with the given HTTP client.
func New(client HTTPClient, cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	c := &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		feedURL: cfg.FeedURL,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
	c.breaker = newBreaker("youtube-api", log)
	return c
}

// FetchMetrics returns the current metrics of a video.
// The error wraps ErrNotFound or ErrUnavailable.
func (c *Client) FetchMetrics(ctx context.Context, videoID string) (model.Metrics, error) {
	m, err := c.breaker.Execute(func() (model.Metrics, error) {
		return c.fetch(ctx, videoID)
	})
	switch {
	case err == nil:
		metrics.FetchesTotal.WithLabelValues("ok").Inc()
		return m, nil
	case errors.Is(err, ErrNotFound):
		metrics.FetchesTotal.WithLabelValues("not_found").Inc()
		return model.Metrics{}, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.FetchesTotal.WithLabelValues("unavailable").Inc()
		return model.Metrics{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		metrics.FetchesTotal.WithLabelValues("unavailable").Inc()
		return model.Metrics{}, err
	}
}

func (c *Client) fetch(ctx context.Context, videoID string) (model.Metrics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return model.Metrics{}, fmt.Errorf("%w: rate limit wait: %w", ErrUnavailable, err)
	}

	q := url.Values{}
	q.Set("part", "statistics,snippet")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.Metrics{}, fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Metrics{}, fmt.Errorf("%w: http get: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.Metrics{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body videoListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return model.Metrics{}, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	if len(body.Items) == 0 {
		return model.Metrics{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	return normalize(body.Items[0]), nil
}

type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		Thumbnails   map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}

// normalize converts an API item into Metrics. Missing, hidden or malformed
// counters become zero.
func normalize(it videoItem) model.Metrics {
	var thumb string
	for _, size := range []string{"default", "medium", "high"} {
		if t, ok := it.Snippet.Thumbnails[size]; ok && t.URL != "" {
			thumb = t.URL
			break
		}
	}
	return model.Metrics{
		Title:        it.Snippet.Title,
		ChannelName:  it.Snippet.ChannelTitle,
		ThumbnailURL: thumb,
		ViewCount:    parseCount(it.Statistics.ViewCount),
		LikeCount:    parseCount(it.Statistics.LikeCount),
		CommentCount: parseCount(it.Statistics.CommentCount),
	}
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
