package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mmcdole/gofeed"
)

// ChannelVideoIDs returns up to limit video IDs from a channel's public feed,
// newest first. A limit <= 0 returns every entry of the feed.
func (c *Client) ChannelVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL+"?channel_id="+url.QueryEscape(channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "VideoTracker/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed: %w", ErrUnavailable, err)
	}

	var ids []string
	for _, item := range feed.Items {
		id := itemVideoID(item)
		if id == "" {
			continue
		}
		ids = append(ids, id)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// itemVideoID reads the yt:videoId extension, falling back to the entry link.
func itemVideoID(item *gofeed.Item) string {
	if exts, ok := item.Extensions["yt"]["videoId"]; ok && len(exts) > 0 && exts[0].Value != "" {
		return exts[0].Value
	}
	id, err := ExtractVideoID(item.Link)
	if err != nil {
		return ""
	}
	return id
}
