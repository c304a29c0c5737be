package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"video_tracker/internal/model"
	"video_tracker/internal/tracker"
)

const (
	statusActive = "active"
	statusPaused = "paused"

	timeLayout         = "2006-01-02 15:04 UTC"
	defaultHistoryRows = 10
)

// FormatVideoList formats the tracked videos for display.
func FormatVideoList(videos []model.VideoSummary) string {
	if len(videos) == 0 {
		return "No videos are tracked yet. Use /track <url> to add one."
	}
	var b strings.Builder
	b.WriteString("Tracked videos:\n")
	for _, v := range videos {
		fmt.Fprintf(&b, "\n%s %s\n", v.VideoID, v.Title)
		if v.Latest == nil {
			b.WriteString("   no samples yet\n")
			continue
		}
		fmt.Fprintf(&b, "   %s\n", statsLine(*v.Latest))
	}
	return b.String()
}

// FormatVideoInfo formats detailed information about a single video.
func FormatVideoInfo(v *model.VideoSummary, subs []model.Subscription) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", v.Title)
	fmt.Fprintf(&b, "Channel: %s\n", v.ChannelName)
	fmt.Fprintf(&b, "URL: https://www.youtube.com/watch?v=%s\n", v.VideoID)
	fmt.Fprintf(&b, "Tracked since: %s\n", v.CreatedAt.UTC().Format(timeLayout))
	if v.Latest != nil {
		fmt.Fprintf(&b, "\n%s\n", statsLine(*v.Latest))
		fmt.Fprintf(&b, "Last sample: %s\n", v.Latest.CapturedAt.UTC().Format(timeLayout))
	}
	active := 0
	for _, s := range subs {
		if s.NotifyEnabled {
			active++
		}
	}
	fmt.Fprintf(&b, "\nSubscribers: %d (%d active)", len(subs), active)
	return b.String()
}

// FormatHistory formats metric samples, oldest first, with the change
// against the previous row.
func FormatHistory(videoID string, samples []model.MetricSample) string {
	if len(samples) == 0 {
		return fmt.Sprintf("No history for %s yet.", videoID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "History of %s (%d samples):\n", videoID, len(samples))
	var prev *model.MetricSample
	for i := range samples {
		s := samples[i]
		fmt.Fprintf(&b, "\n%s  %s views", s.CapturedAt.UTC().Format(timeLayout), humanize.Comma(s.ViewCount))
		if prev != nil {
			fmt.Fprintf(&b, " (%s)", signed(s.ViewCount-prev.ViewCount))
		}
		prev = &samples[i]
	}
	return b.String()
}

// FormatRefresh formats the result of an on-demand fetch.
func FormatRefresh(videoID string, res *tracker.RefreshResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Refreshed %s\n\n", videoID)
	fmt.Fprintf(&b, "Views: %s (%s)\n", humanize.Comma(res.Sample.ViewCount), signed(res.Delta.Views))
	fmt.Fprintf(&b, "Likes: %s (%s)\n", humanize.Comma(res.Sample.LikeCount), signed(res.Delta.Likes))
	fmt.Fprintf(&b, "Comments: %s (%s)", humanize.Comma(res.Sample.CommentCount), signed(res.Delta.Comments))
	return b.String()
}

// FormatSubscribers formats the subscriptions of a video.
func FormatSubscribers(videoID string, subs []model.Subscription) string {
	if len(subs) == 0 {
		return fmt.Sprintf("No subscribers for %s.", videoID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Subscribers of %s:\n", videoID)
	for _, s := range subs {
		status := statusActive
		if !s.NotifyEnabled {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n%s [%s]", s.Subscriber, status)
		if s.MinViewChange > 0 {
			fmt.Fprintf(&b, " min %s views", humanize.Comma(s.MinViewChange))
		}
		if s.LastNotifiedAt != nil {
			fmt.Fprintf(&b, ", last notified %s", s.LastNotifiedAt.UTC().Format(timeLayout))
		}
	}
	return b.String()
}

// FormatImport summarizes a channel import.
func FormatImport(channelID string, res *tracker.ImportResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported from %s: %d added, %d already tracked, %d failed.",
		channelID, len(res.Added), len(res.Existing), len(res.Failed))
	if len(res.Added) > 0 {
		fmt.Fprintf(&b, "\nAdded: %s", strings.Join(res.Added, ", "))
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(&b, "\nFailed: %s", strings.Join(res.Failed, ", "))
	}
	return b.String()
}

func statsLine(s model.MetricSample) string {
	return fmt.Sprintf("%s views, %s likes, %s comments",
		humanize.Comma(s.ViewCount), humanize.Comma(s.LikeCount), humanize.Comma(s.CommentCount))
}

func signed(n int64) string {
	if n >= 0 {
		return "+" + humanize.Comma(n)
	}
	return humanize.Comma(n)
}
