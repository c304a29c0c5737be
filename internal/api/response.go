package api

import (
	"time"

	"video_tracker/internal/model"
	"video_tracker/internal/scheduler"
)

type videoJSON struct {
	VideoID      string      `json:"video_id"`
	Title        string      `json:"title"`
	ChannelName  string      `json:"channel_name"`
	ThumbnailURL string      `json:"thumbnail_url"`
	CreatedAt    time.Time   `json:"created_at"`
	LatestStats  *sampleJSON `json:"latest_stats"`
}

type sampleJSON struct {
	ID           int64     `json:"id"`
	VideoID      string    `json:"video_id"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	Timestamp    time.Time `json:"timestamp"`
}

type deltaJSON struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

type subscriptionJSON struct {
	Subscriber    string     `json:"subscriber"`
	NotifyEnabled bool       `json:"notify_enabled"`
	MinViewChange int64      `json:"min_view_change"`
	LastNotified  *time.Time `json:"last_notified"`
	CreatedAt     time.Time  `json:"created_at"`
}

type notificationJSON struct {
	Subscriber   string    `json:"subscriber"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	SentAt       time.Time `json:"sent_at"`
}

type cycleJSON struct {
	Subscriptions    int     `json:"subscriptions"`
	VideosFetched    int     `json:"videos_fetched"`
	Failed           int     `json:"failed"`
	Samples          int     `json:"samples"`
	Notified         int     `json:"notified"`
	DispatchFailures int     `json:"dispatch_failures"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

func toVideo(v model.VideoSummary) videoJSON {
	out := videoJSON{
		VideoID:      v.VideoID,
		Title:        v.Title,
		ChannelName:  v.ChannelName,
		ThumbnailURL: v.ThumbnailURL,
		CreatedAt:    v.CreatedAt,
	}
	if v.Latest != nil {
		s := toSample(*v.Latest)
		out.LatestStats = &s
	}
	return out
}

func toSample(s model.MetricSample) sampleJSON {
	return sampleJSON{
		ID:           s.ID,
		VideoID:      s.VideoID,
		ViewCount:    s.ViewCount,
		LikeCount:    s.LikeCount,
		CommentCount: s.CommentCount,
		Timestamp:    s.CapturedAt,
	}
}

func toDelta(d model.Delta) deltaJSON {
	return deltaJSON{Views: d.Views, Likes: d.Likes, Comments: d.Comments}
}

func toSubscription(s model.Subscription) subscriptionJSON {
	return subscriptionJSON{
		Subscriber:    s.Subscriber,
		NotifyEnabled: s.NotifyEnabled,
		MinViewChange: s.MinViewChange,
		LastNotified:  s.LastNotifiedAt,
		CreatedAt:     s.CreatedAt,
	}
}

func toNotification(n model.NotificationRecord) notificationJSON {
	return notificationJSON{
		Subscriber:   n.Subscriber,
		ViewCount:    n.ViewCount,
		LikeCount:    n.LikeCount,
		CommentCount: n.CommentCount,
		SentAt:       n.SentAt,
	}
}

func toCycle(s scheduler.CycleStats) cycleJSON {
	return cycleJSON{
		Subscriptions:    s.Subscriptions,
		VideosFetched:    s.VideosFetched,
		Failed:           s.Failed,
		Samples:          s.Samples,
		Notified:         s.Notified,
		DispatchFailures: s.DispatchFailures,
		DurationSeconds:  s.Duration.Seconds(),
	}
}
