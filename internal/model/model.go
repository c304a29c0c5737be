// Package model defines the domain types used across the application.
package model

import "time"

// Video is a tracked YouTube video. It is created on the first successful
// fetch and never updated afterwards.
type Video struct {
	VideoID      string
	Title        string
	ChannelName  string
	ThumbnailURL string
	CreatedAt    time.Time
}

// Metrics is a normalized snapshot returned by the metrics source.
// Counts are never negative.
type Metrics struct {
	Title        string
	ChannelName  string
	ThumbnailURL string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// MetricSample is one immutable row of a video's metric history.
type MetricSample struct {
	ID           int64
	VideoID      string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	CapturedAt   time.Time
}

// Subscription is a subscriber's standing request to be notified about a video.
type Subscription struct {
	ID             int64
	VideoID        string
	Subscriber     string
	NotifyEnabled  bool
	MinViewChange  int64
	LastNotifiedAt *time.Time
	CreatedAt      time.Time
}

// NotificationRecord is an audit entry for a delivered notification.
type NotificationRecord struct {
	ID           int64
	VideoID      string
	Subscriber   string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	SentAt       time.Time
}

// VideoSummary pairs a video with its most recent sample, if any.
type VideoSummary struct {
	Video
	Latest *MetricSample
}

// SampleFromMetrics builds an unsaved sample for videoID.
func SampleFromMetrics(videoID string, m Metrics, at time.Time) MetricSample {
	return MetricSample{
		VideoID:      videoID,
		ViewCount:    m.ViewCount,
		LikeCount:    m.LikeCount,
		CommentCount: m.CommentCount,
		CapturedAt:   at,
	}
}
