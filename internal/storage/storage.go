// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"video_tracker/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOutOfOrder is returned when a sample would precede the newest stored sample of its video.
	ErrOutOfOrder = errors.New("sample out of order")
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateVideo(ctx context.Context, v *model.Video) (bool, error)
	GetVideo(ctx context.Context, videoID string) (*model.Video, error)
	ListVideos(ctx context.Context) ([]model.VideoSummary, error)
	DeleteVideo(ctx context.Context, videoID string) error

	AppendSample(ctx context.Context, s *model.MetricSample) error
	LatestSample(ctx context.Context, videoID string) (*model.MetricSample, error)
	ListSamples(ctx context.Context, videoID string, limit int) ([]model.MetricSample, error)

	UpsertSubscription(ctx context.Context, videoID, subscriber string, minViewChange int64) (*model.Subscription, error)
	RemoveSubscription(ctx context.Context, videoID, subscriber string) error
	SetNotifyEnabled(ctx context.Context, videoID, subscriber string, enabled bool) error
	ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, videoID string) ([]model.Subscription, error)
	MarkNotified(ctx context.Context, videoID, subscriber string, when time.Time) error

	AddNotification(ctx context.Context, n *model.NotificationRecord) error
	ListNotifications(ctx context.Context, videoID string) ([]model.NotificationRecord, error)

	Close() error
}
