// Package tracker implements the inbound commands of the video tracker:
// adding and removing videos, reading history and managing subscriptions.
// Input is validated before any call to the metrics source.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"video_tracker/internal/model"
	"video_tracker/internal/notify"
	"video_tracker/internal/storage"
	"video_tracker/internal/youtube"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000

	DefaultImportLimit = 10
	MaxImportLimit     = 50
)

// Source is the interface for the metrics provider.
type Source interface {
	FetchMetrics(ctx context.Context, videoID string) (model.Metrics, error)
	ChannelVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error)
}

// Service executes tracker commands against a store and a metrics source.
type Service struct {
	store  storage.Storage
	source Source
	log    *slog.Logger
	now    func() time.Time
}

// New creates a Service.
func New(store storage.Storage, source Source, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		source: source,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddVideo starts tracking the video referenced by a URL or bare ID. A new
// video is fetched once and stored together with its first sample. Adding a
// tracked video returns it unchanged with created=false.
func (s *Service) AddVideo(ctx context.Context, ref string) (*model.VideoSummary, bool, error) {
	const op = "add video"

	videoID, err := youtube.ExtractVideoID(ref)
	if err != nil {
		return nil, false, wrap(op, err)
	}

	if v, err := s.store.GetVideo(ctx, videoID); err == nil {
		latest, err := s.latest(ctx, videoID)
		if err != nil {
			return nil, false, wrap(op, err)
		}
		return &model.VideoSummary{Video: *v, Latest: latest}, false, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, wrap(op, err)
	}

	m, err := s.source.FetchMetrics(ctx, videoID)
	if err != nil {
		return nil, false, wrap(op, err)
	}

	v := model.Video{
		VideoID:      videoID,
		Title:        m.Title,
		ChannelName:  m.ChannelName,
		ThumbnailURL: m.ThumbnailURL,
	}
	created, err := s.store.CreateVideo(ctx, &v)
	if err != nil {
		return nil, false, wrap(op, err)
	}

	sample := model.SampleFromMetrics(videoID, m, s.now())
	if err := s.store.AppendSample(ctx, &sample); err != nil {
		return nil, false, wrap(op, err)
	}

	s.log.Info("video added", "video_id", videoID, "title", v.Title, "views", m.ViewCount)
	return &model.VideoSummary{Video: v, Latest: &sample}, created, nil
}

// ListVideos returns every tracked video with its latest sample.
func (s *Service) ListVideos(ctx context.Context) ([]model.VideoSummary, error) {
	videos, err := s.store.ListVideos(ctx)
	if err != nil {
		return nil, wrap("list videos", err)
	}
	return videos, nil
}

// Video returns a tracked video with its latest sample.
func (s *Service) Video(ctx context.Context, ref string) (*model.VideoSummary, error) {
	const op = "get video"

	videoID, err := youtube.ExtractVideoID(ref)
	if err != nil {
		return nil, wrap(op, err)
	}
	v, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}
	latest, err := s.latest(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return &model.VideoSummary{Video: *v, Latest: latest}, nil
}

// History returns up to limit samples of a video, oldest first. A limit
// <= 0 uses DefaultHistoryLimit; larger limits are capped at MaxHistoryLimit.
func (s *Service) History(ctx context.Context, videoID string, limit int) ([]model.MetricSample, error) {
	const op = "history"

	videoID, err := s.requireVideo(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	samples, err := s.store.ListSamples(ctx, videoID, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	return samples, nil
}

// RefreshResult is the outcome of an on-demand fetch.
type RefreshResult struct {
	Sample model.MetricSample
	Delta  model.Delta
}

// Refresh fetches a tracked video outside the scheduled cycle and appends
// the sample. No notifications are sent.
func (s *Service) Refresh(ctx context.Context, videoID string) (*RefreshResult, error) {
	const op = "refresh"

	videoID, err := s.requireVideo(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}

	m, err := s.source.FetchMetrics(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}

	prev, err := s.latest(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}

	sample := model.SampleFromMetrics(videoID, m, s.now())
	if err := s.store.AppendSample(ctx, &sample); err != nil {
		return nil, wrap(op, err)
	}

	return &RefreshResult{Sample: sample, Delta: model.Diff(prev, m)}, nil
}

// Subscribe registers subscriber for updates of a tracked video.
// Subscribing again re-enables notifications and replaces the threshold.
func (s *Service) Subscribe(ctx context.Context, videoID, subscriber string, minViewChange int64) (*model.Subscription, error) {
	const op = "subscribe"

	addr, err := notify.ParseAddress(subscriber)
	if err != nil {
		return nil, wrap(op, err)
	}
	if minViewChange < 0 {
		return nil, invalid(op, "min view change must not be negative, got %d", minViewChange)
	}

	videoID, err = s.requireVideo(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}

	sub, err := s.store.UpsertSubscription(ctx, videoID, addr.String(), minViewChange)
	if err != nil {
		return nil, wrap(op, err)
	}

	s.log.Info("subscribed", "video_id", videoID, "subscriber", sub.Subscriber, "min_view_change", minViewChange)
	return sub, nil
}

// Unsubscribe removes a subscription. Removing a missing one succeeds.
func (s *Service) Unsubscribe(ctx context.Context, videoID, subscriber string) error {
	const op = "unsubscribe"

	id, err := youtube.ExtractVideoID(videoID)
	if err != nil {
		return wrap(op, err)
	}
	addr, err := notify.ParseAddress(subscriber)
	if err != nil {
		return wrap(op, err)
	}

	if err := s.store.RemoveSubscription(ctx, id, addr.String()); err != nil {
		return wrap(op, err)
	}
	s.log.Info("unsubscribed", "video_id", id, "subscriber", addr.String())
	return nil
}

// Subscribers lists every subscription of a tracked video, paused ones included.
func (s *Service) Subscribers(ctx context.Context, videoID string) ([]model.Subscription, error) {
	const op = "list subscribers"

	videoID, err := s.requireVideo(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}
	subs, err := s.store.ListSubscriptions(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return subs, nil
}

// SetNotify pauses or resumes notifications of an existing subscription.
func (s *Service) SetNotify(ctx context.Context, videoID, subscriber string, enabled bool) error {
	const op = "set notify"

	id, err := youtube.ExtractVideoID(videoID)
	if err != nil {
		return wrap(op, err)
	}
	addr, err := notify.ParseAddress(subscriber)
	if err != nil {
		return wrap(op, err)
	}
	if err := s.store.SetNotifyEnabled(ctx, id, addr.String(), enabled); err != nil {
		return wrap(op, err)
	}
	return nil
}

// DeleteVideo stops tracking a video and removes its history, subscriptions
// and notification records.
func (s *Service) DeleteVideo(ctx context.Context, videoID string) error {
	const op = "delete video"

	id, err := youtube.ExtractVideoID(videoID)
	if err != nil {
		return wrap(op, err)
	}
	if err := s.store.DeleteVideo(ctx, id); err != nil {
		return wrap(op, err)
	}
	s.log.Info("video deleted", "video_id", id)
	return nil
}

// Notifications returns the delivered notifications of a video.
func (s *Service) Notifications(ctx context.Context, videoID string) ([]model.NotificationRecord, error) {
	const op = "list notifications"

	videoID, err := s.requireVideo(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}
	recs, err := s.store.ListNotifications(ctx, videoID)
	if err != nil {
		return nil, wrap(op, err)
	}
	return recs, nil
}

// ImportResult lists the outcome of a channel import per video ID.
type ImportResult struct {
	Added    []string
	Existing []string
	Failed   []string
}

// ImportChannel adds the newest videos of a channel. Failures of single
// videos are collected in the result; only a failure to read the channel
// is returned as an error.
func (s *Service) ImportChannel(ctx context.Context, channelID string, limit int) (*ImportResult, error) {
	const op = "import channel"

	if err := youtube.ValidateChannelID(channelID); err != nil {
		return nil, wrap(op, err)
	}
	switch {
	case limit <= 0:
		limit = DefaultImportLimit
	case limit > MaxImportLimit:
		limit = MaxImportLimit
	}

	ids, err := s.source.ChannelVideoIDs(ctx, channelID, limit)
	if err != nil {
		return nil, wrap(op, err)
	}

	res := &ImportResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, wrap(op, ctx.Err())
		}
		_, created, err := s.AddVideo(ctx, id)
		switch {
		case err != nil:
			s.log.Warn("import video", "channel_id", channelID, "video_id", id, "error", err)
			res.Failed = append(res.Failed, id)
		case created:
			res.Added = append(res.Added, id)
		default:
			res.Existing = append(res.Existing, id)
		}
	}

	s.log.Info("channel imported", "channel_id", channelID,
		"added", len(res.Added), "existing", len(res.Existing), "failed", len(res.Failed))
	return res, nil
}

// requireVideo normalizes ref and checks that the video is tracked.
func (s *Service) requireVideo(ctx context.Context, ref string) (string, error) {
	videoID, err := youtube.ExtractVideoID(ref)
	if err != nil {
		return "", err
	}
	if _, err := s.store.GetVideo(ctx, videoID); err != nil {
		return "", err
	}
	return videoID, nil
}

func (s *Service) latest(ctx context.Context, videoID string) (*model.MetricSample, error) {
	prev, err := s.store.LatestSample(ctx, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return prev, err
}
