package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video_tracker/internal/metrics"
	"video_tracker/internal/model"
	"video_tracker/internal/notify"
	"video_tracker/internal/storage"
)

// CycleStats summarizes one reconciliation cycle.
type CycleStats struct {
	Subscriptions    int
	VideosFetched    int
	Failed           int
	Samples          int
	Notified         int
	DispatchFailures int
	Duration         time.Duration
}

type step string

const (
	stepFetching   step = "fetching"
	stepComparing  step = "comparing"
	stepNotifying  step = "notifying"
	stepPersisting step = "persisting"
)

// result is the outcome of one subscription in a cycle. A non-nil err means
// the subscription failed at step.
type result struct {
	step           step
	fetched        bool
	sampled        bool
	notified       bool
	dispatchFailed bool
	err            error
}

// videoState is shared by the subscriptions of one video within a cycle:
// one fetch, one baseline and at most one appended sample per video. A
// failed fetch, baseline read or append fails every subscription of the video.
type videoState struct {
	metrics  model.Metrics
	delta    model.Delta
	err      error
	failStep step
	sampled  bool
}

// RunCycle runs one reconciliation pass over all active subscriptions.
// Failures are contained to the subscription they occur in; the returned
// error is non-nil only when the cycle could not start.
//
// A started cycle attempts every subscription and persists every successful
// fetch even if ctx is cancelled meanwhile. Cancellation of ctx only keeps a
// cycle from starting.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleStats, error) {
	if err := ctx.Err(); err != nil {
		return CycleStats{}, fmt.Errorf("start cycle: %w", err)
	}
	if !s.running.CompareAndSwap(false, true) {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return CycleStats{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	var stats CycleStats

	subs, err := s.store.ListActiveSubscriptions(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		return stats, fmt.Errorf("list active subscriptions: %w", err)
	}
	stats.Subscriptions = len(subs)

	videos := make(map[string]*videoState)
	for _, sub := range subs {
		res := s.processSubscription(ctx, sub, videos)
		if res.fetched {
			stats.VideosFetched++
		}
		if res.sampled {
			stats.Samples++
		}
		if res.notified {
			stats.Notified++
		}
		if res.dispatchFailed {
			stats.DispatchFailures++
		}
		if res.err != nil {
			stats.Failed++
		}
	}

	stats.Duration = time.Since(start)
	metrics.ObserveCycle(stats.Duration)

	s.log.Info("cycle completed",
		"subscriptions", stats.Subscriptions,
		"videos", stats.VideosFetched,
		"samples", stats.Samples,
		"notified", stats.Notified,
		"dispatch_failures", stats.DispatchFailures,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)
	return stats, nil
}

// processSubscription runs fetching, comparing, notifying and persisting for
// one subscription. Panics end the subscription as failed.
func (s *Scheduler) processSubscription(ctx context.Context, sub model.Subscription, videos map[string]*videoState) (res result) {
	res.step = stepFetching

	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic: %v", r)
		}
		if res.err != nil {
			metrics.SubscriptionsFailed.WithLabelValues(string(res.step)).Inc()
			s.log.Error("subscription failed",
				"video_id", sub.VideoID,
				"subscriber", sub.Subscriber,
				"step", string(res.step),
				"error", res.err,
			)
		}
	}()

	vs, ok := videos[sub.VideoID]
	if !ok {
		vs = s.loadVideo(ctx, sub.VideoID)
		videos[sub.VideoID] = vs
		res.fetched = vs.err == nil || vs.failStep != stepFetching
	}
	if vs.err != nil {
		res.step = vs.failStep
		res.err = vs.err
		return res
	}

	res.step = stepComparing
	if shouldNotify(sub, vs.delta) {
		res.step = stepNotifying
		res.notified = s.notify(ctx, sub, vs)
		res.dispatchFailed = !res.notified
	}

	res.step = stepPersisting
	if !vs.sampled {
		sample := model.SampleFromMetrics(sub.VideoID, vs.metrics, s.now())
		if err := s.store.AppendSample(ctx, &sample); err != nil {
			// The remaining subscriptions of this video fail with the same error.
			vs.err = fmt.Errorf("append sample: %w", err)
			vs.failStep = stepPersisting
			res.err = vs.err
			return res
		}
		vs.sampled = true
		res.sampled = true
		metrics.SamplesRecorded.Inc()
	}

	if res.notified {
		if err := s.recordNotification(ctx, sub, vs.metrics); err != nil {
			res.err = err
			return res
		}
	}
	return res
}

// loadVideo fetches current metrics and computes the delta against the
// newest stored sample.
func (s *Scheduler) loadVideo(ctx context.Context, videoID string) *videoState {
	vs := &videoState{}

	m, err := s.source.FetchMetrics(ctx, videoID)
	if err != nil {
		vs.err = fmt.Errorf("fetch metrics: %w", err)
		vs.failStep = stepFetching
		return vs
	}
	vs.metrics = m

	prev, err := s.store.LatestSample(ctx, videoID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		prev = nil
	case err != nil:
		vs.err = fmt.Errorf("load latest sample: %w", err)
		vs.failStep = stepComparing
		return vs
	}
	vs.delta = model.Diff(prev, m)
	return vs
}

func shouldNotify(sub model.Subscription, d model.Delta) bool {
	if !sub.NotifyEnabled || !d.AnyIncrease() {
		return false
	}
	return sub.MinViewChange <= 0 || d.Views >= sub.MinViewChange
}

func (s *Scheduler) notify(ctx context.Context, sub model.Subscription, vs *videoState) bool {
	title := vs.metrics.Title
	if title == "" {
		title = sub.VideoID
	}
	subject, body := notify.FormatUpdate(title, vs.metrics, vs.delta)
	return s.dispatcher.Send(ctx, sub.Subscriber, subject, body)
}

func (s *Scheduler) recordNotification(ctx context.Context, sub model.Subscription, m model.Metrics) error {
	now := s.now()
	if err := s.store.MarkNotified(ctx, sub.VideoID, sub.Subscriber, now); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	rec := &model.NotificationRecord{
		VideoID:      sub.VideoID,
		Subscriber:   sub.Subscriber,
		ViewCount:    m.ViewCount,
		LikeCount:    m.LikeCount,
		CommentCount: m.CommentCount,
		SentAt:       now,
	}
	if err := s.store.AddNotification(ctx, rec); err != nil {
		return fmt.Errorf("add notification: %w", err)
	}
	return nil
}
