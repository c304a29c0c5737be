package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"video_tracker/internal/model"
	"video_tracker/internal/storage"
)

// DefaultSchedule runs a cycle every 15 minutes.
const DefaultSchedule = "@every 15m"

// ErrCycleInProgress is returned by RunCycle while another cycle is running.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Source is the interface for fetching current video metrics.
type Source interface {
	FetchMetrics(ctx context.Context, videoID string) (model.Metrics, error)
}

// Dispatcher is the interface for delivering notifications.
type Dispatcher interface {
	Send(ctx context.Context, subscriber, subject, body string) bool
}

// Scheduler periodically reconciles tracked videos against the metrics
// source and notifies subscribers of changes.
type Scheduler struct {
	store      storage.Storage
	source     Source
	dispatcher Dispatcher
	log        *slog.Logger
	parser     cron.Parser
	schedule   string
	now        func() time.Time

	running atomic.Bool

	mu sync.Mutex
	c  *cron.Cron
}

// New creates a Scheduler using DefaultSchedule.
func New(store storage.Storage, source Source, dispatcher Dispatcher, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		source:     source,
		dispatcher: dispatcher,
		log:        log,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		schedule:   DefaultSchedule,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetSchedule overrides the default schedule. It accepts standard five-field
// cron expressions and descriptors such as "@every 5m".
func (s *Scheduler) SetSchedule(spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = spec
	return nil
}

// Start registers the cycle on the schedule. The first cycle runs at the
// first scheduled tick, not immediately. ctx is passed to every cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler already started")
	}

	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("add cycle job: %w", err)
	}
	c.Start()
	s.c = c

	s.log.Info("scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the schedule and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.log.Warn("skipping cycle, previous one still running")
			return
		}
		s.log.Error("cycle failed", "error", err)
	}
}
