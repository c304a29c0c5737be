// Package api exposes the tracker commands over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"video_tracker/internal/model"
	"video_tracker/internal/scheduler"
	"video_tracker/internal/tracker"
)

const requestTimeout = 60 * time.Second

// Service is the set of tracker commands served by the API.
type Service interface {
	AddVideo(ctx context.Context, ref string) (*model.VideoSummary, bool, error)
	ListVideos(ctx context.Context) ([]model.VideoSummary, error)
	Video(ctx context.Context, ref string) (*model.VideoSummary, error)
	History(ctx context.Context, videoID string, limit int) ([]model.MetricSample, error)
	Refresh(ctx context.Context, videoID string) (*tracker.RefreshResult, error)
	Subscribe(ctx context.Context, videoID, subscriber string, minViewChange int64) (*model.Subscription, error)
	Unsubscribe(ctx context.Context, videoID, subscriber string) error
	Subscribers(ctx context.Context, videoID string) ([]model.Subscription, error)
	SetNotify(ctx context.Context, videoID, subscriber string, enabled bool) error
	DeleteVideo(ctx context.Context, videoID string) error
	Notifications(ctx context.Context, videoID string) ([]model.NotificationRecord, error)
	ImportChannel(ctx context.Context, channelID string, limit int) (*tracker.ImportResult, error)
}

// CycleRunner triggers a reconciliation cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (scheduler.CycleStats, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	StaticDir      string
	AllowedOrigins []string
}

// Handler serves the HTTP API.
type Handler struct {
	svc      Service
	cycles   CycleRunner
	db       Pinger
	log      *slog.Logger
	validate *validator.Validate
}

// NewHandler creates a Handler.
func NewHandler(svc Service, cycles CycleRunner, db Pinger, log *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		cycles:   cycles,
		db:       db,
		log:      log,
		validate: validator.New(),
	}
}

// Router builds the chi routing tree.
func (h *Handler) Router(opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// A cycle may outlive any request timeout.
		r.Post("/cycles", h.RunCycle)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(requestTimeout))

			r.Post("/videos", h.AddVideo)
			r.Get("/videos", h.ListVideos)
			r.Route("/videos/{videoID}", func(r chi.Router) {
				r.Get("/", h.GetVideo)
				r.Delete("/", h.DeleteVideo)
				r.Get("/history", h.History)
				r.Post("/refresh", h.Refresh)
				r.Post("/subscribe", h.Subscribe)
				r.Post("/unsubscribe", h.Unsubscribe)
				r.Post("/notify", h.SetNotify)
				r.Get("/subscribers", h.Subscribers)
				r.Get("/notifications", h.Notifications)
			})
			r.Post("/channels/{channelID}/import", h.ImportChannel)
		})
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
