package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"video_tracker/internal/api"
	"video_tracker/internal/bot"
	"video_tracker/internal/config"
	"video_tracker/internal/notify"
	"video_tracker/internal/scheduler"
	"video_tracker/internal/storage"
	"video_tracker/internal/tracker"
	"video_tracker/internal/youtube"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	yt := youtube.New(&http.Client{}, youtube.Config{
		APIKey:        cfg.YouTubeAPIKey,
		BaseURL:       cfg.YouTubeAPIURL,
		Timeout:       cfg.FetchTimeout,
		RatePerSecond: cfg.YouTubeRatePerSec,
	}, log)

	svc := tracker.New(store, yt, log)
	dispatcher := notify.NewDispatcher(cfg.NotifyRatePerSec, log)

	if cfg.SMTP.Host != "" {
		email, err := notify.NewEmailSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			log.Error("create email sender", "error", err)
			os.Exit(1)
		}
		dispatcher.Register(notify.KindEmail, email)
	}

	if cfg.AMQPURL != "" {
		amqpSender, err := notify.NewAMQPSender(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Error("connect amqp", "error", err)
			os.Exit(1)
		}
		defer func() { _ = amqpSender.Close() }()
		dispatcher.Register(notify.KindAMQP, amqpSender)
	}

	var b *bot.Bot
	if cfg.TelegramBotToken != "" {
		b, err = bot.New(cfg.TelegramBotToken, svc, cfg, log)
		if err != nil {
			log.Error("create bot", "error", err)
			os.Exit(1)
		}
		dispatcher.Register(notify.KindTelegram, b)
	}

	for _, kind := range []notify.Kind{notify.KindEmail, notify.KindTelegram, notify.KindAMQP} {
		if !dispatcher.Has(kind) {
			log.Warn("notification channel disabled", "kind", string(kind))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(store, yt, dispatcher, log)
	if err := sched.SetSchedule(cfg.CheckSchedule); err != nil {
		log.Error("invalid check schedule", "error", err)
		os.Exit(1)
	}
	if err := sched.Start(ctx); err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	h := api.NewHandler(svc, sched, store, log)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           h.Router(api.Options{StaticDir: cfg.StaticDir}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			cancel()
		}
	}()

	if b != nil {
		log.Info("starting bot")
		go b.Run(ctx)
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}

	log.Info("tracker stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
