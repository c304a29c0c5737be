// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	YouTubeAPIKey     string
	YouTubeAPIURL     string
	YouTubeRatePerSec float64
	FetchTimeout      time.Duration

	DatabasePath  string
	LogLevel      string
	Port          string
	StaticDir     string
	CheckSchedule string

	TelegramBotToken string
	AllowedUsers     []int64

	SMTP SMTPConfig

	AMQPURL      string
	AMQPExchange string

	NotifyRatePerSec float64
}

// SMTPConfig holds the outgoing mail settings. An empty Host disables e-mail.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("YOUTUBE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY is required")
	}

	ytRate, err := envFloat("YOUTUBE_RATE_PER_SEC", 5)
	if err != nil {
		return nil, err
	}
	notifyRate, err := envFloat("NOTIFY_RATE_PER_SEC", 10)
	if err != nil {
		return nil, err
	}
	timeout, err := envDuration("FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	smtpPort, err := envInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		YouTubeAPIKey:     apiKey,
		YouTubeAPIURL:     os.Getenv("YOUTUBE_API_URL"),
		YouTubeRatePerSec: ytRate,
		FetchTimeout:      timeout,
		DatabasePath:      envOr("DATABASE_PATH", "./data/tracker.db"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		Port:              envOr("PORT", "5000"),
		StaticDir:         os.Getenv("STATIC_DIR"),
		CheckSchedule:     envOr("CHECK_SCHEDULE", "@every 15m"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		AllowedUsers:      allowedUsers,
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     envOr("AMQP_EXCHANGE", "video.updates"),
		NotifyRatePerSec: notifyRate,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}
