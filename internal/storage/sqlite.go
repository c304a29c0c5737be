package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"video_tracker/internal/model"
	"video_tracker/migrations"
)

// Fixed-width fractional seconds keep lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite implements Storage backed by a SQLite database.
//
// The pool is limited to one connection, so every transaction is serialized.
// AppendSample relies on this to keep a video's history ordered by capture time.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateVideo inserts v unless a video with the same ID exists.
// It reports whether a new row was created.
func (s *SQLite) CreateVideo(ctx context.Context, v *model.Video) (bool, error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	created := formatTime(v.CreatedAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (video_id, title, channel_name, thumbnail_url, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO NOTHING`,
		v.VideoID, v.Title, v.ChannelName, v.ThumbnailURL, created,
	)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	v.CreatedAt = parseTime(created)
	return n > 0, nil
}

// GetVideo returns a single video by its ID.
func (s *SQLite) GetVideo(ctx context.Context, videoID string) (*model.Video, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT video_id, title, channel_name, thumbnail_url, created_at
		 FROM videos WHERE video_id = ?`, videoID,
	)
	var v model.Video
	var created string
	err := row.Scan(&v.VideoID, &v.Title, &v.ChannelName, &v.ThumbnailURL, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan video: %w", err)
	}
	v.CreatedAt = parseTime(created)
	return &v, nil
}

// ListVideos returns all videos, newest first, each with its latest sample.
func (s *SQLite) ListVideos(ctx context.Context) ([]model.VideoSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.video_id, v.title, v.channel_name, v.thumbnail_url, v.created_at,
		        m.id, m.view_count, m.like_count, m.comment_count, m.captured_at
		 FROM videos v
		 LEFT JOIN metric_samples m ON m.id = (
		     SELECT id FROM metric_samples
		     WHERE video_id = v.video_id
		     ORDER BY captured_at DESC, id DESC
		     LIMIT 1)
		 ORDER BY v.created_at DESC, v.video_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.VideoSummary
	for rows.Next() {
		var vs model.VideoSummary
		var created string
		var sampleID, views, likes, comments sql.NullInt64
		var captured sql.NullString
		err := rows.Scan(&vs.VideoID, &vs.Title, &vs.ChannelName, &vs.ThumbnailURL, &created,
			&sampleID, &views, &likes, &comments, &captured)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		vs.CreatedAt = parseTime(created)
		if sampleID.Valid {
			vs.Latest = &model.MetricSample{
				ID:           sampleID.Int64,
				VideoID:      vs.VideoID,
				ViewCount:    views.Int64,
				LikeCount:    likes.Int64,
				CommentCount: comments.Int64,
				CapturedAt:   parseTime(captured.String),
			}
		}
		out = append(out, vs)
	}
	return out, rows.Err()
}

// DeleteVideo removes a video together with its samples, subscriptions and
// notification records.
func (s *SQLite) DeleteVideo(ctx context.Context, videoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notification_history WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete notification_history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metric_samples WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete metric_samples: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE video_id = ?`, videoID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	return tx.Commit()
}

// AppendSample appends a sample to its video's history and populates its ID.
// A zero CapturedAt is set to the current time.
func (s *SQLite) AppendSample(ctx context.Context, m *model.MetricSample) error {
	if m.CapturedAt.IsZero() {
		m.CapturedAt = s.now()
	}
	captured := formatTime(m.CapturedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var newest sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(captured_at) FROM metric_samples WHERE video_id = ?`, m.VideoID,
	).Scan(&newest)
	if err != nil {
		return fmt.Errorf("query newest sample: %w", err)
	}
	if newest.Valid && newest.String > captured {
		return fmt.Errorf("video %s at %s: %w", m.VideoID, captured, ErrOutOfOrder)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO metric_samples (video_id, view_count, like_count, comment_count, captured_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.VideoID, m.ViewCount, m.LikeCount, m.CommentCount, captured,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sample: %w", err)
	}
	m.ID = id
	m.CapturedAt = parseTime(captured)
	return nil
}

// LatestSample returns the most recent sample of a video.
func (s *SQLite) LatestSample(ctx context.Context, videoID string) (*model.MetricSample, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, video_id, view_count, like_count, comment_count, captured_at
		 FROM metric_samples WHERE video_id = ?
		 ORDER BY captured_at DESC, id DESC LIMIT 1`, videoID,
	)
	m, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest sample of %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListSamples returns up to limit samples of a video, oldest first.
func (s *SQLite) ListSamples(ctx context.Context, videoID string, limit int) ([]model.MetricSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, view_count, like_count, comment_count, captured_at
		 FROM metric_samples WHERE video_id = ?
		 ORDER BY captured_at ASC, id ASC LIMIT ?`, videoID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []model.MetricSample
	for rows.Next() {
		m, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// UpsertSubscription creates a subscription or re-enables an existing one.
// Re-subscribing keeps the original row and replaces the view threshold.
func (s *SQLite) UpsertSubscription(ctx context.Context, videoID, subscriber string, minViewChange int64) (*model.Subscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (video_id, subscriber, notify_enabled, min_view_change, created_at)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(video_id, subscriber) DO UPDATE SET
		     notify_enabled = 1,
		     min_view_change = excluded.min_view_change`,
		videoID, subscriber, minViewChange, formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, video_id, subscriber, notify_enabled, min_view_change, last_notified_at, created_at
		 FROM subscriptions WHERE video_id = ? AND subscriber = ?`, videoID, subscriber,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// RemoveSubscription deletes a subscription. Removing a missing one is not an error.
func (s *SQLite) RemoveSubscription(ctx context.Context, videoID, subscriber string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE video_id = ? AND subscriber = ?`, videoID, subscriber,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// SetNotifyEnabled pauses or resumes notifications of a subscription.
func (s *SQLite) SetNotifyEnabled(ctx context.Context, videoID, subscriber string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET notify_enabled = ? WHERE video_id = ? AND subscriber = ?`,
		boolToInt(enabled), videoID, subscriber,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %s/%s: %w", videoID, subscriber, ErrNotFound)
	}
	return nil
}

// ListActiveSubscriptions returns all enabled subscriptions in insertion order.
func (s *SQLite) ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, subscriber, notify_enabled, min_view_change, last_notified_at, created_at
		 FROM subscriptions WHERE notify_enabled = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// ListSubscriptions returns every subscription of a video, enabled or not.
func (s *SQLite) ListSubscriptions(ctx context.Context, videoID string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, subscriber, notify_enabled, min_view_change, last_notified_at, created_at
		 FROM subscriptions WHERE video_id = ? ORDER BY id`, videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// MarkNotified records when a subscriber was last notified.
func (s *SQLite) MarkNotified(ctx context.Context, videoID, subscriber string, when time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_notified_at = ? WHERE video_id = ? AND subscriber = ?`,
		formatTime(when), videoID, subscriber,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %s/%s: %w", videoID, subscriber, ErrNotFound)
	}
	return nil
}

// AddNotification appends an entry to the notification audit log.
func (s *SQLite) AddNotification(ctx context.Context, n *model.NotificationRecord) error {
	if n.SentAt.IsZero() {
		n.SentAt = s.now()
	}
	sent := formatTime(n.SentAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_history (video_id, subscriber, view_count, like_count, comment_count, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.VideoID, n.Subscriber, n.ViewCount, n.LikeCount, n.CommentCount, sent,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	n.SentAt = parseTime(sent)
	return nil
}

// ListNotifications returns the notification log of a video, oldest first.
func (s *SQLite) ListNotifications(ctx context.Context, videoID string) ([]model.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_id, subscriber, view_count, like_count, comment_count, sent_at
		 FROM notification_history WHERE video_id = ? ORDER BY id`, videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.NotificationRecord
	for rows.Next() {
		var n model.NotificationRecord
		var sent string
		if err := rows.Scan(&n.ID, &n.VideoID, &n.Subscriber, &n.ViewCount, &n.LikeCount, &n.CommentCount, &sent); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.SentAt = parseTime(sent)
		out = append(out, n)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSample(row scannable) (model.MetricSample, error) {
	var m model.MetricSample
	var captured string
	err := row.Scan(&m.ID, &m.VideoID, &m.ViewCount, &m.LikeCount, &m.CommentCount, &captured)
	if errors.Is(err, sql.ErrNoRows) {
		return m, err
	}
	if err != nil {
		return m, fmt.Errorf("scan sample: %w", err)
	}
	m.CapturedAt = parseTime(captured)
	return m, nil
}

func scanSubscription(row scannable) (model.Subscription, error) {
	var sub model.Subscription
	var enabled int
	var lastNotified sql.NullString
	var created string
	err := row.Scan(&sub.ID, &sub.VideoID, &sub.Subscriber, &enabled, &sub.MinViewChange, &lastNotified, &created)
	if err != nil {
		return sub, fmt.Errorf("scan subscription: %w", err)
	}
	sub.NotifyEnabled = enabled == 1
	if lastNotified.Valid {
		t := parseTime(lastNotified.String)
		sub.LastNotifiedAt = &t
	}
	sub.CreatedAt = parseTime(created)
	return sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
