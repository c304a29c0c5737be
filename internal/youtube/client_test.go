package youtube

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"video_tracker/internal/model"
)

type mockTransport struct {
	mu         sync.Mutex
	body       string
	statusCode int
	err        error
	calls      int
	lastURL    string
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastURL = req.URL.String()
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func (m *mockTransport) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const fullResponse = `{
  "items": [{
    "id": "dQw4w9WgXcQ",
    "snippet": {
      "title": "Never Gonna Give You Up",
      "channelTitle": "Rick Astley",
      "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg"}}
    },
    "statistics": {"viewCount": "1500000000", "likeCount": "17000000", "commentCount": "2300000"}
  }]
}`

const hiddenStatsResponse = `{
  "items": [{
    "id": "abcDEF12345",
    "snippet": {
      "title": "Likes hidden",
      "channelTitle": "Someone",
      "thumbnails": {"medium": {"url": "https://i.ytimg.com/vi/abcDEF12345/mq.jpg"}}
    },
    "statistics": {"viewCount": "42", "likeCount": "n/a"}
  }]
}`

func TestFetchMetrics(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		want      model.Metrics
		wantErr   error
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: fullResponse, statusCode: 200},
			want: model.Metrics{
				Title:        "Never Gonna Give You Up",
				ChannelName:  "Rick Astley",
				ThumbnailURL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg",
				ViewCount:    1500000000,
				LikeCount:    17000000,
				CommentCount: 2300000,
			},
		},
		{
			name:      "missing and malformed counters default to zero",
			transport: &mockTransport{body: hiddenStatsResponse, statusCode: 200},
			want: model.Metrics{
				Title:        "Likes hidden",
				ChannelName:  "Someone",
				ThumbnailURL: "https://i.ytimg.com/vi/abcDEF12345/mq.jpg",
				ViewCount:    42,
			},
		},
		{
			name:      "no items is not found",
			transport: &mockTransport{body: `{"items": []}`, statusCode: 200},
			wantErr:   ErrNotFound,
		},
		{
			name:      "quota exceeded",
			transport: &mockTransport{body: `{"error": {}}`, statusCode: 403},
			wantErr:   ErrUnavailable,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   ErrUnavailable,
		},
		{
			name:      "invalid json",
			transport: &mockTransport{body: "<html>", statusCode: 200},
			wantErr:   ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.transport, Config{APIKey: "k"}, testLogger())
			got, err := c.FetchMetrics(context.Background(), "dQw4w9WgXcQ")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FetchMetrics() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchMetricsRequest(t *testing.T) {
	tr := &mockTransport{body: fullResponse, statusCode: 200}
	c := New(tr, Config{APIKey: "secret", BaseURL: "https://api.test/videos"}, testLogger())

	if _, err := c.FetchMetrics(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "https://api.test/videos?id=dQw4w9WgXcQ&key=secret&part=statistics%2Csnippet"
	if diff := cmp.Diff(want, tr.lastURL); diff != "" {
		t.Errorf("request URL mismatch (-want +got):\n%s", diff)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	tr := &mockTransport{err: io.ErrUnexpectedEOF}
	c := New(tr, Config{APIKey: "k"}, testLogger())
	ctx := context.Background()

	for i := 0; i < consecutiveFailuresToTrip; i++ {
		if _, err := c.FetchMetrics(ctx, "dQw4w9WgXcQ"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("attempt %d: error = %v, want ErrUnavailable", i, err)
		}
	}

	_, err := c.FetchMetrics(ctx, "dQw4w9WgXcQ")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open circuit error = %v, want ErrUnavailable", err)
	}
	if diff := cmp.Diff(consecutiveFailuresToTrip, tr.callCount()); diff != "" {
		t.Errorf("open circuit should not reach the transport (-want +got):\n%s", diff)
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	tr := &mockTransport{body: `{"items": []}`, statusCode: 200}
	c := New(tr, Config{APIKey: "k"}, testLogger())

	for i := 0; i < consecutiveFailuresToTrip+2; i++ {
		if _, err := c.FetchMetrics(context.Background(), "gone1234567"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("attempt %d: error = %v, want ErrNotFound", i, err)
		}
	}
	if diff := cmp.Diff(consecutiveFailuresToTrip+2, tr.callCount()); diff != "" {
		t.Errorf("every call should reach the transport (-want +got):\n%s", diff)
	}
}

type slowTransport struct{}

func (slowTransport) Do(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func TestFetchMetricsTimeout(t *testing.T) {
	c := New(slowTransport{}, Config{APIKey: "k", Timeout: 20 * time.Millisecond}, testLogger())

	start := time.Now()
	_, err := c.FetchMetrics(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fetch took %v, expected the timeout to bound it", elapsed)
	}
}

func TestChannelVideoIDs(t *testing.T) {
	data, err := os.ReadFile("../../testdata/channel_feed.xml") //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	tests := []struct {
		name      string
		channelID string
		limit     int
		transport *mockTransport
		want      []string
		wantErr   error
	}{
		{
			name:      "all entries",
			channelID: "UC_x5XG1OV2P6uZZ5FSM9Ttw",
			transport: &mockTransport{body: string(data), statusCode: 200},
			want:      []string{"aaaaaaaaaa1", "bbbbbbbbbb2", "cccccccccc3"},
		},
		{
			name:      "limited",
			channelID: "UC_x5XG1OV2P6uZZ5FSM9Ttw",
			limit:     2,
			transport: &mockTransport{body: string(data), statusCode: 200},
			want:      []string{"aaaaaaaaaa1", "bbbbbbbbbb2"},
		},
		{
			name:      "unknown channel",
			channelID: "UC_x5XG1OV2P6uZZ5FSM9Ttw",
			transport: &mockTransport{body: "", statusCode: 404},
			wantErr:   ErrNotFound,
		},
		{
			name:      "malformed channel id",
			channelID: "bogus",
			transport: &mockTransport{statusCode: 200},
			wantErr:   ErrInvalidChannelRef,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.transport, Config{}, testLogger())
			got, err := c.ChannelVideoIDs(context.Background(), tt.channelID, tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ChannelVideoIDs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
