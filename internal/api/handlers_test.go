package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"video_tracker/internal/model"
	"video_tracker/internal/scheduler"
	"video_tracker/internal/storage"
	"video_tracker/internal/tracker"
	"video_tracker/internal/youtube"
)

type mockSource struct {
	mu      sync.Mutex
	metrics map[string]model.Metrics
	err     error
}

func (m *mockSource) FetchMetrics(_ context.Context, videoID string) (model.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Metrics{}, m.err
	}
	got, ok := m.metrics[videoID]
	if !ok {
		return model.Metrics{}, fmt.Errorf("video %s: %w", videoID, youtube.ErrNotFound)
	}
	return got, nil
}

func (m *mockSource) ChannelVideoIDs(_ context.Context, _ string, _ int) ([]string, error) {
	return []string{"dQw4w9WgXcQ", "zzzzzzzzzzz"}, nil
}

type mockCycles struct {
	mu          sync.Mutex
	stats       scheduler.CycleStats
	err         error
	ctxErr      error
	hasDeadline bool
}

func (m *mockCycles) RunCycle(ctx context.Context) (scheduler.CycleStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	_, m.hasDeadline = ctx.Deadline()
	return m.stats, m.err
}

const rickID = "dQw4w9WgXcQ"

type testServer struct {
	handler http.Handler
	source  *mockSource
	cycles  *mockCycles
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &mockSource{metrics: map[string]model.Metrics{
		rickID: {Title: "Never Gonna Give You Up", ChannelName: "Rick Astley", ViewCount: 100, LikeCount: 5},
	}}
	cycles := &mockCycles{}
	h := NewHandler(tracker.New(store, src, log), cycles, store, log)
	return &testServer{handler: h.Router(opts), source: src, cycles: cycles}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAddAndListVideos(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodPost, "/api/videos", `{"url":"https://www.youtube.com/watch?v=`+rickID+`"}`)
	if diff := cmp.Diff(http.StatusCreated, rec.Code); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s\nbody: %s", diff, rec.Body.String())
	}

	rec = srv.do(t, http.MethodPost, "/api/videos", `{"url":"`+rickID+`"}`)
	if diff := cmp.Diff(http.StatusOK, rec.Code); diff != "" {
		t.Errorf("re-adding status mismatch (-want +got):\n%s", diff)
	}

	rec = srv.do(t, http.MethodGet, "/api/videos", "")
	videos := decodeBody[[]videoJSON](t, rec)
	if len(videos) != 1 {
		t.Fatalf("got %d videos, want 1", len(videos))
	}
	if diff := cmp.Diff("Never Gonna Give You Up", videos[0].Title); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
	if videos[0].LatestStats == nil || videos[0].LatestStats.ViewCount != 100 {
		t.Errorf("latest stats = %+v, want 100 views", videos[0].LatestStats)
	}
}

func TestGetVideo(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodGet, "/api/videos/"+rickID, "")
	if diff := cmp.Diff(http.StatusNotFound, rec.Code); diff != "" {
		t.Errorf("untracked status mismatch (-want +got):\n%s", diff)
	}

	srv.do(t, http.MethodPost, "/api/videos", `{"url":"`+rickID+`"}`)
	rec = srv.do(t, http.MethodGet, "/api/videos/"+rickID, "")
	if diff := cmp.Diff(http.StatusOK, rec.Code); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	got := decodeBody[videoJSON](t, rec)
	if diff := cmp.Diff("Rick Astley", got.ChannelName); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      func(*testServer)
		wantStatus int
		wantKind   string
	}{
		{
			name:       "missing url",
			method:     http.MethodPost,
			path:       "/api/videos",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name:       "malformed json",
			method:     http.MethodPost,
			path:       "/api/videos",
			body:       `{"url":`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name:       "invalid url",
			method:     http.MethodPost,
			path:       "/api/videos",
			body:       `{"url":"https://example.com/nothing"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name:       "unknown video",
			method:     http.MethodPost,
			path:       "/api/videos",
			body:       `{"url":"aaaaaaaaaaa"}`,
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:   "provider down",
			method: http.MethodPost,
			path:   "/api/videos",
			body:   `{"url":"` + rickID + `"}`,
			setup: func(s *testServer) {
				s.source.err = fmt.Errorf("%w: status 500", youtube.ErrUnavailable)
			},
			wantStatus: http.StatusBadGateway,
			wantKind:   "provider_unavailable",
		},
		{
			name:       "history of untracked video",
			method:     http.MethodGet,
			path:       "/api/videos/" + rickID + "/history",
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "bad history limit",
			method:     http.MethodGet,
			path:       "/api/videos/" + rickID + "/history?limit=abc",
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name:       "subscribe without address",
			method:     http.MethodPost,
			path:       "/api/videos/" + rickID + "/subscribe",
			body:       `{"min_view_change":5}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
		{
			name:       "delete untracked video",
			method:     http.MethodDelete,
			path:       "/api/videos/" + rickID,
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Options{})
			if tt.setup != nil {
				tt.setup(srv)
			}
			rec := srv.do(t, tt.method, tt.path, tt.body)
			if diff := cmp.Diff(tt.wantStatus, rec.Code); diff != "" {
				t.Fatalf("status mismatch (-want +got):\n%s\nbody: %s", diff, rec.Body.String())
			}
			got := decodeBody[errorResponse](t, rec)
			if diff := cmp.Diff(tt.wantKind, got.Kind); diff != "" {
				t.Errorf("kind mismatch (-want +got):\n%s", diff)
			}
			if got.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.do(t, http.MethodPost, "/api/videos", `{"url":"`+rickID+`"}`)
	base := "/api/videos/" + rickID

	rec := srv.do(t, http.MethodPost, base+"/subscribe", `{"email":"alice@example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribe email: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodPost, base+"/subscribe", `{"subscriber":"telegram:42","min_view_change":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribe telegram: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodPost, base+"/notify", `{"subscriber":"alice@example.com","enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: %d %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodGet, base+"/subscribers", "")
	subs := decodeBody[[]subscriptionJSON](t, rec)
	got := make(map[string]bool)
	for _, s := range subs {
		got[s.Subscriber] = s.NotifyEnabled
	}
	want := map[string]bool{"alice@example.com": false, "telegram:42": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("subscribers mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 2; i++ {
		rec = srv.do(t, http.MethodPost, base+"/unsubscribe", `{"email":"alice@example.com"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("unsubscribe #%d: %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec = srv.do(t, http.MethodGet, base+"/notifications", "")
	if diff := cmp.Diff("[]\n", rec.Body.String()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshAndHistory(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.do(t, http.MethodPost, "/api/videos", `{"url":"`+rickID+`"}`)

	srv.source.mu.Lock()
	srv.source.metrics[rickID] = model.Metrics{Title: "Never Gonna Give You Up", ViewCount: 130, LikeCount: 5}
	srv.source.mu.Unlock()

	rec := srv.do(t, http.MethodPost, "/api/videos/"+rickID+"/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[struct {
		Data  sampleJSON `json:"data"`
		Delta deltaJSON  `json:"delta"`
	}](t, rec)
	if diff := cmp.Diff(deltaJSON{Views: 30}, res.Delta); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}

	rec = srv.do(t, http.MethodGet, "/api/videos/"+rickID+"/history?limit=1", "")
	history := decodeBody[[]sampleJSON](t, rec)
	if len(history) != 1 || history[0].ViewCount != 100 {
		t.Errorf("history = %+v, want the oldest sample only", history)
	}
}

func TestDeleteVideoEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.do(t, http.MethodPost, "/api/videos", `{"url":"`+rickID+`"}`)

	rec := srv.do(t, http.MethodDelete, "/api/videos/"+rickID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodGet, "/api/videos", "")
	if diff := cmp.Diff("[]\n", rec.Body.String()); diff != "" {
		t.Errorf("list after delete mismatch (-want +got):\n%s", diff)
	}
}

func TestImportChannelEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodPost, "/api/channels/UC_x5XG1OV2P6uZZ5FSM9Ttw/import?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[struct {
		Added    []string `json:"added"`
		Existing []string `json:"existing"`
		Failed   []string `json:"failed"`
	}](t, rec)
	if diff := cmp.Diff([]string{rickID}, got.Added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"zzzzzzzzzzz"}, got.Failed); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.cycles.stats = scheduler.CycleStats{Subscriptions: 3, Notified: 2}

	rec := srv.do(t, http.MethodPost, "/api/cycles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run cycle: %d %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[cycleJSON](t, rec)
	if got.Subscriptions != 3 || got.Notified != 2 {
		t.Errorf("cycle stats = %+v", got)
	}

	srv.cycles.err = scheduler.ErrCycleInProgress
	rec = srv.do(t, http.MethodPost, "/api/cycles", "")
	if diff := cmp.Diff(http.StatusConflict, rec.Code); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	srv.cycles.err = errors.New("database is locked")
	rec = srv.do(t, http.MethodPost, "/api/cycles", "")
	if diff := cmp.Diff(http.StatusInternalServerError, rec.Code); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycleOutlivesRequest(t *testing.T) {
	srv := newTestServer(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/cycles", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	if diff := cmp.Diff(http.StatusOK, rec.Code); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	srv.cycles.mu.Lock()
	defer srv.cycles.mu.Unlock()
	if srv.cycles.ctxErr != nil {
		t.Errorf("cycle context error = %v, want nil", srv.cycles.ctxErr)
	}
	if srv.cycles.hasDeadline {
		t.Error("cycle context carries the request timeout")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, Options{})

	rec := srv.do(t, http.MethodGet, "/healthz", "")
	if diff := cmp.Diff(`{"status":"ok"}`+"\n", rec.Body.String()); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	rec = srv.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>tracker</h1>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	srv := newTestServer(t, Options{StaticDir: dir})

	rec := srv.do(t, http.MethodGet, "/", "")
	if !strings.Contains(rec.Body.String(), "<h1>tracker</h1>") {
		t.Errorf("index not served: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
