package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"video_tracker/internal/scheduler"
	"video_tracker/internal/tracker"
)

const maxRequestBody = 64 * 1024

type addVideoRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type subscribeRequest struct {
	Subscriber    string `json:"subscriber" validate:"required_without=Email,max=320"`
	Email         string `json:"email" validate:"required_without=Subscriber,max=320"`
	MinViewChange int64  `json:"min_view_change" validate:"gte=0"`
}

func (r subscribeRequest) target() string {
	if r.Subscriber != "" {
		return r.Subscriber
	}
	return r.Email
}

type notifyRequest struct {
	Subscriber string `json:"subscriber" validate:"required,max=320"`
	Enabled    *bool  `json:"enabled" validate:"required"`
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Error("health check", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddVideo handles POST /api/videos.
func (h *Handler) AddVideo(w http.ResponseWriter, r *http.Request) {
	var req addVideoRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	v, created, err := h.svc.AddVideo(r.Context(), req.URL)
	if err != nil {
		h.fail(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"success": true,
		"created": created,
		"video":   toVideo(*v),
	})
}

// ListVideos handles GET /api/videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.ListVideos(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]videoJSON, 0, len(videos))
	for _, v := range videos {
		out = append(out, toVideo(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetVideo handles GET /api/videos/{videoID}.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Video(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideo(*v))
}

// History handles GET /api/videos/{videoID}/history?limit=N.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.badRequest(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	samples, err := h.svc.History(r.Context(), chi.URLParam(r, "videoID"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]sampleJSON, 0, len(samples))
	for _, s := range samples {
		out = append(out, toSample(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// Refresh handles POST /api/videos/{videoID}/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    toSample(res.Sample),
		"delta":   toDelta(res.Delta),
	})
}

// Subscribe handles POST /api/videos/{videoID}/subscribe.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	sub, err := h.svc.Subscribe(r.Context(), chi.URLParam(r, "videoID"), req.target(), req.MinViewChange)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Subscribed " + sub.Subscriber + " to notifications for this video",
		"subscription": toSubscription(*sub),
	})
}

// Unsubscribe handles POST /api/videos/{videoID}/unsubscribe.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	if err := h.svc.Unsubscribe(r.Context(), chi.URLParam(r, "videoID"), req.target()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Unsubscribed successfully"})
}

// SetNotify handles POST /api/videos/{videoID}/notify.
func (h *Handler) SetNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	if err := h.svc.SetNotify(r.Context(), chi.URLParam(r, "videoID"), req.Subscriber, *req.Enabled); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "enabled": *req.Enabled})
}

// Subscribers handles GET /api/videos/{videoID}/subscribers.
func (h *Handler) Subscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.Subscribers(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]subscriptionJSON, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubscription(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// Notifications handles GET /api/videos/{videoID}/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Notifications(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]notificationJSON, 0, len(recs))
	for _, n := range recs {
		out = append(out, toNotification(n))
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteVideo handles DELETE /api/videos/{videoID}.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteVideo(r.Context(), chi.URLParam(r, "videoID")); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ImportChannel handles POST /api/channels/{channelID}/import?limit=N.
func (h *Handler) ImportChannel(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.badRequest(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	res, err := h.svc.ImportChannel(r.Context(), chi.URLParam(r, "channelID"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"added":    nonNil(res.Added),
		"existing": nonNil(res.Existing),
		"failed":   nonNil(res.Failed),
	})
}

// RunCycle handles POST /api/cycles. The cycle is detached from the
// request, so a disconnecting client does not cut it short.
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cycles.RunCycle(context.WithoutCancel(r.Context()))
	if errors.Is(err, scheduler.ErrCycleInProgress) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "cycle_in_progress"})
		return
	}
	if err != nil {
		h.log.Error("manual cycle", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Kind: string(tracker.KindPersistence)})
		return
	}
	writeJSON(w, http.StatusOK, toCycle(stats))
}

func (h *Handler) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "" {
		return errors.New("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return h.validate.Struct(dst)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: string(tracker.KindInvalidInput)})
}

// fail writes a service error with the status of its kind.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	kind := tracker.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case tracker.KindInvalidInput:
		status = http.StatusBadRequest
	case tracker.KindNotFound:
		status = http.StatusNotFound
	case tracker.KindProviderUnavailable:
		status = http.StatusBadGateway
	case "":
		kind = tracker.KindPersistence
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "kind", string(kind), "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
