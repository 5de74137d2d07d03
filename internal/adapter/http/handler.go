package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/bnema/reel/internal/adapter/http/middleware"
	"github.com/bnema/reel/internal/adapter/http/templates"
	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/service"
)

const maxRequestBody = 1 << 20

type VideoService interface {
	QueueVideoProcessing(ctx context.Context, videoID, sourceURL string, opts domain.ProcessingOptions) (*domain.Job, error)
	QueueStatus() service.QueueStatus
	Get(ctx context.Context, id string) (*domain.Video, error)
	ListFailed(ctx context.Context) ([]*domain.Video, error)
	Counts(ctx context.Context) (map[domain.ProcessingStatus]int, error)
	Retry(ctx context.Context, id string) (*domain.Job, error)
}

type Handlers struct {
	videos VideoService
	csrf   *middleware.CSRF
}

func NewHandlers(videos VideoService, csrf *middleware.CSRF) *Handlers {
	return &Handlers{
		videos: videos,
		csrf:   csrf,
	}
}

type submitRequest struct {
	VideoID   string                   `json:"video_id"`
	SourceURL string                   `json:"source_url"`
	Options   domain.ProcessingOptions `json:"options"`
}

type jobResponse struct {
	JobID      string                  `json:"job_id"`
	VideoID    string                  `json:"video_id"`
	Status     domain.ProcessingStatus `json:"status"`
	MaxRetries int                     `json:"max_retries"`
}

func newJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		JobID:      job.ID,
		VideoID:    job.VideoID,
		Status:     domain.StatusPending,
		MaxRetries: job.MaxRetries,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) SubmitVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}

		job, err := h.videos.QueueVideoProcessing(r.Context(), strings.TrimSpace(req.VideoID), strings.TrimSpace(req.SourceURL), req.Options)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, newJobResponse(job))
	}
}

func (h *Handlers) GetVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, err := h.videos.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, video)
	}
}

func (h *Handlers) QueueStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.videos.QueueStatus())
	}
}

func (h *Handlers) ListFailed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed, err := h.videos.ListFailed(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if failed == nil {
			failed = []*domain.Video{}
		}
		writeJSON(w, http.StatusOK, failed)
	}
}

// RetryVideo answers JSON to API clients and redirects dashboard form posts
// back to the dashboard.
func (h *Handlers) RetryVideo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		job, err := h.videos.Retry(r.Context(), id)

		if isFormPost(r) {
			target := "/admin/?retried=" + url.QueryEscape(id)
			if err != nil {
				logger.Warn.Printf("dashboard retry of %s failed: %v", logger.SanitizeForLog(id), err)
				target = "/admin/?retry_error=" + url.QueryEscape(id)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, newJobResponse(job))
	}
}

func (h *Handlers) Dashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed, err := h.videos.ListFailed(r.Context())
		if err != nil {
			logger.Error.Printf("dashboard failed list error: %v", err)
			failed = nil
		}
		counts, err := h.videos.Counts(r.Context())
		if err != nil {
			logger.Error.Printf("dashboard count error: %v", err)
			counts = map[domain.ProcessingStatus]int{}
		}

		data := templates.DashboardData{
			Queue:     h.videos.QueueStatus(),
			Counts:    counts,
			Failed:    failed,
			CSRFToken: h.csrf.Token(r),
			Notice:    dashboardNotice(r),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = templates.Dashboard(data).Render(r.Context(), w)
	}
}

func dashboardNotice(r *http.Request) string {
	q := r.URL.Query()
	if id := q.Get("retried"); id != "" {
		return "Video " + id + " was queued again."
	}
	if id := q.Get("retry_error"); id != "" {
		return "Video " + id + " could not be retried."
	}
	return ""
}

func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error.Printf("request failed: %v", err)
		writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSource), errors.Is(err, service.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrNotRetryable):
		return http.StatusConflict
	case errors.Is(err, service.ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isFormPost(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
