package middleware

import (
	"net/http"
	"time"

	"github.com/bnema/reel/internal/infrastructure/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Flush keeps server-sent events streaming through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger writes one line per request. Event streams and health checks
// are logged at debug level only.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		l := logger.Info
		switch {
		case status >= http.StatusInternalServerError:
			l = logger.Error
		case r.URL.Path == "/healthz" || r.URL.Path == "/metrics":
			l = logger.Debug
		}
		l.Printf("%s %s %d %dB %s", r.Method, logger.SanitizeForLog(r.URL.Path), status, rec.bytes, time.Since(started).Round(time.Millisecond))
	})
}
