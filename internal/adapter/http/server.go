package http

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/bnema/reel/internal/adapter/http/middleware"
	"github.com/bnema/reel/internal/adapter/http/ratelimit"
	"github.com/bnema/reel/internal/service"
)

type ServerConfig struct {
	Videos VideoService
	Auth   AuthService
	Events *service.EventBus

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// BlobDir is exposed under /blobs/ when set.
	BlobDir string

	CSRFSecret  string
	BehindProxy bool
}

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	cfg        ServerConfig
	csrf       *middleware.CSRF
	limiter    *ratelimit.LoginRateLimiter
	failures   *ratelimit.FailureTracker
	backoff    *ratelimit.Backoff
	handler    http.Handler
}

func NewServer(cfg ServerConfig) *Server {
	csrf := middleware.NewCSRF(cfg.CSRFSecret)
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		handlers:   NewHandlers(cfg.Videos, csrf),
		sseHandler: NewSSEHandler(cfg.Events, cfg.Videos),
		cfg:        cfg,
		csrf:       csrf,
		limiter: ratelimit.NewLoginRateLimiter(
			5,
			15*time.Minute,
			30*time.Minute,
		),
		failures: ratelimit.NewFailureTracker(),
		backoff: ratelimit.NewBackoff(
			500*time.Millisecond,
			10*time.Second,
			2.0,
		),
	}

	s.registerRoutes()
	s.registerBlobs()
	s.handler = middleware.RequestLogger(middleware.SecurityHeaders(mux))

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/videos", s.handlers.SubmitVideo())
	s.mux.HandleFunc("GET /api/videos/{id}", s.handlers.GetVideo())
	s.mux.HandleFunc("GET /api/videos/{id}/events", s.sseHandler.Events())

	auth := s.cfg.Auth
	loginHandler := LoginHandler(LoginDeps{
		Auth:        auth,
		Limiter:     s.limiter,
		Failures:    s.failures,
		Backoff:     s.backoff,
		CSRF:        s.csrf,
		BehindProxy: s.cfg.BehindProxy,
	})
	s.handleAdmin("GET /admin/login", loginHandler)
	s.handleAdmin("POST /admin/login", loginHandler)
	s.handleAdmin("POST /admin/logout", AuthMiddleware(auth, LogoutHandler()))

	s.handleAdmin("GET /admin/{$}", AuthMiddleware(auth, s.handlers.Dashboard()))
	s.handleAdmin("GET /admin/queue", AuthMiddleware(auth, s.handlers.QueueStatus()))
	s.handleAdmin("GET /admin/failed", AuthMiddleware(auth, s.handlers.ListFailed()))
	s.handleAdmin("POST /admin/videos/{id}/retry", AuthMiddleware(auth, s.handlers.RetryVideo()))

	s.mux.HandleFunc("GET /healthz", Healthz())
	if s.cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", s.cfg.Metrics)
	}
}

func (s *Server) handleAdmin(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.csrf.Protect(h))
}

func (s *Server) registerBlobs() {
	if s.cfg.BlobDir == "" {
		return
	}
	files := http.FileServer(noListingFS{http.Dir(s.cfg.BlobDir)})
	s.mux.Handle("GET /blobs/", http.StripPrefix("/blobs/", files))
}

// RunMaintenance sweeps idle login records until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) {
	s.limiter.Run(ctx, 5*time.Minute)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// noListingFS hides directory indexes.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
