package http

import (
	"context"
	"sync"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/service"
)

type fakeVideos struct {
	mu       sync.Mutex
	videos   map[string]*domain.Video
	queued   []string
	queueErr error
	retryErr error
	listErr  error
	status   service.QueueStatus
	lastOpts domain.ProcessingOptions
	retried  []string
}

func newFakeVideos(videos ...*domain.Video) *fakeVideos {
	f := &fakeVideos{videos: make(map[string]*domain.Video)}
	for _, v := range videos {
		f.videos[v.ID] = v
	}
	return f
}

func (f *fakeVideos) QueueVideoProcessing(_ context.Context, videoID, sourceURL string, opts domain.ProcessingOptions) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	f.queued = append(f.queued, videoID)
	f.lastOpts = opts
	f.videos[videoID] = domain.NewVideo(videoID, sourceURL, opts)
	return domain.NewJob(videoID, sourceURL, opts, 3), nil
}

func (f *fakeVideos) QueueStatus() service.QueueStatus {
	return f.status
}

func (f *fakeVideos) Get(_ context.Context, id string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVideos) ListFailed(context.Context) ([]*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Video
	for _, v := range f.videos {
		if v.Status == domain.StatusFailed {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVideos) Counts(context.Context) (map[domain.ProcessingStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.ProcessingStatus]int)
	for _, v := range f.videos {
		counts[v.Status]++
	}
	return counts, nil
}

func (f *fakeVideos) Retry(_ context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v.Status != domain.StatusFailed {
		return nil, domain.ErrNotRetryable
	}
	v.Status = domain.StatusPending
	f.retried = append(f.retried, id)
	return domain.NewJob(id, v.SourceURL, v.Options, 3), nil
}

func (f *fakeVideos) setStatus(id string, status domain.ProcessingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[id].Status = status
}

type fakeAuth struct {
	enabled  bool
	password string
	token    string
	tokenErr error
}

func (a *fakeAuth) Enabled() bool { return a.enabled }

func (a *fakeAuth) ValidatePassword(password string) error {
	if !a.enabled {
		return service.ErrAuthDisabled
	}
	if password == "" {
		return service.ErrInvalidCreds
	}
	if password != a.password {
		return service.ErrWrongPassword
	}
	return nil
}

func (a *fakeAuth) GenerateToken() (string, error) {
	if a.tokenErr != nil {
		return "", a.tokenErr
	}
	return a.token, nil
}

func (a *fakeAuth) ValidateToken(token string) error {
	if !a.enabled {
		return service.ErrAuthDisabled
	}
	if token != a.token {
		return service.ErrInvalidToken
	}
	return nil
}

func failedVideo(id string) *domain.Video {
	v := domain.NewVideo(id, "https://cdn.example.com/"+id+".mp4", domain.ProcessingOptions{})
	v.Status = domain.StatusFailed
	v.ErrorMessage = "probe source: no video stream found"
	v.Attempts = 3
	return v
}
