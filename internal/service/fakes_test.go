package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

// mp4Header is enough for the source sniffer to see an MP4 container.
var mp4Header = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2avc1mp41")

type fakeFetcher struct {
	mu      sync.Mutex
	data    []byte
	err     error
	errFor  map[string]error
	fetched []string
	dests   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, sourceURL, destPath string) (int64, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, sourceURL)
	f.dests = append(f.dests, destPath)
	err := f.err
	if e, ok := f.errFor[sourceURL]; ok {
		err = e
	}
	f.mu.Unlock()

	if err != nil {
		return 0, err
	}
	data := f.data
	if data == nil {
		data = mp4Header
	}
	return int64(len(data)), os.WriteFile(destPath, data, 0o600)
}

func (f *fakeFetcher) scratchDirs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	dirs := make([]string, 0, len(f.dests))
	for _, d := range f.dests {
		dirs = append(dirs, filepath.Dir(d))
	}
	return dirs
}

type fakeEngine struct {
	mu             sync.Mutex
	probe          *domain.ProbeResult
	probeErr       error
	transcodeErr   map[string]error
	frameErr       map[float64]error
	transcodes     []domain.TranscodeRequest
	frames         []domain.FrameRequest
	transcodeDelay time.Duration
}

func probeOf(width, height int, duration string) *domain.ProbeResult {
	return &domain.ProbeResult{
		Format: domain.ProbeFormat{Duration: duration, BitRate: "3000000"},
		Streams: []domain.ProbeStream{
			{CodecType: "video", CodecName: "h264", Width: width, Height: height, RFrameRate: "30/1"},
			{CodecType: "audio", CodecName: "aac"},
		},
	}
}

func (e *fakeEngine) Probe(_ context.Context, _ string) (*domain.ProbeResult, error) {
	if e.probeErr != nil {
		return nil, e.probeErr
	}
	if e.probe == nil {
		return probeOf(1920, 1080, "60.0"), nil
	}
	return e.probe, nil
}

func (e *fakeEngine) Transcode(ctx context.Context, req domain.TranscodeRequest) error {
	e.mu.Lock()
	e.transcodes = append(e.transcodes, req)
	err := e.transcodeErr[req.Rendition.Quality]
	delay := e.transcodeDelay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return os.WriteFile(req.OutputPath, []byte("encoded "+req.Rendition.Quality), 0o600)
}

func (e *fakeEngine) ExtractFrame(_ context.Context, req domain.FrameRequest) error {
	e.mu.Lock()
	e.frames = append(e.frames, req)
	err := e.frameErr[req.Timestamp]
	e.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(req.OutputPath, []byte("jpeg"), 0o600)
}

// fakeBlobs stores nothing and reports the size of the local file.
type fakeBlobs struct {
	mu     sync.Mutex
	keys   []string
	errFor map[string]error
}

func (b *fakeBlobs) Upload(_ context.Context, localPath, key string) (domain.UploadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	if err := b.errFor[key]; err != nil {
		return domain.UploadResult{}, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return domain.UploadResult{}, err
	}
	return domain.UploadResult{URL: "https://cdn.test/" + key, Size: info.Size(), ID: key}, nil
}

// memStore is an in-memory VideoStore that also keeps the status history of
// every video.
type memStore struct {
	mu      sync.Mutex
	videos  map[string]*domain.Video
	history map[string][]domain.ProcessingStatus
}

func newMemStore() *memStore {
	return &memStore{
		videos:  make(map[string]*domain.Video),
		history: make(map[string][]domain.ProcessingStatus),
	}
}

func (s *memStore) Create(_ context.Context, v *domain.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *v
	s.videos[v.ID] = &cp
	s.history[v.ID] = append(s.history[v.ID], v.Status)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status domain.ProcessingStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return domain.ErrNotFound
	}
	if status == domain.StatusProcessing {
		v.MarkProcessing()
	} else {
		v.Status = status
		v.UpdatedAt = time.Now()
	}
	v.ErrorMessage = errMsg
	s.history[id] = append(s.history[id], status)
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id string, result *domain.ProcessedVideo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.MarkCompleted(result)
	s.history[id] = append(s.history[id], domain.StatusCompleted)
	return nil
}

func (s *memStore) ListByStatus(_ context.Context, status domain.ProcessingStatus) ([]*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Video
	for _, v := range s.videos {
		if v.Status == status {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ListStale(_ context.Context, olderThan time.Time) ([]*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Video
	for _, v := range s.videos {
		if v.Status == domain.StatusProcessing && v.UpdatedAt.Before(olderThan) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) CountByStatus(_ context.Context) (map[domain.ProcessingStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.ProcessingStatus]int)
	for _, v := range s.videos {
		counts[v.Status]++
	}
	return counts, nil
}

func (s *memStore) statusOf(id string) domain.ProcessingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		return v.Status
	}
	return ""
}

func (s *memStore) historyOf(id string) []domain.ProcessingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProcessingStatus(nil), s.history[id]...)
}

// scriptedProcessor returns the next scripted error for a source on each
// call and tracks how many calls overlap.
type scriptedProcessor struct {
	mu        sync.Mutex
	errs      map[string][]error
	calls     []string
	running   int
	maxActive int
	hold      time.Duration
	release   chan struct{}
}

var errTransient = errors.New("source temporarily unavailable")

func (p *scriptedProcessor) ProcessVideo(ctx context.Context, sourceURL string, _ domain.ProcessingOptions) (*domain.ProcessedVideo, error) {
	p.mu.Lock()
	p.calls = append(p.calls, sourceURL)
	p.running++
	p.maxActive = max(p.maxActive, p.running)
	var err error
	if script := p.errs[sourceURL]; len(script) > 0 {
		err = script[0]
		p.errs[sourceURL] = script[1:]
	}
	release := p.release
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.hold > 0 {
		time.Sleep(p.hold)
	}
	if err != nil {
		return nil, err
	}
	return &domain.ProcessedVideo{
		Duration: 60,
		Formats: []domain.VideoFormat{
			{Quality: "360p", URL: "https://cdn.test/" + sourceURL + "/360p.mp4", Size: 10},
		},
		Thumbnails: []domain.VideoThumbnail{},
	}, nil
}

func (p *scriptedProcessor) callsFor(sourceURL string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == sourceURL {
			n++
		}
	}
	return n
}

func (p *scriptedProcessor) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *scriptedProcessor) peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

var (
	_ port.SourceFetcher = (*fakeFetcher)(nil)
	_ port.MediaEngine   = (*fakeEngine)(nil)
	_ port.BlobStore     = (*fakeBlobs)(nil)
	_ port.VideoStore    = (*memStore)(nil)
	_ Processor          = (*scriptedProcessor)(nil)
)
