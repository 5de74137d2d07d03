package jsonfile

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

// Store keeps every video in memory and rewrites a single JSON file on each
// change. Meant for development and single-user setups.
type Store struct {
	mu     sync.RWMutex
	path   string
	videos map[string]*domain.Video
}

func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "videos.json")

	store := &Store{
		path:   path,
		videos: make(map[string]*domain.Video),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return store, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	var videoList []*domain.Video
	if err := json.Unmarshal(data, &videoList); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	for _, v := range videoList {
		s.videos[v.ID] = v
	}

	return nil
}

// save must be called with the write lock held.
func (s *Store) save() error {
	tmpPath := s.path + ".tmp"

	videoList := make([]*domain.Video, 0, len(s.videos))
	for _, v := range s.videos {
		videoList = append(videoList, v)
	}
	sortByCreation(videoList)

	data, err := json.MarshalIndent(videoList, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

func (s *Store) Create(_ context.Context, v *domain.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.videos[v.ID]; exists {
		return fmt.Errorf("video %s: %w", v.ID, domain.ErrAlreadyExists)
	}

	s.videos[v.ID] = clone(v)
	return s.save()
}

func (s *Store) Get(_ context.Context, id string) (*domain.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return clone(v), nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status domain.ProcessingStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return domain.ErrNotFound
	}

	if status == domain.StatusProcessing {
		v.Attempts++
	}
	v.Status = status
	v.ErrorMessage = errMsg
	v.UpdatedAt = time.Now().UTC()

	return s.save()
}

func (s *Store) MarkCompleted(_ context.Context, id string, result *domain.ProcessedVideo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return domain.ErrNotFound
	}

	v.MarkCompleted(result)
	v.UpdatedAt = v.UpdatedAt.UTC()

	return s.save()
}

func (s *Store) ListByStatus(_ context.Context, status domain.ProcessingStatus) ([]*domain.Video, error) {
	return s.filter(func(v *domain.Video) bool {
		return v.Status == status
	}), nil
}

func (s *Store) ListStale(_ context.Context, olderThan time.Time) ([]*domain.Video, error) {
	return s.filter(func(v *domain.Video) bool {
		return v.Status == domain.StatusProcessing && v.UpdatedAt.Before(olderThan)
	}), nil
}

func (s *Store) CountByStatus(_ context.Context) (map[domain.ProcessingStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.ProcessingStatus]int)
	for _, v := range s.videos {
		counts[v.Status]++
	}
	return counts, nil
}

func (s *Store) filter(keep func(*domain.Video) bool) []*domain.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Video
	for _, v := range s.videos {
		if keep(v) {
			result = append(result, clone(v))
		}
	}
	sortByCreation(result)
	return result
}

func sortByCreation(videos []*domain.Video) {
	slices.SortFunc(videos, func(a, b *domain.Video) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// clone copies v so callers never share memory with the cache.
func clone(v *domain.Video) *domain.Video {
	c := *v
	c.Formats = slices.Clone(v.Formats)
	c.Thumbnails = slices.Clone(v.Thumbnails)
	c.Options.Renditions = slices.Clone(v.Options.Renditions)
	if v.Metadata != nil {
		meta := *v.Metadata
		c.Metadata = &meta
	}
	if v.Options.Watermark != nil {
		wm := *v.Options.Watermark
		c.Options.Watermark = &wm
	}
	if v.Options.GenerateThumbnails != nil {
		gen := *v.Options.GenerateThumbnails
		c.Options.GenerateThumbnails = &gen
	}
	return &c
}

var _ port.VideoStore = (*Store)(nil)
