package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/reel/internal/domain"
)

func TestNewStore(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		store, err := NewStore(t.TempDir())

		assert.NoError(t, err)
		assert.NotNil(t, store)
		assert.NotNil(t, store.videos)
	})

	t.Run("loads existing data from file", func(t *testing.T) {
		tempDir := t.TempDir()

		videos := []*domain.Video{
			{ID: "test1", SourceURL: "https://a/1.mp4", Status: domain.StatusFailed},
			{ID: "test2", SourceURL: "https://a/2.mp4", Status: domain.StatusCompleted},
		}
		data, _ := json.MarshalIndent(videos, "", "  ")
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "videos.json"), data, 0600))

		store, err := NewStore(tempDir)

		assert.NoError(t, err)
		assert.Len(t, store.videos, 2)
		assert.Equal(t, "https://a/1.mp4", store.videos["test1"].SourceURL)
		assert.Equal(t, domain.StatusCompleted, store.videos["test2"].Status)
	})

	t.Run("returns error for invalid JSON", func(t *testing.T) {
		tempDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "videos.json"), []byte("invalid json"), 0600))

		store, err := NewStore(tempDir)

		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("empty file is an empty store", func(t *testing.T) {
		tempDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "videos.json"), nil, 0600))

		store, err := NewStore(tempDir)

		require.NoError(t, err)
		assert.Empty(t, store.videos)
	})
}

func TestStoreCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("persists to file", func(t *testing.T) {
		tempDir := t.TempDir()
		store, _ := NewStore(tempDir)

		video := domain.NewVideo("vid-1", "https://a/in.mp4", domain.ProcessingOptions{ThumbnailCount: 2})
		require.NoError(t, store.Create(ctx, video))

		reopened, err := NewStore(tempDir)
		require.NoError(t, err)
		got, err := reopened.Get(ctx, "vid-1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Options.ThumbnailCount)
		assert.Equal(t, domain.StatusPending, got.Status)

		_, err = os.Stat(filepath.Join(tempDir, "videos.json.tmp"))
		assert.True(t, os.IsNotExist(err), "temp file is renamed away")
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		store, _ := NewStore(t.TempDir())

		require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "a", domain.ProcessingOptions{})))
		err := store.Create(ctx, domain.NewVideo("vid-1", "b", domain.ProcessingOptions{}))

		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("missing video", func(t *testing.T) {
		store, _ := NewStore(t.TempDir())

		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returns a copy", func(t *testing.T) {
		store, _ := NewStore(t.TempDir())
		require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "a", domain.ProcessingOptions{Renditions: []string{"360p"}})))

		got, err := store.Get(ctx, "vid-1")
		require.NoError(t, err)
		got.Status = domain.StatusFailed
		got.Options.Renditions[0] = "1080p"

		again, err := store.Get(ctx, "vid-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, again.Status)
		assert.Equal(t, []string{"360p"}, again.Options.Renditions)
	})
}

func TestStoreUpdateStatus(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())
	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "a", domain.ProcessingOptions{})))

	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusProcessing, ""))
	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusPending, "exit status 1"))

	got, _ := store.Get(ctx, "vid-1")
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "exit status 1", got.ErrorMessage)
	assert.Equal(t, 1, got.Attempts)

	assert.ErrorIs(t, store.UpdateStatus(ctx, "missing", domain.StatusFailed, ""), domain.ErrNotFound)
}

func TestStoreMarkCompleted(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())
	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "a", domain.ProcessingOptions{})))

	manifest := &domain.ProcessedVideo{
		Duration: 12,
		Formats:  []domain.VideoFormat{{Quality: "360p", URL: "https://blob/360p.mp4", Size: 10}},
		Metadata: domain.SourceMetadata{Width: 640, Height: 360},
	}
	require.NoError(t, store.MarkCompleted(ctx, "vid-1", manifest))

	got, _ := store.Get(ctx, "vid-1")
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, manifest.Formats, got.Formats)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, 360, got.Metadata.Height)

	assert.ErrorIs(t, store.MarkCompleted(ctx, "missing", manifest), domain.ErrNotFound)
}

func TestStoreListings(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		v := domain.NewVideo(id, "src", domain.ProcessingOptions{})
		v.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(ctx, v))
	}
	require.NoError(t, store.UpdateStatus(ctx, "c", domain.StatusProcessing, ""))

	pending, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID, "oldest first")
	assert.Equal(t, "b", pending[1].ID)

	stale, err := store.ListStale(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "c", stale[0].ID)

	stale, err = store.ListStale(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StatusPending])
	assert.Equal(t, 1, counts[domain.StatusProcessing])
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("multiple goroutines can read simultaneously", func(t *testing.T) {
		store, _ := NewStore(t.TempDir())
		require.NoError(t, store.Create(ctx, domain.NewVideo("vid", "src", domain.ProcessingOptions{})))

		var wg sync.WaitGroup
		errs := make(chan error, 50)

		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Get(ctx, "vid")
				errs <- err
			}()
		}

		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("writes are mutually exclusive", func(t *testing.T) {
		store, _ := NewStore(t.TempDir())

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("vid-%d", i)
				_ = store.Create(ctx, domain.NewVideo(id, "src", domain.ProcessingOptions{}))
				_ = store.UpdateStatus(ctx, id, domain.StatusProcessing, "")
				_, _ = store.ListStale(ctx, time.Now())
			}()
		}
		wg.Wait()

		assert.Len(t, store.videos, 10)
	})
}
