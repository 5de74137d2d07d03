package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/reel/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	off := false
	opts := domain.ProcessingOptions{
		Renditions:         []string{"480p", "1080p"},
		ThumbnailCount:     3,
		MaxDuration:        600,
		GenerateThumbnails: &off,
		Watermark:          &domain.Watermark{Text: "reel", Position: domain.PositionTopLeft},
		OutputPrefix:       "videos/vid-1",
	}
	video := domain.NewVideo("vid-1", "https://cdn.example.com/in.mp4", opts)
	require.NoError(t, store.Create(ctx, video))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)

	assert.Equal(t, "vid-1", got.ID)
	assert.Equal(t, "https://cdn.example.com/in.mp4", got.SourceURL)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, opts, got.Options)
	assert.Empty(t, got.Formats)
	assert.Nil(t, got.Metadata)
	assert.WithinDuration(t, video.CreatedAt, got.CreatedAt, time.Second)
}

func TestStore_CreateDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "a", domain.ProcessingOptions{})))
	err := store.Create(ctx, domain.NewVideo("vid-1", "b", domain.ProcessingOptions{}))

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "src", domain.ProcessingOptions{})))

	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusProcessing, ""))
	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusPending, "probe: exit status 1"))
	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusProcessing, ""))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Equal(t, 2, got.Attempts, "each move to processing counts an attempt")
	assert.Empty(t, got.ErrorMessage)

	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusFailed, "download: 404"))
	got, err = store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "download: 404", got.ErrorMessage)

	assert.ErrorIs(t, store.UpdateStatus(ctx, "missing", domain.StatusFailed, ""), domain.ErrNotFound)
}

func TestStore_MarkCompleted_RoundTripsManifest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "src", domain.ProcessingOptions{})))
	require.NoError(t, store.UpdateStatus(ctx, "vid-1", domain.StatusPending, "transient"))

	manifest := &domain.ProcessedVideo{
		Duration:     60,
		OriginalSize: 1 << 20,
		Formats: []domain.VideoFormat{
			{Quality: "360p", Resolution: "640x360", Bitrate: "800k", Codec: "h264", URL: "https://blob/360p.mp4", Size: 1000},
			{Quality: "720p", Resolution: "1280x720", Bitrate: "2500k", Codec: "h264", URL: "https://blob/720p.mp4", Size: 3000},
		},
		Thumbnails: []domain.VideoThumbnail{
			{URL: "https://blob/thumb_1.jpg", Timestamp: 10, Width: 320, Height: 180, Size: 42},
		},
		Metadata:       domain.SourceMetadata{Duration: 60, Width: 1920, Height: 1080, FPS: 25, Codec: "h264", Bitrate: "4000000"},
		ProcessingTime: 1234,
	}
	require.NoError(t, store.MarkCompleted(ctx, "vid-1", manifest))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, manifest.Formats, got.Formats)
	assert.Equal(t, manifest.Thumbnails, got.Thumbnails)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, manifest.Metadata, *got.Metadata)
	assert.Equal(t, 60.0, got.Duration)
	assert.Equal(t, int64(1<<20), got.OriginalSize)
	assert.Equal(t, int64(1234), got.ProcessingTime)
	assert.Empty(t, got.ErrorMessage, "completion clears the last error")

	assert.ErrorIs(t, store.MarkCompleted(ctx, "missing", manifest), domain.ErrNotFound)
}

func TestStore_MarkCompleted_EmptyManifest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "src", domain.ProcessingOptions{})))

	require.NoError(t, store.MarkCompleted(ctx, "vid-1", &domain.ProcessedVideo{}))

	got, err := store.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.NotNil(t, got.Formats)
	assert.Empty(t, got.Formats)
	assert.Empty(t, got.Thumbnails)
}

func TestStore_ListByStatusAndStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Create(ctx, domain.NewVideo(id, "src-"+id, domain.ProcessingOptions{})))
	}
	require.NoError(t, store.UpdateStatus(ctx, "b", domain.StatusProcessing, ""))
	require.NoError(t, store.UpdateStatus(ctx, "c", domain.StatusFailed, "boom"))
	require.NoError(t, store.UpdateStatus(ctx, "d", domain.StatusFailed, "boom"))

	pending, err := store.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ID)

	failed, err := store.ListByStatus(ctx, domain.StatusFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	stale, err := store.ListStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "b", stale[0].ID)

	fresh, err := store.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, fresh)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.ProcessingStatus]int{
		domain.StatusPending:    1,
		domain.StatusProcessing: 1,
		domain.StatusFailed:     2,
	}, counts)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, domain.NewVideo("vid-1", "src", domain.ProcessingOptions{})))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "src", got.SourceURL)
}
