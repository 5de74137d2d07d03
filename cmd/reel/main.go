package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bnema/reel/config"
	"github.com/bnema/reel/internal/adapter/blob/local"
	"github.com/bnema/reel/internal/adapter/blob/s3store"
	"github.com/bnema/reel/internal/adapter/engine/ffmpeg"
	"github.com/bnema/reel/internal/adapter/events/redispub"
	"github.com/bnema/reel/internal/adapter/fetch"
	HTTPAdapter "github.com/bnema/reel/internal/adapter/http"
	"github.com/bnema/reel/internal/adapter/storage/jsonfile"
	sqlitestore "github.com/bnema/reel/internal/adapter/storage/sqlite"
	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/infrastructure/logger"
	"github.com/bnema/reel/internal/metrics"
	"github.com/bnema/reel/internal/port"
	"github.com/bnema/reel/internal/service"
)

const usage = `usage:
  reel [serve]
  reel batch [-thumbnails=false] [-renditions=360p,720p] [-prefix=batch] URL...
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn.Printf("%v, using info", err)
	}

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		logger.Setup(os.Stdout, level)
		err = serve(cfg)
	case "batch":
		// stdout carries the manifests
		logger.Setup(os.Stderr, level)
		err = batch(cfg, args, os.Stdout)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error.Printf("%s failed: %v", cmd, err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	logger.Info.Printf("starting reel on port %d, store=%s blobs=%s", cfg.Port, cfg.StoreDriver, cfg.BlobDriver)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	objects, err := newObjectClient(ctx, cfg)
	if err != nil {
		return err
	}
	blobs, blobDir, err := openBlobStore(cfg, objects)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eventBus := service.NewEventBus()
	publishers := service.Publishers{eventBus}
	if cfg.RedisURL != "" {
		redisPub, err := redispub.New(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = redisPub.Close() }()
		publishers = append(publishers, redisPub)
		logger.Info.Printf("forwarding status events to redis %s", logger.RedactURL(cfg.RedisURL))
	}

	pipeline := newPipeline(cfg, objects, blobs, m, false)
	queue := service.NewQueue(pipeline, store, publishers, m, service.QueueConfig{
		Concurrency:    cfg.QueueConcurrency,
		MaxRetries:     cfg.QueueMaxRetries,
		RetryBaseDelay: cfg.QueueRetryBaseDelay,
	})
	videoSvc := service.NewVideoService(store, queue)
	authSvc := service.NewAuthService(cfg.AdminPasswordHash, cfg.AuthSecret)
	if !authSvc.Enabled() {
		logger.Warn.Printf("ADMIN_PASSWORD_HASH not set, admin endpoints are locked")
	}

	if n, err := videoSvc.Reconcile(ctx, cfg.StaleProcessingAfter); err != nil {
		logger.Error.Printf("startup reconciliation failed after %d videos: %v", n, err)
	}

	server := HTTPAdapter.NewServer(HTTPAdapter.ServerConfig{
		Videos:      videoSvc,
		Auth:        authSvc,
		Events:      eventBus,
		Metrics:     m.Handler(),
		BlobDir:     blobDir,
		CSRFSecret:  cfg.AuthSecret,
		BehindProxy: cfg.BehindProxy,
	})
	go server.RunMaintenance(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info.Printf("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}

	// Let in-flight jobs finish; pending ones are picked up on the next start
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("queue shutdown: %v", err)
	}

	logger.Info.Printf("shutdown complete")
	return nil
}

func batch(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	thumbnails := fs.Bool("thumbnails", true, "generate thumbnails")
	renditions := fs.String("renditions", strings.Join(domain.DefaultRenditions, ","), "comma-separated rendition qualities")
	thumbCount := fs.Int("thumbnail-count", domain.DefaultThumbnailCount, "thumbnails per video")
	prefix := fs.String("prefix", "batch", "output key prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sources := fs.Args()
	if len(sources) == 0 {
		return fmt.Errorf("no sources given\n%s", usage)
	}

	opts := domain.ProcessingOptions{
		Renditions:         splitList(*renditions),
		ThumbnailCount:     *thumbCount,
		GenerateThumbnails: thumbnails,
		OutputPrefix:       *prefix,
	}
	for _, q := range opts.Renditions {
		if !domain.IsKnownQuality(q) {
			return fmt.Errorf("unknown rendition %q", q)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objects, err := newObjectClient(ctx, cfg)
	if err != nil {
		return err
	}
	blobs, _, err := openBlobStore(cfg, objects)
	if err != nil {
		return err
	}

	runner := service.NewBatchRunner(newPipeline(cfg, objects, blobs, nil, true), cfg.BatchChunkSize)
	results := runner.Process(ctx, sources, opts)
	logger.Info.Printf("batch finished: %d of %d sources processed", len(results), len(sources))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write manifests: %w", err)
	}
	if len(results) < len(sources) {
		return fmt.Errorf("%d of %d sources failed", len(sources)-len(results), len(sources))
	}
	return nil
}

func openStore(cfg *config.Config) (port.VideoStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreJSONFile:
		store, err := jsonfile.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open json store: %w", err)
		}
		return store, func() {}, nil
	default:
		store, err := sqlitestore.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
}

// newObjectClient is only fatal when artifacts go to S3; otherwise s3://
// sources are simply rejected.
func newObjectClient(ctx context.Context, cfg *config.Config) (*s3store.Client, error) {
	client, err := s3store.NewClient(ctx, s3store.Options{
		Bucket:          cfg.S3BucketName,
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		AccessKeySecret: cfg.S3AccessKeySecret,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		if cfg.BlobDriver == config.BlobS3 {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		logger.Warn.Printf("s3 client unavailable, s3:// sources disabled: %v", err)
		return nil, nil
	}
	return client, nil
}

// openBlobStore also returns the directory to serve under /blobs/, empty when
// artifacts live in S3.
func openBlobStore(cfg *config.Config, objects *s3store.Client) (port.BlobStore, string, error) {
	if cfg.BlobDriver == config.BlobS3 {
		return objects, "", nil
	}
	store, err := local.NewStore(cfg.BlobDir, cfg.BlobBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.Dir(), nil
}

func newPipeline(cfg *config.Config, objects *s3store.Client, blobs port.BlobStore, m *metrics.Metrics, localFiles bool) *service.Pipeline {
	fetchOpts := []fetch.Option{}
	if objects != nil {
		fetchOpts = append(fetchOpts, fetch.WithObjectDownloader(objects))
	}
	if localFiles {
		fetchOpts = append(fetchOpts, fetch.WithLocalFiles())
	}

	return service.NewPipeline(
		fetch.New(fetchOpts...),
		ffmpeg.NewEngine(cfg.FFmpegPath, cfg.FFprobePath),
		blobs,
		cfg.ScratchDir,
		cfg.StageTimeout,
		m,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
