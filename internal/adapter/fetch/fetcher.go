package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/reel/internal/adapter/blob/s3store"
	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

var ErrTooLarge = errors.New("source exceeds size limit")

// ObjectDownloader reads objects addressed as s3://bucket/key.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket, key, destPath string) (int64, error)
}

// Fetcher copies sources to local disk. It understands http(s) URLs, s3://
// URLs when an ObjectDownloader is configured, and local paths when enabled.
type Fetcher struct {
	client     *http.Client
	objects    ObjectDownloader
	maxBytes   int64
	localFiles bool
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

func WithObjectDownloader(d ObjectDownloader) Option {
	return func(f *Fetcher) {
		f.objects = d
	}
}

// WithMaxBytes caps the size of a downloaded source. Zero means no limit.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithLocalFiles lets plain paths and file:// URLs through.
func WithLocalFiles() Option {
	return func(f *Fetcher) {
		f.localFiles = true
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: DefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, sourceURL, destPath string) (int64, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String(), destPath)
	case "s3":
		if f.objects == nil {
			return 0, fmt.Errorf("%w: s3 sources are not configured", domain.ErrInvalidSource)
		}
		bucket, key, err := s3store.ParseURL(sourceURL)
		if err != nil {
			return 0, err
		}
		n, err := f.objects.Download(ctx, bucket, key, destPath)
		if err != nil {
			return 0, err
		}
		return n, f.checkSize(n)
	case "file", "":
		if !f.localFiles {
			return 0, fmt.Errorf("%w: local files are not accepted", domain.ErrInvalidSource)
		}
		path := sourceURL
		if u.Scheme == "file" {
			path = u.Path
		}
		return f.copyLocal(ctx, path, destPath)
	default:
		return 0, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidSource, u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, sourceURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "reel/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return 0, fmt.Errorf("%w: %d bytes announced", ErrTooLarge, resp.ContentLength)
	}

	return f.writeFile(resp.Body, destPath)
}

func (f *Fetcher) copyLocal(ctx context.Context, path, destPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("open local source: %w", err)
	}
	defer src.Close()

	return f.writeFile(src, destPath)
}

func (f *Fetcher) writeFile(r io.Reader, destPath string) (int64, error) {
	dest, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}
	defer dest.Close()

	if f.maxBytes > 0 {
		r = io.LimitReader(r, f.maxBytes+1)
	}

	n, err := io.Copy(dest, r)
	if err != nil {
		return n, fmt.Errorf("write source: %w", err)
	}
	if err := f.checkSize(n); err != nil {
		return n, err
	}
	return n, dest.Sync()
}

func (f *Fetcher) checkSize(n int64) error {
	if f.maxBytes > 0 && n > f.maxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return nil
}

// DefaultHTTPClient has no overall deadline since sources can be large; the
// caller's context bounds the download instead.
func DefaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second
	return &http.Client{Transport: transport}
}

var _ port.SourceFetcher = (*Fetcher)(nil)
