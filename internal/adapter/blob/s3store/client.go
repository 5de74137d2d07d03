package s3store

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bnema/reel/internal/adapter/blob"
	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
	"github.com/bnema/reel/internal/validation"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

type Options struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	// PublicBaseURL is prefixed to object keys to build artifact URLs. When
	// empty the location reported by S3 is used.
	PublicBaseURL string
}

// Client uploads artifacts to one bucket and downloads source objects from
// any bucket the credentials can read.
type Client struct {
	uploader      uploader
	downloader    downloader
	bucket        string
	publicBaseURL string
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO, localstack and most self-hosted gateways need path style.
			o.UsePathStyle = true
		}
	})

	return &Client{
		uploader:      manager.NewUploader(client),
		downloader:    manager.NewDownloader(client),
		bucket:        opts.Bucket,
		publicBaseURL: opts.PublicBaseURL,
	}, nil
}

func (c *Client) Upload(ctx context.Context, localPath, key string) (domain.UploadResult, error) {
	if err := validation.ValidateKey(key); err != nil {
		return domain.UploadResult{}, fmt.Errorf("upload %q: %w", key, err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("stat artifact: %w", err)
	}

	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(blob.ContentType(key)),
	})
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("put s3://%s/%s: %w", c.bucket, key, err)
	}

	location := out.Location
	if c.publicBaseURL != "" {
		location = blob.PublicURL(c.publicBaseURL, key)
	}

	return domain.UploadResult{
		URL:  location,
		Size: info.Size(),
		ID:   key,
	}, nil
}

// Download writes the object at s3://bucket/key to destPath.
func (c *Client) Download(ctx context.Context, bucket, key, destPath string) (int64, error) {
	file, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}
	defer file.Close()

	n, err := c.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return n, nil
}

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: not an s3 url", domain.ErrInvalidSource)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: s3 url needs a bucket and a key", domain.ErrInvalidSource)
	}
	return bucket, key, nil
}

var _ port.BlobStore = (*Client)(nil)
