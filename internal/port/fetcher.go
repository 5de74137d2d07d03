package port

import "context"

// SourceFetcher copies the resource at sourceURL to destPath and returns the
// number of bytes written.
type SourceFetcher interface {
	Fetch(ctx context.Context, sourceURL, destPath string) (int64, error)
}
