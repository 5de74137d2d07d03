package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateSourceURL checks that raw is an absolute http, https or s3 URL.
// Local files are only accepted by the batch command, never through the API.
func ValidateSourceURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSource)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	switch u.Scheme {
	case "http", "https", "s3":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidSource)
	}
	return nil
}
