package validation

import (
	"errors"
	"path"
	"strings"
	"unicode/utf8"
)

// maxSegmentLength is the maximum length of one key segment (common filesystem limit).
const maxSegmentLength = 255

var (
	ErrEmptyKey   = errors.New("object key is empty")
	ErrInvalidKey = errors.New("object key is invalid")
)

// dangerousChars contains characters that must be replaced in key segments.
var dangerousChars = map[rune]bool{
	'"':  true,
	'\\': true,
	'/':  true,
	':':  true,
	'?':  true,
	'#':  true,
	'\n': true,
	'\r': true,
}

// SanitizeKeySegment makes name safe to use as one segment of a blob key:
// separators, quotes and control characters become underscores, dot-only
// names are refused and the result is truncated to 255 bytes keeping the
// extension. Empty input yields "file".
func SanitizeKeySegment(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		if shouldReplace(r) {
			sb.WriteRune('_')
		} else {
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())

	if result == "" || isOnly(result, '_') || isOnly(result, '.') {
		return "file"
	}

	if len(result) > maxSegmentLength {
		result = truncatePreservingExtension(result)
	}

	return result
}

// JoinKey sanitizes every segment and joins them with "/". Segments that
// already contain "/" are split first, so a prefix like "videos/abc" is kept
// as two segments.
func JoinKey(segments ...string) string {
	var parts []string
	for _, seg := range segments {
		for _, p := range strings.Split(seg, "/") {
			if p == "" {
				continue
			}
			parts = append(parts, SanitizeKeySegment(p))
		}
	}
	return strings.Join(parts, "/")
}

// ValidateKey rejects keys that could escape a storage root.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.ContainsRune(key, 0) || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	return nil
}

func shouldReplace(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	return dangerousChars[r]
}

func isOnly(s string, c rune) bool {
	for _, r := range s {
		if r != c {
			return false
		}
	}
	return true
}

// truncatePreservingExtension truncates a segment to maxSegmentLength while
// preserving the extension if possible.
func truncatePreservingExtension(name string) string {
	ext := path.Ext(name)
	extLen := len(ext)

	if extLen == 0 || extLen >= maxSegmentLength {
		return truncateToBytes(name, maxSegmentLength)
	}

	baseName := name[:len(name)-extLen]
	return truncateToBytes(baseName, maxSegmentLength-extLen) + ext
}

// truncateToBytes truncates a UTF-8 string to at most maxBytes bytes without
// cutting a multi-byte character.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
