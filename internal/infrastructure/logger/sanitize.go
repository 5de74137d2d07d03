package logger

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// SanitizeForLog escapes control characters so that user-supplied values such
// as video IDs or source URLs cannot forge log lines or drive a terminal.
// Printable Unicode is kept as is.
func SanitizeForLog(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			b.WriteString(`\x`)
			if r < 0x10 {
				b.WriteByte('0')
			}
			b.WriteString(strconv.FormatInt(int64(r), 16))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RedactURL drops credentials, query string and fragment from a URL so that
// signed links never end up in logs. Unparseable input is sanitized as is.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SanitizeForLog(raw)
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return SanitizeForLog(u.String())
}
