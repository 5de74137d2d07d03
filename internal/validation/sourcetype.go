// Package validation inspects downloaded sources and blob keys before they
// reach ffmpeg or the blob store.
package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/bnema/reel/internal/domain"
)

// magicBytesBufferSize is the number of bytes to read for content type detection.
const magicBytesBufferSize = 512

// mpegTSPacketSize is the distance between two MPEG-TS sync bytes.
const mpegTSPacketSize = 188

// passthroughMIMETypes are container types that may or may not hold video.
// ffprobe gets the final word on them.
var passthroughMIMETypes = map[string]bool{
	"application/octet-stream": true,
	"application/ogg":          true,
}

// SniffSource detects the content type of a downloaded source by reading its
// magic bytes and reports whether it may carry video. Content recognised as
// something else (HTML error pages, images, audio, archives) is refused;
// unrecognised binary content is let through.
//
// The reader is rewound to the beginning before returning.
func SniffSource(reader io.ReadSeeker) (mimeType string, maybeVideo bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mimeType = detectCustomMagicBytes(buf)
	if mimeType == "" {
		mimeType = http.DetectContentType(buf)
	}

	return mimeType, mayCarryVideo(mimeType), nil
}

// CheckSourceFile sniffs the file at path and returns an error wrapping
// domain.ErrUnsupportedSource when it is not a video.
func CheckSourceFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	mimeType, ok, err := SniffSource(f)
	if err != nil {
		return fmt.Errorf("sniff source: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: detected %s", domain.ErrUnsupportedSource, mimeType)
	}
	return nil
}

func mayCarryVideo(mimeType string) bool {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base = mimeType
	}
	return strings.HasPrefix(base, "video/") || passthroughMIMETypes[base]
}

// detectCustomMagicBytes handles containers http.DetectContentType does not
// know or gets wrong.
func detectCustomMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// WebM/Matroska: EBML header
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return "video/webm"
	}

	// FLAC
	if string(buf[:4]) == "fLaC" {
		return "audio/flac"
	}

	// MP3 frame sync without ID3
	if buf[0] == 0xFF {
		switch buf[1] & 0xFE {
		case 0xFA, 0xF2:
			return "audio/mpeg"
		}
	}

	if string(buf[:3]) == "ID3" {
		return "audio/mpeg"
	}

	if string(buf[:3]) == "FLV" {
		return "video/x-flv"
	}

	// MPEG program stream pack header
	if buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0x01 && buf[3] == 0xBA {
		return "video/mpeg"
	}

	// ASF (wmv)
	if buf[0] == 0x30 && buf[1] == 0x26 && buf[2] == 0xB2 && buf[3] == 0x75 {
		return "video/x-ms-asf"
	}

	// MPEG transport stream: sync byte repeated every packet
	if buf[0] == 0x47 && len(buf) > mpegTSPacketSize && buf[mpegTSPacketSize] == 0x47 {
		return "video/mp2t"
	}

	if len(buf) >= 12 && string(buf[:4]) == "RIFF" {
		switch string(buf[8:12]) {
		case "WEBP":
			return "image/webp"
		case "AVI ":
			return "video/x-msvideo"
		case "WAVE":
			return "audio/wav"
		}
	}

	// ISO base media: [4 bytes size]["ftyp"][brand]
	if len(buf) >= 12 && string(buf[4:8]) == "ftyp" {
		switch string(buf[8:12]) {
		case "M4A ", "M4B ", "M4P ":
			return "audio/mp4"
		case "qt  ":
			return "video/quicktime"
		case "3gp4", "3gp5", "3gp6", "3g2a":
			return "video/3gpp"
		case "avif", "avis", "heic", "heix", "mif1":
			return "image/avif"
		default:
			return "video/mp4"
		}
	}

	return ""
}
