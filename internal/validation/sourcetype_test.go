package validation

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/reel/internal/domain"
)

var (
	mp4Magic  = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}
	movMagic  = []byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}
	m4aMagic  = []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '}
	webmMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
	aviMagic  = []byte{'R', 'I', 'F', 'F', 0x00, 0x00, 0x00, 0x00, 'A', 'V', 'I', ' '}
	flvMagic  = []byte{'F', 'L', 'V', 0x01, 0x05}
	mpegPS    = []byte{0x00, 0x00, 0x01, 0xBA, 0x44}
	asfMagic  = []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}
	oggMagic  = []byte{'O', 'g', 'g', 'S', 0x00, 0x02}

	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	mp3ID3    = []byte{'I', 'D', '3', 0x04, 0x00, 0x00}
	mp3Magic  = []byte{0xFF, 0xFB, 0x90, 0x00}
	wavMagic  = []byte{'R', 'I', 'F', 'F', 0x00, 0x00, 0x00, 0x00, 'W', 'A', 'V', 'E'}
	flacMagic = []byte{'f', 'L', 'a', 'C'}
	htmlPage  = []byte("<!DOCTYPE html><html><body>404 Not Found</body></html>")
	jsonBody  = []byte(`{"error":"AccessDenied"}`)
)

// padBytes pads the magic bytes to ensure enough data for detection
func padBytes(magic []byte, size int) []byte {
	if len(magic) >= size {
		return magic
	}
	result := make([]byte, size)
	copy(result, magic)
	return result
}

func mpegTS() []byte {
	buf := make([]byte, 2*mpegTSPacketSize)
	buf[0] = 0x47
	buf[mpegTSPacketSize] = 0x47
	return buf
}

func TestSniffSource_VideoAccepted(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantMIME string
	}{
		{"MP4", padBytes(mp4Magic, 512), "video/mp4"},
		{"QuickTime", padBytes(movMagic, 512), "video/quicktime"},
		{"WebM", padBytes(webmMagic, 512), "video/webm"},
		{"AVI", padBytes(aviMagic, 512), "video/x-msvideo"},
		{"FLV", padBytes(flvMagic, 512), "video/x-flv"},
		{"MPEG-PS", padBytes(mpegPS, 512), "video/mpeg"},
		{"MPEG-TS", mpegTS(), "video/mp2t"},
		{"ASF", padBytes(asfMagic, 512), "video/x-ms-asf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mimeType, ok, err := SniffSource(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.True(t, ok, "%s should be accepted", tt.name)
			assert.Equal(t, tt.wantMIME, mimeType)
		})
	}
}

func TestSniffSource_PassthroughContainers(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Ogg", padBytes(oggMagic, 512)},
		{"unknown binary", padBytes([]byte{0x00, 0x00, 0x00, 0x01, 0x67}, 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := SniffSource(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.True(t, ok, "left for ffprobe to decide")
		})
	}
}

func TestSniffSource_NonVideoRejected(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"HTML error page", htmlPage},
		{"JSON error body", jsonBody},
		{"JPEG", padBytes(jpegMagic, 512)},
		{"PNG", padBytes(pngMagic, 512)},
		{"MP3 with ID3", padBytes(mp3ID3, 512)},
		{"MP3 without ID3", padBytes(mp3Magic, 512)},
		{"WAV", padBytes(wavMagic, 512)},
		{"FLAC", padBytes(flacMagic, 512)},
		{"M4A", padBytes(m4aMagic, 512)},
		{"empty", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := SniffSource(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.False(t, ok, "%s should be rejected", tt.name)
		})
	}
}

func TestSniffSource_ReaderPositionReset(t *testing.T) {
	data := padBytes(mp4Magic, 1024)
	reader := bytes.NewReader(data)

	_, _, err := SniffSource(reader)
	require.NoError(t, err)

	pos, err := reader.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	readBack, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, readBack)
}

func TestSniffSource_SmallFile(t *testing.T) {
	_, ok, err := SniffSource(bytes.NewReader(webmMagic))

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckSourceFile(t *testing.T) {
	dir := t.TempDir()

	video := filepath.Join(dir, "video.bin")
	require.NoError(t, os.WriteFile(video, padBytes(mp4Magic, 512), 0o644))
	assert.NoError(t, CheckSourceFile(video))

	page := filepath.Join(dir, "page.bin")
	require.NoError(t, os.WriteFile(page, htmlPage, 0o644))
	err := CheckSourceFile(page)
	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
	assert.Contains(t, err.Error(), "text/html")

	err = CheckSourceFile(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnsupportedSource)
}
