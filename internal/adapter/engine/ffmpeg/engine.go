package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains null byte")
)

const (
	audioBitrate   = "128k"
	encoderPreset  = "fast"
	constantRate   = 23
	watermarkInset = 10
	stderrTailSize = 512
)

// Runner executes a binary and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type Engine struct {
	ffmpegPath  string
	ffprobePath string
	run         Runner
}

type Option func(*Engine)

// WithRunner replaces process execution, mostly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		e.run = r
	}
}

func NewEngine(ffmpegPath, ffprobePath string, opts ...Option) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	e := &Engine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		run:         execRunner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Probe(ctx context.Context, inputPath string) (*domain.ProbeResult, error) {
	if err := validatePath(inputPath); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
	output, err := e.run(ctx, e.ffprobePath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result domain.ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	result.RawJSON = string(output)

	return &result, nil
}

func (e *Engine) Transcode(ctx context.Context, req domain.TranscodeRequest) error {
	args, err := transcodeArgs(req)
	if err != nil {
		return err
	}
	if _, err := e.run(ctx, e.ffmpegPath, args...); err != nil {
		return fmt.Errorf("transcode %s: %w", req.Rendition.Quality, err)
	}
	return nil
}

func (e *Engine) ExtractFrame(ctx context.Context, req domain.FrameRequest) error {
	args, err := frameArgs(req)
	if err != nil {
		return err
	}
	if _, err := e.run(ctx, e.ffmpegPath, args...); err != nil {
		return fmt.Errorf("extract frame at %.3fs: %w", req.Timestamp, err)
	}
	return nil
}

func transcodeArgs(req domain.TranscodeRequest) ([]string, error) {
	if err := validatePath(req.InputPath); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(req.OutputPath); err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}

	bitrate := req.Rendition.Bitrate
	if bitrate == "" {
		bitrate = "0"
	}

	out := ffmpeggo.KwArgs{
		"c:v":      encoderFor(req.Rendition.Codec),
		"b:v":      bitrate,
		"vf":       videoFilter(req),
		"preset":   encoderPreset,
		"crf":      constantRate,
		"pix_fmt":  "yuv420p",
		"c:a":      "aac",
		"b:a":      audioBitrate,
		"movflags": "+faststart",
		"f":        "mp4",
	}

	return ffmpeggo.Input(req.InputPath).
		Output(req.OutputPath, out).
		OverWriteOutput().
		GetArgs(), nil
}

func frameArgs(req domain.FrameRequest) ([]string, error) {
	if err := validatePath(req.InputPath); err != nil {
		return nil, fmt.Errorf("invalid input path: %w", err)
	}
	if err := validatePath(req.OutputPath); err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		width, height = domain.ThumbnailWidth, domain.ThumbnailHeight
	}

	canvas := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		width, height, width, height,
	)

	return ffmpeggo.Input(req.InputPath, ffmpeggo.KwArgs{"ss": fmt.Sprintf("%.3f", req.Timestamp)}).
		Output(req.OutputPath, ffmpeggo.KwArgs{
			"vframes": 1,
			"vf":      canvas,
			"q:v":     2,
			"f":       "image2",
		}).
		OverWriteOutput().
		GetArgs(), nil
}

// videoFilter builds the -vf value: an aspect preserving scale into the
// rendition box, rounded to even dimensions, followed by the watermark.
func videoFilter(req domain.TranscodeRequest) string {
	scale := "scale=trunc(iw/2)*2:trunc(ih/2)*2"
	if r := req.Rendition; r.Width > 0 && r.Height > 0 {
		scale = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,%s", r.Width, r.Height, scale)
	}

	wm := req.Watermark
	switch {
	case wm.IsText():
		x, y := textPosition(wm.Position)
		return fmt.Sprintf(
			"%s,drawtext=text=%s:expansion=none:fontcolor=white@0.8:fontsize=24:box=1:boxcolor=black@0.4:boxborderw=6:x=%s:y=%s",
			scale, quoteFilterValue(wm.Text), x, y,
		)
	case wm.IsImage() && req.WatermarkImagePath != "":
		x, y := overlayPosition(wm.Position)
		return fmt.Sprintf(
			"%s[base];movie=%s[wm];[base][wm]overlay=%s:%s",
			scale, quoteFilterValue(req.WatermarkImagePath), x, y,
		)
	}
	return scale
}

func textPosition(pos domain.WatermarkPosition) (x, y string) {
	return position(pos, "w-tw", "h-th")
}

func overlayPosition(pos domain.WatermarkPosition) (x, y string) {
	return position(pos, "W-w", "H-h")
}

// position maps a named corner to filter expressions. free is the room left
// on each axis once the overlay is placed.
func position(pos domain.WatermarkPosition, freeX, freeY string) (x, y string) {
	inset := fmt.Sprint(watermarkInset)
	switch pos {
	case domain.PositionTopLeft:
		return inset, inset
	case domain.PositionTopRight:
		return freeX + "-" + inset, inset
	case domain.PositionBottomLeft:
		return inset, freeY + "-" + inset
	case domain.PositionCenter:
		return "(" + freeX + ")/2", "(" + freeY + ")/2"
	default:
		return freeX + "-" + inset, freeY + "-" + inset
	}
}

// optionEscaper escapes a value for the filter option parser.
var optionEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
)

// quoteFilterValue escapes s for the option parser, then single-quotes it for
// the filtergraph parser. Backslashes are literal inside quotes at that level,
// so each apostrophe closes the quote, is escaped, and reopens it.
func quoteFilterValue(s string) string {
	return "'" + strings.ReplaceAll(optionEscaper.Replace(s), "'", `'\''`) + "'"
}

func encoderFor(codec string) string {
	switch codec {
	case "", domain.DefaultVideoCodec:
		return "libx264"
	case "h265", "hevc":
		return "libx265"
	default:
		return codec
	}
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, tail(exitErr.Stderr))
		}
		return nil, err
	}
	return output, nil
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailSize {
		s = s[len(s)-stderrTailSize:]
	}
	return s
}

var _ port.MediaEngine = (*Engine)(nil)
