package domain

import (
	"math"
	"strconv"
	"strings"
)

type ProbeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ProbeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

// ProbeResult mirrors the subset of ffprobe's JSON output the pipeline reads.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
	RawJSON string        `json:"-"`
}

// VideoStream returns the first video stream, or nil.
func (p *ProbeResult) VideoStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

// MetadataFromProbe extracts SourceMetadata from a probe result. It returns
// ErrNoVideoStream when the source carries no video.
func MetadataFromProbe(p *ProbeResult) (SourceMetadata, error) {
	if p == nil {
		return SourceMetadata{}, ErrNoVideoStream
	}
	vs := p.VideoStream()
	if vs == nil {
		return SourceMetadata{}, ErrNoVideoStream
	}

	meta := SourceMetadata{
		Duration: ParseDuration(p.Format.Duration),
		Width:    max(vs.Width, 0),
		Height:   max(vs.Height, 0),
		FPS:      ParseFrameRate(vs.RFrameRate),
		Codec:    vs.CodecName,
		Bitrate:  p.Format.BitRate,
	}
	if meta.Duration == 0 {
		meta.Duration = ParseDuration(vs.Duration)
	}
	if meta.FPS == 0 {
		meta.FPS = ParseFrameRate(vs.AvgFrameRate)
	}
	if meta.Codec == "" {
		meta.Codec = "unknown"
	}
	if _, err := strconv.ParseInt(meta.Bitrate, 10, 64); err != nil {
		meta.Bitrate = "0"
	}
	return meta, nil
}

// ParseFrameRate turns ffprobe's "num/den" into frames per second; 0 when
// unknown.
func ParseFrameRate(fraction string) float64 {
	numStr, denStr, ok := strings.Cut(fraction, "/")
	if !ok {
		return 0
	}
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0
	}
	den, err := strconv.ParseFloat(denStr, 64)
	if err != nil || den <= 0 {
		return 0
	}
	return num / den
}

// ParseDuration reads seconds as printed by ffprobe; 0 for "N/A", garbage,
// negative or non-finite values.
func ParseDuration(s string) float64 {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}
