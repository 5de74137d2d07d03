package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

const (
	DefaultVideoCodec = "h264"
	QualityOriginal   = "original"

	oneKilobitPerSec = 1000
)

// RenditionSpec is one candidate output of the rendition ladder.
type RenditionSpec struct {
	Quality    string `json:"quality"`
	Resolution string `json:"resolution"`
	Bitrate    string `json:"bitrate"`
	Codec      string `json:"codec"`
	Width      int    `json:"-"`
	Height     int    `json:"-"`
}

// renditionLadder is ordered from the smallest to the largest output.
var renditionLadder = []RenditionSpec{
	{Quality: "240p", Resolution: "426x240", Bitrate: "400k", Codec: DefaultVideoCodec, Width: 426, Height: 240},
	{Quality: "360p", Resolution: "640x360", Bitrate: "800k", Codec: DefaultVideoCodec, Width: 640, Height: 360},
	{Quality: "480p", Resolution: "854x480", Bitrate: "1200k", Codec: DefaultVideoCodec, Width: 854, Height: 480},
	{Quality: "720p", Resolution: "1280x720", Bitrate: "2500k", Codec: DefaultVideoCodec, Width: 1280, Height: 720},
	{Quality: "1080p", Resolution: "1920x1080", Bitrate: "5000k", Codec: DefaultVideoCodec, Width: 1920, Height: 1080},
}

// RenditionLadder returns a copy of the static ladder.
func RenditionLadder() []RenditionSpec {
	return slices.Clone(renditionLadder)
}

// IsKnownQuality reports whether label names a ladder row.
func IsKnownQuality(label string) bool {
	for _, r := range renditionLadder {
		if r.Quality == label {
			return true
		}
	}
	return false
}

// QualityForHeight maps a pixel height to the ladder label it falls into.
func QualityForHeight(height int) string {
	switch {
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	case height >= 360:
		return "360p"
	default:
		return "240p"
	}
}

// PlanRenditions selects the renditions to produce for a source. Ladder rows
// taller than the source or not requested are dropped. When nothing survives,
// a single "original" rendition at the source's own size is planned, so the
// result is never empty.
func PlanRenditions(meta SourceMetadata, requested []string) []RenditionSpec {
	if len(requested) == 0 {
		requested = DefaultRenditions
	}

	var plan []RenditionSpec
	for _, r := range renditionLadder {
		if r.Height <= meta.Height && slices.Contains(requested, r.Quality) {
			plan = append(plan, r)
		}
	}

	if len(plan) == 0 {
		plan = append(plan, originalRendition(meta))
	}

	return plan
}

func originalRendition(meta SourceMetadata) RenditionSpec {
	return RenditionSpec{
		Quality:    QualityOriginal,
		Resolution: fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		Bitrate:    kilobitRate(meta.Bitrate),
		Codec:      DefaultVideoCodec,
		Width:      meta.Width,
		Height:     meta.Height,
	}
}

// kilobitRate turns an ffprobe bit rate in bits per second into the "<n>k"
// form ffmpeg accepts. Unknown rates become "0".
func kilobitRate(bitsPerSecond string) string {
	bps, err := strconv.ParseFloat(bitsPerSecond, 64)
	if err != nil || math.IsNaN(bps) || math.IsInf(bps, 0) || bps < oneKilobitPerSec {
		return "0"
	}
	return fmt.Sprintf("%dk", int64(bps/oneKilobitPerSec))
}
