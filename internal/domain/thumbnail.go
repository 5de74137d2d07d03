package domain

const (
	ThumbnailWidth  = 320
	ThumbnailHeight = 180
)

// ThumbnailTimestamps spreads count frames evenly over duration, skipping the
// very first and last instant of the clip.
func ThumbnailTimestamps(duration float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	step := duration / float64(count+1)
	timestamps := make([]float64, count)
	for i := range count {
		timestamps[i] = step * float64(i+1)
	}
	return timestamps
}
