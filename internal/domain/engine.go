package domain

// TranscodeRequest describes one rendition encode.
type TranscodeRequest struct {
	InputPath  string
	OutputPath string
	Rendition  RenditionSpec
	Watermark  *Watermark
	// WatermarkImagePath is the local copy of Watermark.ImageURL, if any.
	WatermarkImagePath string
}

// FrameRequest describes one still frame extraction.
type FrameRequest struct {
	InputPath  string
	OutputPath string
	Timestamp  float64
	Width      int
	Height     int
}
