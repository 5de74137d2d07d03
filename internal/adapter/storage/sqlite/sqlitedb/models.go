package sqlitedb

import (
	"time"
)

type Video struct {
	ID               string
	SourceUrl        string
	Options          string
	Status           string
	Formats          string
	Thumbnails       string
	Metadata         string
	Duration         float64
	OriginalSize     int64
	ProcessingTimeMs int64
	ErrorMessage     string
	Attempts         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
