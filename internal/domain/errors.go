package domain

import "errors"

var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInvalidSource     = errors.New("invalid source url")
	ErrUnsupportedSource = errors.New("source is not a video file")
	ErrNoVideoStream     = errors.New("no video stream found")
	ErrDurationExceeded  = errors.New("video exceeds maximum duration")
	ErrNotRetryable      = errors.New("video is not in a failed state")
)
