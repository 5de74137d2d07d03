package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

const logFlags = log.Ldate | log.Ltime | log.LUTC | log.Lshortfile

func init() {
	Info = log.New(os.Stdout, "INFO: ", logFlags)
	Error = log.New(os.Stdout, "ERROR: ", logFlags)
	Debug = log.New(os.Stdout, "DEBUG: ", logFlags)
	Warn = log.New(os.Stdout, "WARN: ", logFlags)
	Setup(os.Stdout, LevelInfo)
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Setup points every logger at w and silences the ones below min.
func Setup(w io.Writer, min Level) {
	route := func(l *log.Logger, lvl Level) {
		if lvl < min {
			l.SetOutput(io.Discard)
			return
		}
		l.SetOutput(w)
	}
	route(Debug, LevelDebug)
	route(Info, LevelInfo)
	route(Warn, LevelWarn)
	route(Error, LevelError)
}
