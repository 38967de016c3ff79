// Package logging provides leveled helpers over the standard logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel maps a config level name to a Level. Unknown names mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel sets the minimum level that is written.
func SetLevel(l Level) {
	current.Store(int32(l))
}

// Enabled reports whether messages at l are written.
func Enabled(l Level) bool {
	return int32(l) >= current.Load()
}

// Setup configures the standard logger. When file is non-empty, output is
// duplicated to it. The returned closer releases the file.
func Setup(level, file string) (io.Closer, error) {
	SetLevel(ParseLevel(level))
	log.SetFlags(log.LstdFlags)

	if file == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

func logf(l Level, prefix, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Output(3, prefix+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { logf(LevelDebug, "DEBUG ", format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, "INFO ", format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, "WARN ", format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, "ERROR ", format, args...) }
