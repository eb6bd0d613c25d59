// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels in increasing severity.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LoggerOptions controls output destination and verbosity.
type LoggerOptions struct {
	Level      string // debug, info, warn, error
	Output     string // stdout, file, both
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Logger provides leveled logging for pipeline runs, writing to stdout and/or
// a size-rotated file.
type Logger struct {
	level int
	out   *log.Logger
	errt  *log.Logger
}

// NewLogger creates a logger from options. A file output uses lumberjack for
// rotation so long-running ingest jobs do not grow logs without bound.
func NewLogger(opts LoggerOptions) *Logger {
	var w io.Writer = os.Stdout
	errW := io.Writer(os.Stderr)
	if opts.Output == "file" || opts.Output == "both" {
		rot := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		if opts.Output == "both" {
			w = io.MultiWriter(os.Stdout, rot)
			errW = io.MultiWriter(os.Stderr, rot)
		} else {
			w = rot
			errW = rot
		}
	}

	return &Logger{
		level: parseLevel(opts.Level),
		out:   log.New(w, "", 0),
		errt:  log.New(errW, "", 0),
	}
}

// NewStdoutLogger returns an info-level stdout logger, the default for tests
// and tooling.
func NewStdoutLogger() *Logger {
	return NewLogger(LoggerOptions{Level: "info", Output: "stdout"})
}

func parseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Debug(format string, args ...any) {
	if l.level <= LevelDebug {
		l.out.Printf(fmt.Sprintf("[%s] DEBUG %s", l.timestamp(), format), args...)
	}
}

func (l *Logger) Info(format string, args ...any) {
	if l.level <= LevelInfo {
		l.out.Printf(fmt.Sprintf("[%s] INFO  %s", l.timestamp(), format), args...)
	}
}

func (l *Logger) Warn(format string, args ...any) {
	if l.level <= LevelWarn {
		l.out.Printf(fmt.Sprintf("[%s] WARN  %s", l.timestamp(), format), args...)
	}
}

func (l *Logger) Error(format string, args ...any) {
	if l.level <= LevelError {
		l.errt.Printf(fmt.Sprintf("[%s] ERROR %s", l.timestamp(), format), args...)
	}
}
