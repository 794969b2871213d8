package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel maps ERROR, WARN, INFO and DEBUG (any case) to a Level.
// Unknown names fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging throughout the application.
type Logger struct {
	level Level
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger
}

// NewLogger creates a Logger writing to stdout/stderr at the level named by
// the LOG_LEVEL environment variable.
func NewLogger() *Logger {
	l := newLogger(os.Stdout, os.Stderr)
	l.level = ParseLevel(os.Getenv("LOG_LEVEL"))
	return l
}

// NewWriterLogger sends every level to w.
func NewWriterLogger(w io.Writer, level Level) *Logger {
	l := newLogger(w, w)
	l.level = level
	return l
}

// NewNopLogger discards everything; used by tests.
func NewNopLogger() *Logger {
	return NewWriterLogger(io.Discard, LevelDebug)
}

func newLogger(out, errOut io.Writer) *Logger {
	flags := 0
	return &Logger{
		info:  log.New(out, "", flags),
		warn:  log.New(out, "", flags),
		err:   log.New(errOut, "", flags),
		debug: log.New(out, "", flags),
	}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	if l.level < LevelInfo {
		return
	}
	l.info.Printf(fmt.Sprintf("[%s] \033[32mINFO\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	if l.level < LevelWarn {
		return
	}
	l.warn.Printf(fmt.Sprintf("[%s] \033[33mWARN\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] \033[31mERROR\033[0m %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if l.level < LevelDebug {
		return
	}
	l.debug.Printf(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m %s\n", l.timestamp(), format), args...)
}
