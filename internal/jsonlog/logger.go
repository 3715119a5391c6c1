package jsonlog

import (
	"errors"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity level for a log entry.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	case LevelOff:
		return "OFF"
	default:
		return ""
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.Disabled
	}
}

// ParseLevel parses a log level string (case-insensitive).
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	case "OFF":
		return LevelOff, nil
	default:
		return LevelInfo, errors.New("invalid log level (allowed: DEBUG, INFO, WARN, ERROR, FATAL, OFF)")
	}
}

// Logger writes structured JSON logs through zerolog.
type Logger struct {
	zl zerolog.Logger

	mu       sync.Mutex
	traceFor Level
}

// New returns a JSON logger.
func New(out io.Writer, minLevel Level) *Logger {
	return NewWithFormat(out, minLevel, "json")
}

// NewWithFormat returns a logger; format "console" gives human readable output for local runs.
func NewWithFormat(out io.Writer, minLevel Level, format string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(minLevel.zerolog()).With().Timestamp().Logger()
	return &Logger{
		zl:       zl,
		traceFor: LevelFatal,
	}
}

// Discard is handy in tests.
func Discard() *Logger {
	return New(io.Discard, LevelOff)
}

func (l *Logger) SetTraceFor(level Level) {
	l.mu.Lock()
	l.traceFor = level
	l.mu.Unlock()
}

func (l *Logger) PrintDebug(message string, properties map[string]string) {
	l.print(LevelDebug, message, properties, false)
}

func (l *Logger) PrintInfo(message string, properties map[string]string) {
	l.print(LevelInfo, message, properties, false)
}

func (l *Logger) PrintWarn(message string, properties map[string]string) {
	l.print(LevelWarn, message, properties, false)
}

func (l *Logger) PrintError(err error, properties map[string]string) {
	if err == nil {
		return
	}
	l.print(LevelError, err.Error(), properties, false)
}

func (l *Logger) PrintErrorWithTrace(err error, properties map[string]string) {
	if err == nil {
		return
	}
	l.print(LevelError, err.Error(), properties, true)
}

func (l *Logger) PrintFatal(err error, properties map[string]string) {
	if err == nil {
		os.Exit(1)
	}
	l.print(LevelFatal, err.Error(), properties, true)
	os.Exit(1)
}

func (l *Logger) print(level Level, message string, properties map[string]string, forceTrace bool) {
	if l == nil || level >= LevelOff {
		return
	}

	l.mu.Lock()
	traceFor := l.traceFor
	l.mu.Unlock()

	// WithLevel avoids zerolog's own exit on fatal; PrintFatal exits itself.
	e := l.zl.WithLevel(level.zerolog())
	if e == nil {
		return
	}
	if len(properties) > 0 {
		dict := zerolog.Dict()
		for k, v := range properties {
			dict.Str(k, v)
		}
		e.Dict("properties", dict)
	}
	if forceTrace || (traceFor != LevelOff && level >= traceFor) {
		e.Str("trace", string(debug.Stack()))
	}
	e.Msg(message)
}

// Write lets the logger back http.Server.ErrorLog.
func (l *Logger) Write(p []byte) (n int, err error) {
	l.print(LevelError, strings.TrimSpace(string(p)), nil, false)
	return len(p), nil
}
