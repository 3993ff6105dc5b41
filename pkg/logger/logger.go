// Package logger is the JSON request logger of the HTTP surface.
// Application and storage code log through log/slog; this logger carries the
// per-request fields (request id, route, student, activity type) in one line.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps LOG_LEVEL values to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

// Field is one key of the log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field  { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err renders err as a string so that it survives JSON encoding.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// RequestIDKey is the field every request-scoped line carries.
const RequestIDKey = "request_id"

func StudentID(id string) Field       { return String("student_id", id) }
func ActivityType(t string) Field     { return String("activity_type", t) }
func Route(method, path string) Field { return String("route", method+" "+path) }
func Status(code int) Field           { return Int("status", code) }
func Latency(d time.Duration) Field   { return Field{Key: "latency_ms", Value: float64(d.Microseconds()) / 1000} }

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// Logger writes one JSON object per line. Loggers derived with With share
// the writer and its lock.
type Logger struct {
	out    *syncWriter
	level  Level
	fields []Field
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Options configures the logger.
type Options struct {
	Output io.Writer
	Level  Level
}

// New creates a logger. A nil Output means stdout.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{out: &syncWriter{w: opts.Output}, level: opts.Level}
}

// Default returns an info-level logger on stdout.
func Default() *Logger {
	return New(Options{Level: LevelInfo})
}

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{out: l.out, level: l.level, fields: merged}
}

// WithRequestID returns a child logger tagged with the request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

// write flattens fields into the top-level object; later keys win.
func (l *Logger) write(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	line := make(map[string]any, 3+len(l.fields)+len(fields))
	for _, f := range l.fields {
		line[f.Key] = f.Value
	}
	for _, f := range fields {
		line[f.Key] = f.Value
	}
	line["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	line["level"] = level.String()
	line["msg"] = msg

	data, err := json.Marshal(line)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":%q,"msg":%q,"log_error":%q}`, level.String(), msg, err.Error()))
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write(append(data, '\n'))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or Default outside a request.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
