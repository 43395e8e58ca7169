// Package logging writes leveled, structured log lines through zap, one JSON
// object per line. The query and highlight packages never log; callers report
// their diagnostics through here.
package logging

import (
	"io"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var levelOrder = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// zapLevels maps each level onto the zap level it is checked at. Levels above
// error use DPanic, which only panics in development loggers.
var zapLevels = map[LogLevel]zapcore.Level{
	LogLevelDebug:     zapcore.DebugLevel,
	LogLevelInfo:      zapcore.InfoLevel,
	LogLevelNotice:    zapcore.InfoLevel,
	LogLevelWarning:   zapcore.WarnLevel,
	LogLevelError:     zapcore.ErrorLevel,
	LogLevelCritical:  zapcore.DPanicLevel,
	LogLevelAlert:     zapcore.DPanicLevel,
	LogLevelEmergency: zapcore.DPanicLevel,
}

// ParseLevel resolves a level name, case-insensitively. "warn" is accepted
// for warning.
func ParseLevel(s string) (LogLevel, bool) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if level == "warn" {
		level = LogLevelWarning
	}
	_, ok := levelOrder[level]
	return level, ok
}

// LogData represents structured data for a log message
type LogData map[string]any

// Logger writes messages at or above its minimum level. It is safe for
// concurrent use. A nil *Logger discards everything.
type Logger struct {
	z   *zap.Logger
	min atomic.Value // LogLevel
}

// New creates a logger named name writing JSON lines to w.
func New(w io.Writer, min LogLevel, name string) *Logger {
	return newLogger(w, min, name)
}

func newLogger(w io.Writer, min LogLevel, name string, opts ...zap.Option) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.NameKey = "logger"
	enc.LevelKey = zapcore.OmitKey // written as a field to keep the full level set
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	enc.EncodeTime = zapcore.RFC3339TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel)
	z := zap.New(core, opts...)
	if name != "" {
		z = z.Named(name)
	}
	l := &Logger{z: z}
	l.min.Store(min)
	return l
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	l := &Logger{z: zap.NewNop()}
	l.min.Store(LogLevelEmergency)
	return l
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.z
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.min.Store(level)
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	return shouldEmitLog(l.min.Load().(LogLevel), level)
}

// Log writes message at level with optional data. Keys are written in
// sorted order.
func (l *Logger) Log(level LogLevel, message string, data LogData) {
	if !l.Enabled(level) {
		return
	}
	zl, ok := zapLevels[level]
	if !ok {
		level, zl = LogLevelInfo, zapcore.InfoLevel
	}
	ce := l.z.Check(zl, message)
	if ce == nil {
		return
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("level", string(level)))
	for _, k := range keys {
		if err, ok := data[k].(error); ok {
			fields = append(fields, zap.String(k, err.Error()))
			continue
		}
		fields = append(fields, zap.Any(k, data[k]))
	}
	ce.Write(fields...)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}

// Debug logs at debug level
func (l *Logger) Debug(message string, data ...LogData) {
	l.Log(LogLevelDebug, message, first(data))
}

// Info logs at info level
func (l *Logger) Info(message string, data ...LogData) {
	l.Log(LogLevelInfo, message, first(data))
}

// Warning logs at warning level
func (l *Logger) Warning(message string, data ...LogData) {
	l.Log(LogLevelWarning, message, first(data))
}

// Error logs at error level
func (l *Logger) Error(message string, data ...LogData) {
	l.Log(LogLevelError, message, first(data))
}

func first(data []LogData) LogData {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

func shouldEmitLog(min LogLevel, level LogLevel) bool {
	// Default to info if unknown
	minRank, ok := levelOrder[min]
	if !ok {
		minRank = levelOrder[LogLevelInfo]
	}
	levelRank, ok := levelOrder[level]
	if !ok {
		levelRank = levelOrder[LogLevelInfo]
	}
	return levelRank >= minRank
}
