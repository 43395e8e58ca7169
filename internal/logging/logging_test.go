package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func (fixedClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func newTestLogger(buf *bytes.Buffer, min LogLevel) *Logger {
	return newLogger(buf, min, "scopeq", zap.WithClock(fixedClock{}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var msg map[string]any
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			t.Fatalf("line is not JSON: %q: %v", sc.Text(), err)
		}
		out = append(out, msg)
	}
	return out
}

func TestLoggerWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelDebug)

	l.Info("compiled", LogData{"language": "go", "patterns": 12})
	l.Error("parse failed", LogData{"err": errors.New("boom")})

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "info" || lines[0]["logger"] != "scopeq" {
		t.Errorf("unexpected header: %+v", lines[0])
	}
	if lines[0]["message"] != "compiled" || lines[0]["language"] != "go" || lines[0]["patterns"] != float64(12) {
		t.Errorf("unexpected data: %v", lines[0])
	}
	if lines[0]["timestamp"] != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected timestamp: %v", lines[0]["timestamp"])
	}
	if lines[1]["err"] != "boom" {
		t.Errorf("errors should be logged as their message, got %v", lines[1]["err"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelWarning)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warning("shown")
	l.Log(LogLevelCritical, "shown", nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines at warning and above, got %d", len(lines))
	}
	if lines[1]["level"] != "critical" {
		t.Errorf("levels above error keep their name, got %v", lines[1]["level"])
	}

	l.SetLevel(LogLevelDebug)
	if !l.Enabled(LogLevelDebug) {
		t.Error("debug should be enabled after SetLevel")
	}
}

func TestShouldEmitLog(t *testing.T) {
	tests := []struct {
		min, level LogLevel
		want       bool
	}{
		{LogLevelDebug, LogLevelDebug, true},
		{LogLevelInfo, LogLevelDebug, false},
		{LogLevelError, LogLevelEmergency, true},
		{"bogus", LogLevelInfo, true},
		{"bogus", LogLevelDebug, false},
		{LogLevelWarning, "bogus", false},
	}
	for _, tt := range tests {
		if got := shouldEmitLog(tt.min, tt.level); got != tt.want {
			t.Errorf("shouldEmitLog(%q, %q) = %v, want %v", tt.min, tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if level, ok := ParseLevel(" WARN "); !ok || level != LogLevelWarning {
		t.Errorf("expected warning, got %q %v", level, ok)
	}
	if level, ok := ParseLevel("debug"); !ok || level != LogLevelDebug {
		t.Errorf("expected debug, got %q %v", level, ok)
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("unknown level should not parse")
	}
}

func TestNilAndDiscardLoggers(t *testing.T) {
	var l *Logger
	l.Info("nothing")
	l.SetLevel(LogLevelDebug)
	if l.Enabled(LogLevelEmergency) {
		t.Error("nil logger should never be enabled")
	}

	d := Discard()
	d.Error("dropped")
	if d.Enabled(LogLevelError) {
		t.Error("discard logger should only pass emergency")
	}
}

func TestLoggerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Info("tick", LogData{"i": i})
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 20 {
		t.Errorf("expected 20 intact lines, got %d", got)
	}
}

func TestZapAccessor(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, LogLevelInfo)
	l.Zap().Info("direct")
	if err := l.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["message"] != "direct" {
		t.Errorf("unexpected lines: %v", lines)
	}

	var nilLogger *Logger
	nilLogger.Zap().Info("dropped")
	if err := nilLogger.Sync(); err != nil {
		t.Errorf("nil logger sync: %v", err)
	}
}
