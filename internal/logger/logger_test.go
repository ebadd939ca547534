package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLogger builds a Logger writing to buf without going through
// New/resolveOutput (which only understands stdout/stderr/file paths).
func newTestLogger(buf *bytes.Buffer, level Level, format string) *Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(toSlogLevel(level))
	opts := &slog.HandlerOptions{Level: levelVar}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(buf, opts)
	} else {
		handler = NewColorTextHandler(buf, opts, false)
	}
	return &Logger{slog: slog.New(handler)}
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := new(bytes.Buffer)
		l := newTestLogger(buf, LevelDebug, "text")

		l.Debug("debug message")
		l.Info("info message")
		l.Warn("warn message")
		l.Error("error message")

		output := buf.String()
		assert.Contains(t, output, "DEBUG")
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "error message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf := new(bytes.Buffer)
		l := newTestLogger(buf, LevelInfo, "text")

		l.Debug("debug message")
		l.Info("info message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.Contains(t, output, "info message")
	})

	t.Run("ErrorLevelShowsOnlyErrors", func(t *testing.T) {
		buf := new(bytes.Buffer)
		l := newTestLogger(buf, LevelError, "text")

		l.Debug("debug message")
		l.Info("info message")
		l.Warn("warn message")
		l.Error("error message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.NotContains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestJSONFormat(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf, LevelInfo, "json")

	l.Info("test message", "key1", "value1", "key2", 42)

	var entry map[string]any
	err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry)
	require.NoError(t, err, "output should be valid JSON: %s", buf.String())
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(42), entry["key2"])
}

func TestContextLogging(t *testing.T) {
	t.Run("InjectsLogContextFields", func(t *testing.T) {
		buf := new(bytes.Buffer)
		l := newTestLogger(buf, LevelInfo, "json")

		lc := &LogContext{
			TraceID:   "abc123",
			Procedure: "READ",
			Share:     "/export",
			ClientIP:  "192.168.1.100",
			UID:       1000,
			GID:       1000,
		}
		ctx := WithContext(context.Background(), lc)

		l.InfoCtx(ctx, "operation completed", "extra_field", "value")

		var entry map[string]any
		err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry)
		require.NoError(t, err)
		assert.Equal(t, "abc123", entry["trace_id"])
		assert.Equal(t, "READ", entry["procedure"])
		assert.Equal(t, "/export", entry["share"])
		assert.Equal(t, "192.168.1.100", entry["client_ip"])
		assert.Equal(t, "value", entry["extra_field"])
	})

	t.Run("NilContextHandled", func(t *testing.T) {
		buf := new(bytes.Buffer)
		l := newTestLogger(buf, LevelInfo, "text")

		require.NotPanics(t, func() {
			l.InfoCtx(nil, "test message")
		})
		assert.Contains(t, buf.String(), "test message")
	})
}

func TestWithBindsAttributes(t *testing.T) {
	buf := new(bytes.Buffer)
	base := newTestLogger(buf, LevelInfo, "json")
	bound := base.With("pool_key", "server|export|3")

	bound.Info("leased connection")

	var entry map[string]any
	err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry)
	require.NoError(t, err)
	assert.Equal(t, "server|export|3", entry["pool_key"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	require.NotPanics(t, func() {
		l.Debug("discarded")
		l.Info("discarded")
		l.Warn("discarded")
		l.Error("discarded")
		l.With("k", "v").Info("still discarded")
	})
}

func TestDiscardLogger(t *testing.T) {
	l := Discard()
	require.NotPanics(t, func() {
		l.Info("discarded", "k", "v")
	})
}

func TestConcurrentLogging(t *testing.T) {
	buf := new(bytes.Buffer)
	var mu sync.Mutex
	handler := slog.NewJSONHandler(&syncWriter{buf: buf, mu: &mu}, nil)
	l := &Logger{slog: slog.New(handler)}

	const numGoroutines = 10
	const logsPerGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				l.Info("goroutine log", "id", id, "iteration", j)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	mu.Unlock()
	assert.Equal(t, numGoroutines*logsPerGoroutine, len(lines))
}

type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func TestFieldHelpers(t *testing.T) {
	t.Run("HandleFormatsAsHex", func(t *testing.T) {
		attr := Handle([]byte{0x01, 0x02, 0x03, 0x04})
		assert.Equal(t, KeyHandle, attr.Key)
		assert.Equal(t, "01020304", attr.Value.String())
	})

	t.Run("ErrHandlesNil", func(t *testing.T) {
		attr := Err(nil)
		assert.Equal(t, "", attr.Key)
	})

	t.Run("ErrFormatsError", func(t *testing.T) {
		attr := Err(assert.AnError)
		assert.Equal(t, KeyError, attr.Key)
		assert.Contains(t, attr.Value.String(), "assert.AnError")
	})
}

func TestLogContext(t *testing.T) {
	t.Run("NewLogContext", func(t *testing.T) {
		lc := NewLogContext("192.168.1.100")
		assert.Equal(t, "192.168.1.100", lc.ClientIP)
		assert.False(t, lc.StartTime.IsZero())
	})

	t.Run("Clone", func(t *testing.T) {
		lc := &LogContext{TraceID: "trace123", Procedure: "READ"}
		clone := lc.Clone()
		clone.Procedure = "WRITE"
		assert.Equal(t, "READ", lc.Procedure)
	})

	t.Run("CloneNil", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
	})

	t.Run("WithProcedure", func(t *testing.T) {
		lc := NewLogContext("192.168.1.100")
		lc2 := lc.WithProcedure("READ")
		assert.Equal(t, "READ", lc2.Procedure)
		assert.Equal(t, "", lc.Procedure)
	})
}
