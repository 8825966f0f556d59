package plugin

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logEntry is one line kept in the in-memory diagnostic ring buffer.
//
// Grounded in the teacher's internal/logger.LogEntry (troberti-clangd-query
// go/internal/logger/logger.go): a timestamped, leveled message kept in
// memory regardless of whether it was also written to a sink.
type logEntry struct {
	Timestamp time.Time
	Level     zapcore.Level
	Message   string
}

// Logger is the logging surface a Host and its handlers use. It mirrors the
// teacher's internal/logger.Logger interface (Error/Info/Debug plus a log
// retrieval method) but is backed by zap instead of hand-rolled formatting.
type Logger interface {
	Error(format string, args ...interface{})
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// pluginLogger is the default Logger: a zap.Logger sink plus a bounded
// in-memory ring buffer, and (unlike the teacher, which has no "node" to
// notify) a hook that mirrors Error-level lines out as log notifications to
// the Lightning node per spec.md §6.
type pluginLogger struct {
	zap *zap.Logger

	mu        sync.Mutex
	ring      []logEntry
	ringCap   int
	onNotify  func(level, message string) // set by New to enqueue a "log" notification
}

const defaultRingCapacity = 2000

// newPluginLogger builds a Logger writing structured output through zap.
// verbose enables debug-level output; the teacher's equivalent knob is
// FileLogger's fileLevel threshold.
func newPluginLogger(verbose bool) (*pluginLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return &pluginLogger{
		zap:     z,
		ringCap: defaultRingCapacity,
	}, nil
}

func (l *pluginLogger) record(level zapcore.Level, message string) {
	l.mu.Lock()
	if len(l.ring) >= l.ringCap {
		l.ring = l.ring[1:]
	}
	l.ring = append(l.ring, logEntry{Timestamp: time.Now(), Level: level, Message: message})
	notify := l.onNotify
	l.mu.Unlock()

	if notify != nil && level >= zapcore.ErrorLevel {
		notify("error", message)
	}
}

func (l *pluginLogger) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zap.Error(msg)
	l.record(zapcore.ErrorLevel, msg)
}

func (l *pluginLogger) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zap.Info(msg)
	l.record(zapcore.InfoLevel, msg)
}

func (l *pluginLogger) Debug(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zap.Debug(msg)
	l.record(zapcore.DebugLevel, msg)
}

// recent returns the most recent ring buffer entries, newest last. Grounded
// in the teacher's FileLogger.GetLogs, which filters the same in-memory ring
// by minimum level; called from Host.RecentLogs for a plugin author's own
// diagnostics, not surfaced over the wire.
func (l *pluginLogger) recent(minLevel zapcore.Level) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.ring))
	for _, e := range l.ring {
		if e.Level >= minLevel {
			out = append(out, fmt.Sprintf("[%s] %s", e.Timestamp.Format("2006-01-02 15:04:05.000"), e.Message))
		}
	}
	return out
}

// sync flushes any buffered zap output. Called from Host.flushLogs once the
// event loop stops.
func (l *pluginLogger) sync() {
	_ = l.zap.Sync()
}

// nullLogger discards everything. Grounded in the teacher's NullLogger,
// used by tests that don't want log noise.
type nullLogger struct{}

func (nullLogger) Error(string, ...interface{}) {}
func (nullLogger) Info(string, ...interface{})  {}
func (nullLogger) Debug(string, ...interface{}) {}
